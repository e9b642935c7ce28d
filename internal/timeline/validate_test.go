package timeline

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placed(id, media string, left, width float64, y int) Scrubber {
	s := scrub(id, left, width)
	s.SourceMediaBinID = media
	s.Y = y
	return s
}

// bindAll sets the scrubber bindings implied by every transition, the way
// AddTransition would have.
func bindAll(tl *Timeline) *Timeline {
	for _, tr := range tl.tracks {
		for _, x := range tr.Transitions {
			tl.bind(tr, x)
		}
	}
	return tl
}

func TestValidateReportsEveryViolation(t *testing.T) {
	media := []MediaBinItem{{ID: "m1", MediaType: MediaVideo, DurationInSeconds: 10, MediaURLLocal: StringPtr("/m1.mp4")}}
	tracks := []Track{
		{
			ID: "t1",
			Scrubbers: []Scrubber{
				placed("a", "m1", 0, 10, 0),
				placed("b", "m1", 5, 10, 0),
				placed("c", "ghost", 40, 5, 0),
			},
		},
		{
			ID:        "t2",
			Scrubbers: []Scrubber{placed("d", "m1", 0, 5, 0)},
		},
	}
	tl := Restore(30, tracks, media)

	v := tl.Validate()
	assert.Equal(t, 1, v.Count(CodeMediaNotFound))
	assert.Equal(t, 1, v.Count(CodeOverlapViolation))
	assert.Equal(t, 1, v.Count(CodeTrackIndexMismatch))
	assert.Len(t, v, 3)

	for _, e := range v {
		if e.Code == CodeMediaNotFound {
			assert.Equal(t, "tracks[0].scrubbers[2]", e.Path)
		}
	}
	require.Error(t, v.Err())
	assert.True(t, errors.Is(v[0], &Error{Code: v[0].Code}))
}

func TestValidateTransitions(t *testing.T) {
	media := []MediaBinItem{{ID: "m1", MediaType: MediaVideo, DurationInSeconds: 10, MediaURLLocal: StringPtr("/m1.mp4")}}

	tests := []struct {
		name        string
		scrubbers   []Scrubber
		transitions []Transition
		code        Code
	}{
		{
			name:        "dangling side",
			scrubbers:   []Scrubber{placed("a", "m1", 0, 10, 0)},
			transitions: []Transition{fade("x", "a", "ghost", 0)},
			code:        CodeScrubberNotFound,
		},
		{
			name:        "not adjacent",
			scrubbers:   []Scrubber{placed("a", "m1", 0, 10, 0), placed("b", "m1", 10, 10, 0), placed("c", "m1", 20, 10, 0)},
			transitions: []Transition{fade("x", "a", "c", 0)},
			code:        CodeAdjacencyViolation,
		},
		{
			name:        "too long",
			scrubbers:   []Scrubber{placed("a", "m1", 0, 10, 0), placed("b", "m1", 10, 4, 0)},
			transitions: []Transition{fade("x", "a", "b", 6)},
			code:        CodeDurationExceedsOverlap,
		},
		{
			name:        "bad timing",
			scrubbers:   []Scrubber{placed("a", "m1", 0, 10, 0), placed("b", "m1", 10, 10, 0)},
			transitions: []Transition{{ID: "x", Presentation: PresentationWipe, Timing: "bouncy", LeftScrubberID: StringPtr("a"), RightScrubberID: StringPtr("b")}},
			code:        CodeInvalidField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := bindAll(Restore(30, []Track{{ID: "t1", Scrubbers: tt.scrubbers, Transitions: tt.transitions}}, media))
			v := tl.Validate()
			require.Len(t, v, 1, "violations: %v", v)
			assert.Equal(t, tt.code, v[0].Code)
		})
	}
}

func TestValidateBindings(t *testing.T) {
	media := []MediaBinItem{{ID: "m1", MediaType: MediaImage, MediaURLLocal: StringPtr("/m1.png")}}
	s := placed("a", "m1", 0, 10, 0)
	s.RightTransitionID = StringPtr("gone")
	tl := Restore(30, []Track{{ID: "t1", Scrubbers: []Scrubber{s}}}, media)

	v := tl.Validate()
	require.Len(t, v, 1)
	assert.Equal(t, CodeTransitionNotFound, v[0].Code)
}

func TestValidateBindingConsistency(t *testing.T) {
	media := []MediaBinItem{{ID: "m1", MediaType: MediaImage, MediaURLLocal: StringPtr("/m1.png")}}
	pair := func() []Scrubber {
		return []Scrubber{placed("a", "m1", 0, 10, 0), placed("b", "m1", 10, 10, 0)}
	}

	t.Run("unbound sides", func(t *testing.T) {
		tl := Restore(30, []Track{{ID: "t1", Scrubbers: pair(), Transitions: []Transition{fade("x", "a", "b", 0)}}}, media)
		v := tl.Validate()
		assert.Equal(t, 2, v.Count(CodeAdjacencyViolation), "violations: %v", v)
	})
	t.Run("bound on the wrong side", func(t *testing.T) {
		scrubbers := pair()
		scrubbers[0].LeftTransitionID = StringPtr("x")
		scrubbers[0].RightTransitionID = StringPtr("x")
		scrubbers[1].LeftTransitionID = StringPtr("x")
		tl := Restore(30, []Track{{ID: "t1", Scrubbers: scrubbers, Transitions: []Transition{fade("x", "a", "b", 0)}}}, media)
		v := tl.Validate()
		require.Len(t, v, 1, "violations: %v", v)
		assert.Equal(t, CodeAdjacencyViolation, v[0].Code)
		assert.Equal(t, "tracks[0].scrubbers[0]", v[0].Path)
	})
	t.Run("bound after transition was dropped", func(t *testing.T) {
		scrubbers := pair()
		scrubbers[1].LeftTransitionID = StringPtr("x")
		tl := Restore(30, []Track{{ID: "t1", Scrubbers: scrubbers}}, media)
		v := tl.Validate()
		require.Len(t, v, 1)
		assert.Equal(t, CodeTransitionNotFound, v[0].Code)
	})
	t.Run("consistent", func(t *testing.T) {
		tl := bindAll(Restore(30, []Track{{ID: "t1", Scrubbers: pair(), Transitions: []Transition{fade("x", "a", "b", 0)}}}, media))
		assert.Empty(t, tl.Validate())
	})
}

func TestValidateNonFiniteNumbers(t *testing.T) {
	media := []MediaBinItem{{ID: "m1", MediaType: MediaVideo, DurationInSeconds: math.Inf(1), MediaURLLocal: StringPtr("/m1.mp4")}}
	left := placed("a", "m1", math.NaN(), 10, 0)
	width := placed("b", "m1", 20, math.Inf(1), 0)
	tl := Restore(30, []Track{{ID: "t1", Scrubbers: []Scrubber{left, width}}}, media)

	v := tl.Validate()
	assert.Equal(t, 3, v.Count(CodeInvalidField), "violations: %v", v)
	assert.Zero(t, sourceFrames(math.Inf(1), 30))
	assert.Zero(t, sourceFrames(math.NaN(), 30))
	assert.Equal(t, math.MaxInt32, sourceFrames(1e300, 30))
}

func TestRestoreCompactsGroupedScrubbers(t *testing.T) {
	media := []MediaBinItem{{ID: "g1", MediaType: MediaGrouped, GroupedScrubbers: json.RawMessage("[ 1,\n 2 ]")}}
	tl := Restore(30, nil, media)

	item, ok := tl.MediaBinItem("g1")
	require.True(t, ok)
	assert.Equal(t, "[1,2]", string(item.GroupedScrubbers))
	assert.Empty(t, tl.Validate())

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"groupped_scrubbers":[1,2]`)
}

func TestValidateDuplicateIDs(t *testing.T) {
	media := []MediaBinItem{{ID: "m1", MediaType: MediaImage, MediaURLLocal: StringPtr("/m1.png")}}
	tl := Restore(30, []Track{
		{ID: "t1", Scrubbers: []Scrubber{placed("a", "m1", 0, 10, 0)}},
		{ID: "t1", Scrubbers: []Scrubber{placed("a", "m1", 0, 10, 1)}},
	}, media)

	v := tl.Validate()
	assert.Equal(t, 2, v.Count(CodeDuplicateID))
}

func TestViolationsErr(t *testing.T) {
	var v Violations
	assert.NoError(t, v.Err())

	v = append(v, newError(CodeInvalidTrim, "tracks[0].scrubbers[0]", "trimBefore -1 is negative"))
	err := v.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 timeline violation(s)")
	assert.Contains(t, err.Error(), "InvalidTrim")
	assert.Equal(t, KindInvariant, v[0].Kind())
	assert.True(t, errors.Is(v[0], ErrInvalidTrim))
	assert.False(t, errors.Is(v[0], ErrNotFound))
}
