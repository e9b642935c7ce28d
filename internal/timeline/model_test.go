package timeline

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestTimeline returns a 30fps timeline with one track "t1" and a ten
// second 1280x720 video "m1" (300 frames) in the bin.
func newTestTimeline(t *testing.T) *Timeline {
	t.Helper()
	tl := New(30)
	_, err := tl.AddTrack("t1")
	require.NoError(t, err)
	require.NoError(t, tl.AddMediaBinItem(MediaBinItem{
		ID:                "m1",
		MediaType:         MediaVideo,
		MediaURLRemote:    StringPtr("https://cdn.example.com/m1.mp4"),
		MediaWidth:        1280,
		MediaHeight:       720,
		Name:              "clip.mp4",
		DurationInSeconds: 10,
	}))
	return tl
}

func scrub(id string, left, width float64) Scrubber {
	return Scrubber{
		MediaBinItem:     MediaBinItem{ID: id, MediaType: MediaVideo, Name: id},
		Left:             left,
		Width:            width,
		SourceMediaBinID: "m1",
	}
}

func fade(id, left, right string, frames int) Transition {
	return Transition{
		ID:               id,
		Presentation:     PresentationFade,
		Timing:           TimingLinear,
		DurationInFrames: frames,
		LeftScrubberID:   StringPtr(left),
		RightScrubberID:  StringPtr(right),
	}
}

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	require.Error(t, err)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, code, te.Code, "error: %v", err)
}

func TestNewDefault(t *testing.T) {
	tl := NewDefault(0)
	assert.Equal(t, DefaultFPS, tl.FPS())
	tracks := tl.Tracks()
	require.Len(t, tracks, 4)
	for i, tr := range tracks {
		assert.Equal(t, "track-"+string(rune('1'+i)), tr.ID)
		assert.Empty(t, tr.Scrubbers)
	}
	assert.Empty(t, tl.Validate())
}

func TestAddMediaBinItem(t *testing.T) {
	tl := newTestTimeline(t)

	requireCode(t, tl.AddMediaBinItem(MediaBinItem{ID: "m1", MediaType: MediaImage}), CodeDuplicateID)
	requireCode(t, tl.AddMediaBinItem(MediaBinItem{MediaType: MediaImage}), CodeInvalidField)

	require.NoError(t, tl.AddMediaBinItem(MediaBinItem{ID: "g1", MediaType: MediaGroupedLegacy}))
	item, ok := tl.MediaBinItem("g1")
	require.True(t, ok)
	assert.Equal(t, MediaGrouped, item.MediaType)

	bin := tl.MediaBin()
	require.Len(t, bin, 2)
	assert.Equal(t, "m1", bin[0].ID)
	assert.Equal(t, "g1", bin[1].ID)
}

func TestAddMediaBinItemGroupedPayload(t *testing.T) {
	tl := newTestTimeline(t)

	require.NoError(t, tl.AddMediaBinItem(MediaBinItem{ID: "g1", MediaType: MediaGrouped, GroupedScrubbers: json.RawMessage(`[ {"id": "a"} ]`)}))
	item, _ := tl.MediaBinItem("g1")
	assert.Equal(t, `[{"id":"a"}]`, string(item.GroupedScrubbers))

	requireCode(t, tl.AddMediaBinItem(MediaBinItem{ID: "g2", MediaType: MediaGrouped, GroupedScrubbers: json.RawMessage(`[1`)}), CodeInvalidField)
	requireCode(t, tl.AddMediaBinItem(MediaBinItem{ID: "m2", MediaType: MediaAudio, MediaURLLocal: StringPtr("/a.mp3"), DurationInSeconds: math.Inf(1)}), CodeInvalidField)
	assert.Len(t, tl.MediaBin(), 2)
}

func TestRemoveMediaBinItem(t *testing.T) {
	tl := newTestTimeline(t)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))

	requireCode(t, tl.RemoveMediaBinItem("m1"), CodeReferencedByScrubber)
	_, ok := tl.MediaBinItem("m1")
	assert.True(t, ok)

	require.NoError(t, tl.RemoveScrubber("a"))
	require.NoError(t, tl.RemoveMediaBinItem("m1"))
	assert.Empty(t, tl.MediaBin())
	requireCode(t, tl.RemoveMediaBinItem("m1"), CodeNotFound)
}

func TestUpdateMediaUpload(t *testing.T) {
	tl := newTestTimeline(t)
	progress := 42.0

	require.NoError(t, tl.UpdateMediaUpload("m1", UploadUpdate{Progress: &progress, IsUploading: true}))
	item, _ := tl.MediaBinItem("m1")
	require.NotNil(t, item.UploadProgress)
	assert.Equal(t, 42.0, *item.UploadProgress)
	assert.True(t, item.IsUploading)
	assert.Equal(t, "https://cdn.example.com/m1.mp4", *item.MediaURLRemote)

	require.NoError(t, tl.UpdateMediaUpload("m1", UploadUpdate{MediaURLLocal: StringPtr("/tmp/m1.mp4")}))
	item, _ = tl.MediaBinItem("m1")
	assert.Nil(t, item.UploadProgress)
	assert.False(t, item.IsUploading)
	assert.Equal(t, "/tmp/m1.mp4", *item.MediaURLLocal)

	bad := 101.0
	requireCode(t, tl.UpdateMediaUpload("m1", UploadUpdate{Progress: &bad}), CodeInvalidField)
	nan := math.NaN()
	requireCode(t, tl.UpdateMediaUpload("m1", UploadUpdate{Progress: &nan}), CodeInvalidField)
	requireCode(t, tl.UpdateMediaUpload("nope", UploadUpdate{}), CodeNotFound)
}

func TestPlaceScrubberRejectsOverlap(t *testing.T) {
	tl := newTestTimeline(t)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("b", 5, 10)))
	before := tl.Tracks()

	requireCode(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)), CodeOverlapViolation)
	assert.Equal(t, before, tl.Tracks())
}

func TestPlaceScrubberErrors(t *testing.T) {
	tests := []struct {
		name    string
		trackID string
		s       Scrubber
		code    Code
	}{
		{"unknown track", "nope", scrub("a", 0, 10), CodeTrackNotFound},
		{"missing id", "t1", scrub("", 0, 10), CodeInvalidField},
		{"duplicate id", "t1", scrub("existing", 100, 10), CodeDuplicateID},
		{"negative left", "t1", scrub("a", -1, 10), CodeInvalidField},
		{"NaN left", "t1", scrub("a", math.NaN(), 10), CodeInvalidField},
		{"infinite width", "t1", scrub("a", 50, math.Inf(1)), CodeInvalidField},
		{"infinite player size", "t1", func() Scrubber { s := scrub("a", 50, 10); s.WidthPlayer = math.Inf(-1); return s }(), CodeInvalidField},
		{"dangling media", "t1", func() Scrubber { s := scrub("a", 50, 10); s.SourceMediaBinID = "ghost"; return s }(), CodeMediaNotFound},
		{"bad trim", "t1", func() Scrubber { s := scrub("a", 50, 10); s.TrimBefore = IntPtr(5); s.TrimAfter = IntPtr(3); return s }(), CodeInvalidTrim},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := newTestTimeline(t)
			require.NoError(t, tl.PlaceScrubber("t1", scrub("existing", 20, 10)))
			requireCode(t, tl.PlaceScrubber(tt.trackID, tt.s), tt.code)
			assert.Equal(t, 1, tl.ScrubberCount())
		})
	}
}

func TestPlaceScrubberSetsTrackIndex(t *testing.T) {
	tl := newTestTimeline(t)
	_, err := tl.AddTrack("t2")
	require.NoError(t, err)

	s := scrub("a", 0, 10)
	s.Y = 7
	require.NoError(t, tl.PlaceScrubber("t2", s))

	got, trackID, ok := tl.Scrubber("a")
	require.True(t, ok)
	assert.Equal(t, "t2", trackID)
	assert.Equal(t, 1, got.Y)
}

func TestReservedScrubberStaysOnItsTrack(t *testing.T) {
	tl := newTestTimeline(t)
	_, err := tl.AddTrack("t2")
	require.NoError(t, err)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))
	require.NoError(t, tl.AddTransition("t1", fade("x", "a", "b", 0)))

	requireCode(t, tl.PlaceScrubber("t2", scrub("b", 40, 10)), CodeAdjacencyViolation)
	requireCode(t, tl.AddTransition("t2", fade("y", "b", "c", 0)), CodeAdjacencyViolation)
	assert.Equal(t, 1, tl.ScrubberCount())
	assert.Zero(t, tl.Validate().Count(CodeAdjacencyViolation))

	require.NoError(t, tl.PlaceScrubber("t1", scrub("b", 10, 10)))
	b, _, _ := tl.Scrubber("b")
	require.NotNil(t, b.LeftTransitionID)
	assert.Equal(t, "x", *b.LeftTransitionID)
	assert.Empty(t, tl.Validate())
}

func TestMoveScrubberBindsReservation(t *testing.T) {
	a := scrub("a", 0, 10)
	a.RightTransitionID = StringPtr("x")
	b := scrub("b", 40, 10)
	b.Y = 1
	b.LeftTransitionID = StringPtr("stale")
	media := []MediaBinItem{{ID: "m1", MediaType: MediaVideo, DurationInSeconds: 10, MediaURLLocal: StringPtr("/m1.mp4")}}
	tl := Restore(30, []Track{
		{ID: "t1", Scrubbers: []Scrubber{a}, Transitions: []Transition{fade("x", "a", "b", 0)}},
		{ID: "t2", Scrubbers: []Scrubber{b}},
	}, media)
	require.NotEmpty(t, tl.Validate())

	require.NoError(t, tl.MoveScrubber("t2", "b", 10, 0))
	moved, trackID, _ := tl.Scrubber("b")
	assert.Equal(t, "t1", trackID)
	require.NotNil(t, moved.LeftTransitionID)
	assert.Equal(t, "x", *moved.LeftTransitionID)
	assert.Nil(t, moved.RightTransitionID)
	assert.Empty(t, tl.Validate())
}

func TestMoveScrubberRejectsNonFiniteLeft(t *testing.T) {
	tl := newTestTimeline(t)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))

	requireCode(t, tl.MoveScrubber("t1", "a", math.Inf(1), 0), CodeInvalidField)
	requireCode(t, tl.MoveScrubber("t1", "a", math.NaN(), 0), CodeInvalidField)
	a, _, _ := tl.Scrubber("a")
	assert.Equal(t, 0.0, a.Left)
}

func TestTransitionCoveredOverlap(t *testing.T) {
	tl := newTestTimeline(t)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))
	require.NoError(t, tl.AddTransition("t1", fade("x", "a", "b", 5)))
	require.NoError(t, tl.PlaceScrubber("t1", scrub("b", 5, 10)))

	a, _, _ := tl.Scrubber("a")
	b, _, _ := tl.Scrubber("b")
	require.NotNil(t, a.RightTransitionID)
	require.NotNil(t, b.LeftTransitionID)
	assert.Equal(t, "x", *a.RightTransitionID)
	assert.Equal(t, "x", *b.LeftTransitionID)
	assert.Empty(t, tl.Validate())
}

func TestTransitionShorterThanOverlap(t *testing.T) {
	tl := newTestTimeline(t)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))
	require.NoError(t, tl.AddTransition("t1", fade("x", "a", "b", 5)))

	requireCode(t, tl.PlaceScrubber("t1", scrub("b", 4, 10)), CodeOverlapViolation)
	assert.Equal(t, 1, tl.ScrubberCount())
}

func TestAddTransition(t *testing.T) {
	setup := func(t *testing.T) *Timeline {
		tl := newTestTimeline(t)
		require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))
		require.NoError(t, tl.PlaceScrubber("t1", scrub("b", 10, 10)))
		require.NoError(t, tl.PlaceScrubber("t1", scrub("c", 20, 10)))
		return tl
	}

	t.Run("adjacent", func(t *testing.T) {
		tl := setup(t)
		require.NoError(t, tl.AddTransition("t1", fade("x", "a", "b", 0)))
	})
	t.Run("not adjacent", func(t *testing.T) {
		tl := setup(t)
		requireCode(t, tl.AddTransition("t1", fade("x", "a", "c", 0)), CodeAdjacencyViolation)
	})
	t.Run("reversed order", func(t *testing.T) {
		tl := setup(t)
		requireCode(t, tl.AddTransition("t1", fade("x", "b", "a", 0)), CodeAdjacencyViolation)
	})
	t.Run("self", func(t *testing.T) {
		tl := setup(t)
		requireCode(t, tl.AddTransition("t1", fade("x", "a", "a", 0)), CodeAdjacencyViolation)
	})
	t.Run("too long", func(t *testing.T) {
		tl := setup(t)
		requireCode(t, tl.AddTransition("t1", fade("x", "a", "b", 11)), CodeDurationExceedsOverlap)
	})
	t.Run("no sides", func(t *testing.T) {
		tl := setup(t)
		x := fade("x", "a", "b", 1)
		x.LeftScrubberID, x.RightScrubberID = nil, nil
		requireCode(t, tl.AddTransition("t1", x), CodeInvalidField)
	})
	t.Run("unknown presentation", func(t *testing.T) {
		tl := setup(t)
		x := fade("x", "a", "b", 1)
		x.Presentation = "dissolve"
		requireCode(t, tl.AddTransition("t1", x), CodeInvalidField)
	})
	t.Run("side already bridged", func(t *testing.T) {
		tl := setup(t)
		require.NoError(t, tl.AddTransition("t1", fade("x", "a", "b", 0)))
		requireCode(t, tl.AddTransition("t1", fade("y", "a", "b", 0)), CodeAdjacencyViolation)
		requireCode(t, tl.AddTransition("t1", fade("x", "b", "c", 0)), CodeDuplicateID)
	})
	t.Run("other track", func(t *testing.T) {
		tl := setup(t)
		_, err := tl.AddTrack("t2")
		require.NoError(t, err)
		require.NoError(t, tl.PlaceScrubber("t2", scrub("d", 30, 10)))
		requireCode(t, tl.AddTransition("t1", fade("x", "c", "d", 0)), CodeAdjacencyViolation)
	})
}

func TestMoveScrubber(t *testing.T) {
	tl := newTestTimeline(t)
	_, err := tl.AddTrack("t2")
	require.NoError(t, err)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))
	require.NoError(t, tl.PlaceScrubber("t1", scrub("b", 20, 10)))

	requireCode(t, tl.MoveScrubber("t1", "b", 5, 0), CodeOverlapViolation)
	b, _, _ := tl.Scrubber("b")
	assert.Equal(t, 20.0, b.Left)

	require.NoError(t, tl.MoveScrubber("t1", "b", 10, 0))
	b, _, _ = tl.Scrubber("b")
	assert.Equal(t, 10.0, b.Left)

	require.NoError(t, tl.MoveScrubber("t1", "b", 0, 1))
	b, trackID, _ := tl.Scrubber("b")
	assert.Equal(t, "t2", trackID)
	assert.Equal(t, 1, b.Y)
	assert.Equal(t, 0.0, b.Left)

	requireCode(t, tl.MoveScrubber("t2", "b", 0, 5), CodeTrackNotFound)
	requireCode(t, tl.MoveScrubber("t1", "b", 0, 0), CodeScrubberNotFound)
	assert.Empty(t, tl.Validate())
}

func TestMoveBridgedScrubber(t *testing.T) {
	tl := newTestTimeline(t)
	_, err := tl.AddTrack("t2")
	require.NoError(t, err)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))
	require.NoError(t, tl.PlaceScrubber("t1", scrub("b", 10, 10)))
	require.NoError(t, tl.PlaceScrubber("t1", scrub("c", 40, 10)))
	require.NoError(t, tl.AddTransition("t1", fade("x", "a", "b", 0)))
	before := tl.Tracks()

	// c dropped onto b
	requireCode(t, tl.MoveScrubber("t1", "c", 10, 0), CodeOverlapViolation)
	require.NoError(t, tl.MoveScrubber("t1", "b", 30, 0))
	requireCode(t, tl.MoveScrubber("t1", "b", 60, 0), CodeAdjacencyViolation)
	requireCode(t, tl.MoveScrubber("t1", "a", 0, 1), CodeAdjacencyViolation)

	require.NoError(t, tl.MoveScrubber("t1", "b", 10, 0))
	assert.Equal(t, before, tl.Tracks())
}

func TestTrimScrubber(t *testing.T) {
	tl := newTestTimeline(t)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 100)))

	requireCode(t, tl.TrimScrubber("a", IntPtr(-1), IntPtr(5)), CodeInvalidTrim)
	requireCode(t, tl.TrimScrubber("a", IntPtr(5), IntPtr(3)), CodeInvalidTrim)
	requireCode(t, tl.TrimScrubber("a", IntPtr(5), IntPtr(5)), CodeInvalidTrim)
	requireCode(t, tl.TrimScrubber("a", IntPtr(0), IntPtr(301)), CodeInvalidTrim)
	requireCode(t, tl.TrimScrubber("ghost", nil, nil), CodeScrubberNotFound)

	a, _, _ := tl.Scrubber("a")
	assert.Nil(t, a.TrimBefore)
	assert.Nil(t, a.TrimAfter)

	require.NoError(t, tl.TrimScrubber("a", IntPtr(10), IntPtr(300)))
	a, _, _ = tl.Scrubber("a")
	assert.Equal(t, 10, *a.TrimBefore)
	assert.Equal(t, 300, *a.TrimAfter)

	require.NoError(t, tl.TrimScrubber("a", nil, nil))
	a, _, _ = tl.Scrubber("a")
	assert.Nil(t, a.TrimBefore)
}

func TestTrimShrinksTransitionBudget(t *testing.T) {
	tl := newTestTimeline(t)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))
	require.NoError(t, tl.AddTransition("t1", fade("x", "a", "b", 5)))
	require.NoError(t, tl.PlaceScrubber("t1", scrub("b", 5, 10)))

	requireCode(t, tl.TrimScrubber("a", IntPtr(0), IntPtr(3)), CodeTransitionOverlapExceeded)
	a, _, _ := tl.Scrubber("a")
	assert.Nil(t, a.TrimAfter)

	require.NoError(t, tl.TrimScrubber("a", IntPtr(0), IntPtr(5)))
}

func TestRemoveTransitionTwice(t *testing.T) {
	tl := newTestTimeline(t)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))
	require.NoError(t, tl.PlaceScrubber("t1", scrub("b", 10, 10)))
	require.NoError(t, tl.AddTransition("t1", fade("x", "a", "b", 0)))

	require.NoError(t, tl.RemoveTransition("x"))
	after := tl.Tracks()
	requireCode(t, tl.RemoveTransition("x"), CodeNotFound)
	assert.Equal(t, after, tl.Tracks())

	a, _, _ := tl.Scrubber("a")
	b, _, _ := tl.Scrubber("b")
	assert.Nil(t, a.RightTransitionID)
	assert.Nil(t, b.LeftTransitionID)
	assert.Empty(t, after[0].Transitions)
}

func TestRemoveScrubberBridged(t *testing.T) {
	tl := newTestTimeline(t)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))
	require.NoError(t, tl.PlaceScrubber("t1", scrub("b", 10, 10)))
	require.NoError(t, tl.AddTransition("t1", fade("x", "a", "b", 0)))

	requireCode(t, tl.RemoveScrubber("a"), CodeReferencedByTransition)
	require.NoError(t, tl.RemoveTransition("x"))
	require.NoError(t, tl.RemoveScrubber("a"))
	requireCode(t, tl.RemoveScrubber("a"), CodeScrubberNotFound)
}

func TestRemoveTrackReindexes(t *testing.T) {
	tl := NewDefault(30)
	require.NoError(t, tl.AddMediaBinItem(MediaBinItem{ID: "m1", MediaType: MediaImage, MediaURLLocal: StringPtr("/a.png")}))
	require.NoError(t, tl.PlaceScrubber("track-3", scrub("a", 0, 10)))

	require.NoError(t, tl.RemoveTrack("track-1"))
	a, trackID, _ := tl.Scrubber("a")
	assert.Equal(t, "track-3", trackID)
	assert.Equal(t, 1, a.Y)
	assert.Empty(t, tl.Validate())

	requireCode(t, tl.RemoveTrack("track-1"), CodeTrackNotFound)
	_, err := tl.AddTrack("track-2")
	requireCode(t, err, CodeDuplicateID)
}

func TestCloneIsIndependent(t *testing.T) {
	tl := newTestTimeline(t)
	require.NoError(t, tl.PlaceScrubber("t1", scrub("a", 0, 10)))

	c := tl.Clone()
	require.NoError(t, c.TrimScrubber("a", IntPtr(1), IntPtr(2)))
	require.NoError(t, c.PlaceScrubber("t1", scrub("b", 20, 10)))

	a, _, _ := tl.Scrubber("a")
	assert.Nil(t, a.TrimBefore)
	assert.Equal(t, 1, tl.ScrubberCount())
	assert.Equal(t, 2, c.ScrubberCount())
}
