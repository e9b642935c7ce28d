package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

func issueCodes(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %v", err)
	out := make(map[string]string, len(ve.Issues))
	for _, i := range ve.Issues {
		out[i.Path] = i.Code
	}
	return out
}

const validScrubber = `{
	"id": "s1",
	"mediaType": "video",
	"mediaUrlLocal": null,
	"mediaUrlRemote": "https://cdn.example.com/a.mp4",
	"media_width": 1920,
	"media_height": 1080,
	"text": null,
	"groupped_scrubbers": null,
	"left_transition_id": null,
	"right_transition_id": "x1",
	"name": "a.mp4",
	"durationInSeconds": 12.5,
	"uploadProgress": null,
	"isUploading": false,
	"left": 0,
	"y": 0,
	"width": 90,
	"sourceMediaBinId": "m1",
	"left_player": 0,
	"top_player": 0,
	"width_player": 1920,
	"height_player": 1080,
	"is_dragging": false,
	"trimBefore": null,
	"trimAfter": 300
}`

func TestParseScrubber(t *testing.T) {
	s, err := ParseScrubber([]byte(validScrubber))
	require.NoError(t, err)

	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, timeline.MediaVideo, s.MediaType)
	assert.Nil(t, s.MediaURLLocal)
	require.NotNil(t, s.MediaURLRemote)
	assert.Nil(t, s.LeftTransitionID)
	require.NotNil(t, s.RightTransitionID)
	assert.Equal(t, "x1", *s.RightTransitionID)
	assert.Nil(t, s.TrimBefore)
	require.NotNil(t, s.TrimAfter)
	assert.Equal(t, 300, *s.TrimAfter)
	assert.Equal(t, 90.0, s.Width)
	assert.Nil(t, s.GroupedScrubbers)
}

func TestOmittedAndNullAreTheSame(t *testing.T) {
	withNull := `{"id":"m","mediaType":"image","mediaUrlLocal":"/a.png","mediaUrlRemote":null,"media_width":1,"media_height":1,"name":"a","durationInSeconds":0,"uploadProgress":null,"isUploading":false}`
	omitted := `{"id":"m","mediaType":"image","mediaUrlLocal":"/a.png","media_width":1,"media_height":1,"name":"a","durationInSeconds":0}`

	a, err := ParseMediaBinItem([]byte(withNull))
	require.NoError(t, err)
	b, err := ParseMediaBinItem([]byte(omitted))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseCoercesNumericStrings(t *testing.T) {
	raw := `{"id":"m","mediaType":"video","mediaUrlLocal":"/a.mp4","media_width":"1280","media_height":" 720 ","name":"a","durationInSeconds":"3.5"}`
	m, err := ParseMediaBinItem([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 1280, m.MediaWidth)
	assert.Equal(t, 720, m.MediaHeight)
	assert.Equal(t, 3.5, m.DurationInSeconds)
}

func TestParseRejectsNonFiniteNumbers(t *testing.T) {
	for _, spelling := range []string{"NaN", "Inf", "Infinity", "-Infinity", "+Inf"} {
		t.Run(spelling, func(t *testing.T) {
			raw := `{"id":"m","mediaType":"video","mediaUrlLocal":"/a.mp4","media_width":1,"media_height":1,"name":"a","durationInSeconds":"` + spelling + `"}`
			_, err := ParseMediaBinItem([]byte(raw))
			assert.Equal(t, CodeInvalidType, issueCodes(t, err)["durationInSeconds"])

			scrubber := strings.Replace(validScrubber, `"left": 0`, `"left": "`+spelling+`"`, 1)
			scrubber = strings.Replace(scrubber, `"width": 90`, `"width": "`+spelling+`"`, 1)
			_, err = ParseScrubber([]byte(scrubber))
			codes := issueCodes(t, err)
			assert.Equal(t, CodeInvalidType, codes["left"])
			assert.Equal(t, CodeInvalidType, codes["width"])
		})
	}
}

func TestParseIntegerRange(t *testing.T) {
	tests := []struct {
		name  string
		value string
		code  string
	}{
		{"huge", `1e19`, CodeTooBig},
		{"huge string", `"1e19"`, CodeTooBig},
		{"past int32", `2147483648`, CodeTooBig},
		{"overflowing float", `1e400`, CodeInvalidType},
		{"fractional", `2.5`, CodeNotInteger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"id":"m","mediaType":"image","mediaUrlLocal":"/a.png","media_width":` + tt.value + `,"media_height":1,"name":"a","durationInSeconds":0}`
			_, err := ParseMediaBinItem([]byte(raw))
			assert.Equal(t, tt.code, issueCodes(t, err)["media_width"])
		})
	}

	scrubber := strings.Replace(validScrubber, `"trimBefore": null`, `"trimBefore": -1e19`, 1)
	_, err := ParseScrubber([]byte(scrubber))
	assert.Equal(t, CodeTooSmall, issueCodes(t, err)["trimBefore"])
}

func TestParseMediaBinItemCollectsAllIssues(t *testing.T) {
	raw := `{"mediaType":"hologram","media_width":-1,"media_height":true,"name":"a","durationInSeconds":-2,"uploadProgress":150}`
	_, err := ParseMediaBinItem([]byte(raw))
	require.Error(t, err)

	codes := issueCodes(t, err)
	assert.Equal(t, CodeRequired, codes["id"])
	assert.Equal(t, CodeInvalidEnum, codes["mediaType"])
	assert.Equal(t, CodeTooSmall, codes["media_width"])
	assert.Equal(t, CodeInvalidType, codes["media_height"])
	assert.Equal(t, CodeTooSmall, codes["durationInSeconds"])
	assert.Equal(t, CodeTooBig, codes["uploadProgress"])
}

func TestPlayableMediaNeedsURL(t *testing.T) {
	raw := `{"id":"m","mediaType":"audio","media_width":0,"media_height":0,"name":"a","durationInSeconds":1}`
	_, err := ParseMediaBinItem([]byte(raw))
	codes := issueCodes(t, err)
	assert.Equal(t, CodeCustom, codes["mediaUrlLocal"])

	text := `{"id":"t","mediaType":"text","media_width":0,"media_height":0,"name":"t","durationInSeconds":0,
		"text":{"textContent":"hi","fontSize":"48","fontFamily":"Arial","color":"#fff","textAlign":"center","fontWeight":"bold","template":null}}`
	m, err := ParseMediaBinItem([]byte(text))
	require.NoError(t, err)
	require.NotNil(t, m.Text)
	assert.Equal(t, 48.0, m.Text.FontSize)
	assert.Nil(t, m.Text.Template)
}

func TestLegacyGroupedMediaType(t *testing.T) {
	raw := `{"id":"g","mediaType":"groupped_scrubber","media_width":0,"media_height":0,"name":"g","durationInSeconds":0,
		"groupped_scrubbers": [ {"id": "a"} ]}`
	m, err := ParseMediaBinItem([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, timeline.MediaGrouped, m.MediaType)
	assert.JSONEq(t, `[{"id":"a"}]`, string(m.GroupedScrubbers))
	assert.Equal(t, `[{"id":"a"}]`, string(m.GroupedScrubbers))
}

func TestParseTransition(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		path  string
		code  string
		valid bool
	}{
		{"valid", `{"id":"x","presentation":"iris","timing":"spring","durationInFrames":15,"leftScrubberId":"a","rightScrubberId":null}`, "", "", true},
		{"fractional frames", `{"id":"x","presentation":"fade","timing":"linear","durationInFrames":1.5,"leftScrubberId":"a"}`, "durationInFrames", CodeNotInteger, false},
		{"negative frames", `{"id":"x","presentation":"fade","timing":"linear","durationInFrames":-1,"leftScrubberId":"a"}`, "durationInFrames", CodeTooSmall, false},
		{"bad presentation", `{"id":"x","presentation":"dissolve","timing":"linear","durationInFrames":1,"leftScrubberId":"a"}`, "presentation", CodeInvalidEnum, false},
		{"no sides", `{"id":"x","presentation":"fade","timing":"linear","durationInFrames":1}`, "", CodeCustom, false},
		{"not an object", `[1,2]`, "", CodeInvalidType, false},
		{"broken json", `{"id":`, "", CodeInvalidJSON, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := ParseTransition([]byte(tt.raw))
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, timeline.PresentationIris, tr.Presentation)
				assert.Equal(t, 15, tr.DurationInFrames)
				assert.Nil(t, tr.RightScrubberID)
				return
			}
			codes := issueCodes(t, err)
			assert.Equal(t, tt.code, codes[tt.path], "issues: %v", err)
		})
	}
}

func TestParseTimelinePaths(t *testing.T) {
	raw := `{"tracks":[{"id":"t1","scrubbers":[{"id":"s"}]},{"scrubbers":[],"transitions":"nope"}]}`
	_, err := ParseTimeline([]byte(raw))
	codes := issueCodes(t, err)

	assert.Equal(t, CodeRequired, codes["tracks[0].scrubbers[0].sourceMediaBinId"])
	assert.Equal(t, CodeRequired, codes["tracks[0].scrubbers[0].left"])
	assert.Equal(t, CodeRequired, codes["tracks[1].id"])
	assert.Equal(t, CodeInvalidType, codes["tracks[1].transitions"])
}

func TestParseTimelineWithoutTransitions(t *testing.T) {
	tracks, err := ParseTimeline([]byte(`{"tracks":[{"id":"t1","scrubbers":[]}]}`))
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.NotNil(t, tracks[0].Transitions)
	assert.Empty(t, tracks[0].Transitions)
}
