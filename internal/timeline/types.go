// Package timeline holds the composition model of a project: the media bin,
// the ordered tracks, the scrubbers placed on them and the transitions that
// bridge adjacent scrubbers. Every mutating operation is atomic: it is either
// applied completely or rejected with the state left untouched.
package timeline

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

const (
	// DefaultFPS is the frame rate used when a project does not carry one.
	DefaultFPS = 30

	DefaultWidth  = 1920
	DefaultHeight = 1080
)

type MediaType string

const (
	MediaVideo   MediaType = "video"
	MediaImage   MediaType = "image"
	MediaAudio   MediaType = "audio"
	MediaText    MediaType = "text"
	MediaGrouped MediaType = "grouped"

	// MediaGroupedLegacy is the spelling older documents used for grouped items.
	MediaGroupedLegacy MediaType = "groupped_scrubber"
)

// MediaTypes lists the accepted media types in their canonical spelling.
var MediaTypes = []MediaType{MediaVideo, MediaImage, MediaAudio, MediaText, MediaGrouped}

// Playable reports whether the media type needs a source URL.
func (m MediaType) Playable() bool {
	return m == MediaVideo || m == MediaImage || m == MediaAudio
}

type Presentation string

const (
	PresentationFade      Presentation = "fade"
	PresentationWipe      Presentation = "wipe"
	PresentationClockWipe Presentation = "clockWipe"
	PresentationSlide     Presentation = "slide"
	PresentationFlip      Presentation = "flip"
	PresentationIris      Presentation = "iris"
)

var Presentations = []Presentation{
	PresentationFade, PresentationWipe, PresentationClockWipe,
	PresentationSlide, PresentationFlip, PresentationIris,
}

type Timing string

const (
	TimingLinear Timing = "linear"
	TimingSpring Timing = "spring"
)

var Timings = []Timing{TimingLinear, TimingSpring}

type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

type FontWeight string

const (
	WeightNormal FontWeight = "normal"
	WeightBold   FontWeight = "bold"
)

type TextTemplate string

const (
	TemplateNormal TextTemplate = "normal"
	TemplateGlassy TextTemplate = "glassy"
)

// TextProperties describe how a text item is rendered.
type TextProperties struct {
	TextContent string        `json:"textContent"`
	FontSize    float64       `json:"fontSize"`
	FontFamily  string        `json:"fontFamily"`
	Color       string        `json:"color"`
	TextAlign   TextAlign     `json:"textAlign"`
	FontWeight  FontWeight    `json:"fontWeight"`
	Template    *TextTemplate `json:"template"`
}

// MediaBinItem is a catalog entry for a media source available to the project.
// Nil pointers are the single representation of an absent value.
type MediaBinItem struct {
	ID                string          `json:"id"`
	MediaType         MediaType       `json:"mediaType"`
	MediaURLLocal     *string         `json:"mediaUrlLocal"`
	MediaURLRemote    *string         `json:"mediaUrlRemote"`
	MediaWidth        int             `json:"media_width"`
	MediaHeight       int             `json:"media_height"`
	Text              *TextProperties `json:"text"`
	GroupedScrubbers  json.RawMessage `json:"groupped_scrubbers"`
	LeftTransitionID  *string         `json:"left_transition_id"`
	RightTransitionID *string         `json:"right_transition_id"`
	Name              string          `json:"name"`
	DurationInSeconds float64         `json:"durationInSeconds"`
	UploadProgress    *float64        `json:"uploadProgress"`
	IsUploading       bool            `json:"isUploading"`
}

// Scrubber is a placed instance of a media bin item. Left and Width are
// expressed in frames at the timeline frame rate.
type Scrubber struct {
	MediaBinItem

	Left             float64 `json:"left"`
	Y                int     `json:"y"`
	Width            float64 `json:"width"`
	SourceMediaBinID string  `json:"sourceMediaBinId"`
	LeftPlayer       float64 `json:"left_player"`
	TopPlayer        float64 `json:"top_player"`
	WidthPlayer      float64 `json:"width_player"`
	HeightPlayer     float64 `json:"height_player"`
	IsDragging       bool    `json:"is_dragging"`
	TrimBefore       *int    `json:"trimBefore"`
	TrimAfter        *int    `json:"trimAfter"`
}

// End is the exclusive end position of the scrubber on its track.
func (s Scrubber) End() float64 {
	return s.Left + s.Width
}

type Transition struct {
	ID               string       `json:"id"`
	Presentation     Presentation `json:"presentation"`
	Timing           Timing       `json:"timing"`
	DurationInFrames int          `json:"durationInFrames"`
	LeftScrubberID   *string      `json:"leftScrubberId"`
	RightScrubberID  *string      `json:"rightScrubberId"`
}

// Bridges reports whether the transition joins left to right in that order.
func (t Transition) Bridges(left, right string) bool {
	return t.LeftScrubberID != nil && t.RightScrubberID != nil &&
		*t.LeftScrubberID == left && *t.RightScrubberID == right
}

// References reports whether either side of the transition is scrubberID.
func (t Transition) References(scrubberID string) bool {
	return (t.LeftScrubberID != nil && *t.LeftScrubberID == scrubberID) ||
		(t.RightScrubberID != nil && *t.RightScrubberID == scrubberID)
}

type Track struct {
	ID          string       `json:"id"`
	Scrubbers   []Scrubber   `json:"scrubbers"`
	Transitions []Transition `json:"transitions"`
}

// NewID returns a fresh random identifier for tracks, scrubbers and transitions.
func NewID() string {
	return uuid.NewString()
}

// StringPtr is a convenience for building optional string fields.
func StringPtr(s string) *string {
	return &s
}

// IntPtr is a convenience for building optional integer fields.
func IntPtr(i int) *int {
	return &i
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (m MediaBinItem) clone() MediaBinItem {
	out := m
	out.MediaURLLocal = cloneString(m.MediaURLLocal)
	out.MediaURLRemote = cloneString(m.MediaURLRemote)
	out.LeftTransitionID = cloneString(m.LeftTransitionID)
	out.RightTransitionID = cloneString(m.RightTransitionID)
	out.UploadProgress = cloneFloat(m.UploadProgress)
	if m.Text != nil {
		text := *m.Text
		if m.Text.Template != nil {
			tpl := *m.Text.Template
			text.Template = &tpl
		}
		out.Text = &text
	}
	if m.GroupedScrubbers != nil {
		out.GroupedScrubbers = compactRaw(m.GroupedScrubbers)
	}
	return out
}

// compactRaw copies an opaque payload in its compact form so it serializes
// to the same bytes it was stored with. Invalid JSON is copied unchanged.
func compactRaw(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return json.RawMessage(buf.Bytes())
}

func (s Scrubber) clone() Scrubber {
	out := s
	out.MediaBinItem = s.MediaBinItem.clone()
	out.TrimBefore = cloneInt(s.TrimBefore)
	out.TrimAfter = cloneInt(s.TrimAfter)
	return out
}

func (t Transition) clone() Transition {
	out := t
	out.LeftScrubberID = cloneString(t.LeftScrubberID)
	out.RightScrubberID = cloneString(t.RightScrubberID)
	return out
}

func (t Track) clone() Track {
	out := Track{
		ID:          t.ID,
		Scrubbers:   make([]Scrubber, len(t.Scrubbers)),
		Transitions: make([]Transition, len(t.Transitions)),
	}
	for i, s := range t.Scrubbers {
		out.Scrubbers[i] = s.clone()
	}
	for i, tr := range t.Transitions {
		out.Transitions[i] = tr.clone()
	}
	return out
}
