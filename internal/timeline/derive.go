package timeline

import "math"

// ClipData is the flattened view of one scrubber handed to the renderer.
// Times are in seconds.
type ClipData struct {
	ID               string          `json:"id"`
	MediaType        MediaType       `json:"mediaType"`
	MediaURLLocal    *string         `json:"mediaUrlLocal"`
	MediaURLRemote   *string         `json:"mediaUrlRemote"`
	Width            float64         `json:"width"`
	StartTime        float64         `json:"startTime"`
	EndTime          float64         `json:"endTime"`
	Duration         float64         `json:"duration"`
	TrackID          string          `json:"trackId"`
	TrackIndex       int             `json:"trackIndex"`
	MediaWidth       int             `json:"media_width"`
	MediaHeight      int             `json:"media_height"`
	Text             *TextProperties `json:"text"`
	TrimBefore       *int            `json:"trimBefore"`
	TrimAfter        *int            `json:"trimAfter"`
	LeftTransition   *Transition     `json:"leftTransition,omitempty"`
	RightTransition  *Transition     `json:"rightTransition,omitempty"`
	SourceMediaBinID string          `json:"sourceMediaBinId"`
}

// TimelineData flattens every track into one clip list, track order first and
// then position.
func (t *Timeline) TimelineData() []ClipData {
	fps := float64(t.fps)
	var out []ClipData
	for ti, tr := range t.tracks {
		for _, s := range sortedByLeft(tr.Scrubbers) {
			c := s.clone()
			clip := ClipData{
				ID:               c.ID,
				MediaType:        c.MediaType,
				MediaURLLocal:    c.MediaURLLocal,
				MediaURLRemote:   c.MediaURLRemote,
				Width:            c.Width,
				StartTime:        c.Left / fps,
				EndTime:          c.End() / fps,
				Duration:         c.Width / fps,
				TrackID:          tr.ID,
				TrackIndex:       ti,
				MediaWidth:       c.MediaWidth,
				MediaHeight:      c.MediaHeight,
				Text:             c.Text,
				TrimBefore:       c.TrimBefore,
				TrimAfter:        c.TrimAfter,
				SourceMediaBinID: c.SourceMediaBinID,
			}
			if c.LeftTransitionID != nil {
				if i, ok := findTransition(tr.Transitions, *c.LeftTransitionID); ok {
					x := tr.Transitions[i].clone()
					clip.LeftTransition = &x
				}
			}
			if c.RightTransitionID != nil {
				if i, ok := findTransition(tr.Transitions, *c.RightTransitionID); ok {
					x := tr.Transitions[i].clone()
					clip.RightTransition = &x
				}
			}
			out = append(out, clip)
		}
	}
	return out
}

// DurationInFrames is the end of the last scrubber, rounded up.
func (t *Timeline) DurationInFrames() int {
	end := 0.0
	for _, tr := range t.tracks {
		for _, s := range tr.Scrubbers {
			end = math.Max(end, s.End())
		}
	}
	return int(math.Ceil(end))
}

// AutoSize picks the composition size from the first scrubber, in track order
// then position, whose media carries intrinsic dimensions. It falls back to
// 1920x1080.
func (t *Timeline) AutoSize() (width, height int) {
	for _, tr := range t.tracks {
		for _, s := range sortedByLeft(tr.Scrubbers) {
			w, h := s.MediaWidth, s.MediaHeight
			if m, ok := t.media[s.SourceMediaBinID]; ok && (w <= 0 || h <= 0) {
				w, h = m.MediaWidth, m.MediaHeight
			}
			if w > 0 && h > 0 {
				return w, h
			}
		}
	}
	return DefaultWidth, DefaultHeight
}

// Empty reports whether no track holds a scrubber.
func (t *Timeline) Empty() bool {
	return t.ScrubberCount() == 0
}
