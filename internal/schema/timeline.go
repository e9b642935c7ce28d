package schema

import (
	"bytes"
	"encoding/json"

	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

var mediaTypeNames = append(enumStrings(timeline.MediaTypes), string(timeline.MediaGroupedLegacy))

// ParseTimeline parses a {"tracks":[...]} document.
func ParseTimeline(raw []byte) ([]timeline.Track, error) {
	w := &walker{}
	obj, ok := w.decodeRoot(raw)
	if !ok {
		return nil, w.err()
	}
	tracks := w.tracks(obj, "")
	if err := w.err(); err != nil {
		return nil, err
	}
	return tracks, nil
}

// ParseMediaBinItem parses a single media bin entry.
func ParseMediaBinItem(raw []byte) (timeline.MediaBinItem, error) {
	w := &walker{}
	obj, ok := w.decodeRoot(raw)
	if !ok {
		return timeline.MediaBinItem{}, w.err()
	}
	item := w.catalogEntry(obj, "")
	if err := w.err(); err != nil {
		return timeline.MediaBinItem{}, err
	}
	return item, nil
}

// ParseScrubber parses a scrubber placed through the API.
func ParseScrubber(raw []byte) (timeline.Scrubber, error) {
	w := &walker{}
	obj, ok := w.decodeRoot(raw)
	if !ok {
		return timeline.Scrubber{}, w.err()
	}
	s := w.scrubber(obj, "")
	if err := w.err(); err != nil {
		return timeline.Scrubber{}, err
	}
	return s, nil
}

func ParseTransition(raw []byte) (timeline.Transition, error) {
	w := &walker{}
	obj, ok := w.decodeRoot(raw)
	if !ok {
		return timeline.Transition{}, w.err()
	}
	tr := w.transition(obj, "")
	if err := w.err(); err != nil {
		return timeline.Transition{}, err
	}
	return tr, nil
}

func (w *walker) tracks(obj map[string]json.RawMessage, path string) []timeline.Track {
	raw, ok := w.requiredMember(obj, "tracks", path)
	if !ok {
		return nil
	}
	p := join(path, "tracks")
	items, ok := w.array(raw, p)
	if !ok {
		return nil
	}
	out := make([]timeline.Track, 0, len(items))
	for i, item := range items {
		tp := index(p, i)
		tobj, ok := w.object(item, tp)
		if !ok {
			continue
		}
		out = append(out, w.track(tobj, tp))
	}
	return out
}

func (w *walker) track(obj map[string]json.RawMessage, path string) timeline.Track {
	tr := timeline.Track{Scrubbers: []timeline.Scrubber{}, Transitions: []timeline.Transition{}}
	tr.ID, _ = w.str(obj, "id", path, true)

	if raw, ok := w.requiredMember(obj, "scrubbers", path); ok {
		p := join(path, "scrubbers")
		if items, ok := w.array(raw, p); ok {
			for i, item := range items {
				sp := index(p, i)
				if sobj, ok := w.object(item, sp); ok {
					tr.Scrubbers = append(tr.Scrubbers, w.scrubber(sobj, sp))
				}
			}
		}
	}

	// Older documents have no transitions member.
	if raw, ok := member(obj, "transitions"); ok {
		p := join(path, "transitions")
		if items, ok := w.array(raw, p); ok {
			for i, item := range items {
				xp := index(p, i)
				if xobj, ok := w.object(item, xp); ok {
					tr.Transitions = append(tr.Transitions, w.transition(xobj, xp))
				}
			}
		}
	}
	return tr
}

func (w *walker) text(obj map[string]json.RawMessage, path string) *timeline.TextProperties {
	raw, ok := member(obj, "text")
	if !ok {
		return nil
	}
	p := join(path, "text")
	tobj, ok := w.object(raw, p)
	if !ok {
		return nil
	}
	t := &timeline.TextProperties{}
	t.TextContent, _ = w.str(tobj, "textContent", p, true)
	t.FontSize, _ = w.number(tobj, "fontSize", p, true, bounds{})
	t.FontFamily, _ = w.str(tobj, "fontFamily", p, true)
	t.Color, _ = w.str(tobj, "color", p, true)
	align, _ := w.enum(tobj, "textAlign", p, true, []string{"left", "center", "right"})
	t.TextAlign = timeline.TextAlign(align)
	weight, _ := w.enum(tobj, "fontWeight", p, true, []string{"normal", "bold"})
	t.FontWeight = timeline.FontWeight(weight)
	if tpl, ok := w.enum(tobj, "template", p, false, []string{"normal", "glassy"}); ok {
		v := timeline.TextTemplate(tpl)
		t.Template = &v
	}
	return t
}

func (w *walker) mediaBinItem(obj map[string]json.RawMessage, path string) timeline.MediaBinItem {
	var m timeline.MediaBinItem
	m.ID, _ = w.str(obj, "id", path, true)
	mt, _ := w.enum(obj, "mediaType", path, true, mediaTypeNames)
	m.MediaType = timeline.MediaType(mt)
	if m.MediaType == timeline.MediaGroupedLegacy {
		m.MediaType = timeline.MediaGrouped
	}
	m.MediaURLLocal = w.optString(obj, "mediaUrlLocal", path)
	m.MediaURLRemote = w.optString(obj, "mediaUrlRemote", path)

	width, _ := w.integer(obj, "media_width", path, true, nonNegative())
	height, _ := w.integer(obj, "media_height", path, true, nonNegative())
	m.MediaWidth, m.MediaHeight = width, height
	m.Text = w.text(obj, path)
	if raw, ok := member(obj, "groupped_scrubbers"); ok {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			m.GroupedScrubbers = json.RawMessage(buf.Bytes())
		}
	}
	m.LeftTransitionID = w.optString(obj, "left_transition_id", path)
	m.RightTransitionID = w.optString(obj, "right_transition_id", path)
	m.Name, _ = w.str(obj, "name", path, true)
	m.DurationInSeconds, _ = w.number(obj, "durationInSeconds", path, true, nonNegative())
	m.UploadProgress = w.optFloat(obj, "uploadProgress", path, between(0, 100))
	m.IsUploading = w.boolean(obj, "isUploading", path)
	return m
}

// catalogEntry is a media bin item plus the rules only the bin enforces;
// scrubbers carry copies of these fields and are not held to them.
func (w *walker) catalogEntry(obj map[string]json.RawMessage, path string) timeline.MediaBinItem {
	m := w.mediaBinItem(obj, path)
	if m.MediaType.Playable() && m.MediaURLLocal == nil && m.MediaURLRemote == nil {
		w.add(join(path, "mediaUrlLocal"), CodeCustom, "%s media needs a local or remote URL", m.MediaType)
	}
	if m.MediaType == timeline.MediaText && m.Text == nil {
		w.add(join(path, "text"), CodeRequired, "text media needs text properties")
	}
	return m
}

func (w *walker) scrubber(obj map[string]json.RawMessage, path string) timeline.Scrubber {
	s := timeline.Scrubber{MediaBinItem: w.mediaBinItem(obj, path)}
	s.Left, _ = w.number(obj, "left", path, true, nonNegative())
	s.Y, _ = w.integer(obj, "y", path, true, nonNegative())
	s.Width, _ = w.number(obj, "width", path, true, nonNegative())
	s.SourceMediaBinID, _ = w.str(obj, "sourceMediaBinId", path, true)
	s.LeftPlayer, _ = w.number(obj, "left_player", path, false, bounds{})
	s.TopPlayer, _ = w.number(obj, "top_player", path, false, bounds{})
	s.WidthPlayer, _ = w.number(obj, "width_player", path, false, bounds{})
	s.HeightPlayer, _ = w.number(obj, "height_player", path, false, bounds{})
	s.IsDragging = w.boolean(obj, "is_dragging", path)
	// Trim ranges are checked against the source by the timeline model.
	s.TrimBefore = w.optInt(obj, "trimBefore", path, bounds{})
	s.TrimAfter = w.optInt(obj, "trimAfter", path, bounds{})
	return s
}

func (w *walker) transition(obj map[string]json.RawMessage, path string) timeline.Transition {
	var tr timeline.Transition
	tr.ID, _ = w.str(obj, "id", path, true)
	p, _ := w.enum(obj, "presentation", path, true, enumStrings(timeline.Presentations))
	tr.Presentation = timeline.Presentation(p)
	t, _ := w.enum(obj, "timing", path, true, enumStrings(timeline.Timings))
	tr.Timing = timeline.Timing(t)
	tr.DurationInFrames, _ = w.integer(obj, "durationInFrames", path, true, nonNegative())
	tr.LeftScrubberID = w.optString(obj, "leftScrubberId", path)
	tr.RightScrubberID = w.optString(obj, "rightScrubberId", path)
	if tr.LeftScrubberID == nil && tr.RightScrubberID == nil {
		w.add(path, CodeCustom, "a transition needs a left or right scrubber id")
	}
	return tr
}
