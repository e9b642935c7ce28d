package schema

import (
	"encoding/json"

	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

// DocumentVersion is the newest snapshot layout this package understands.
const DocumentVersion = 1

// Document is a parsed project snapshot. Version is 0 for legacy documents,
// which carry either a bare timeline or a timeline plus text bin items.
type Document struct {
	Version      int
	FPS          int
	Tracks       []timeline.Track
	MediaBin     []timeline.MediaBinItem
	TextBinItems []timeline.MediaBinItem
	HasMediaBin  bool
}

// ParseDocument accepts the three snapshot layouts:
//
//	{"version":1,"fps":30,"timeline":{"tracks":[]},"mediaBin":[],"textBinItems":[]}
//	{"timeline":{"tracks":[]},"textBinItems":[]}
//	{"tracks":[]}
func ParseDocument(raw []byte) (*Document, error) {
	w := &walker{}
	obj, ok := w.decodeRoot(raw)
	if !ok {
		return nil, w.err()
	}

	doc := &Document{FPS: timeline.DefaultFPS}
	if _, bare := obj["tracks"]; bare {
		if _, wrapped := obj["timeline"]; !wrapped {
			doc.Tracks = w.tracks(obj, "")
			if err := w.err(); err != nil {
				return nil, err
			}
			return doc, nil
		}
	}

	if v, ok := w.integer(obj, "version", "", false, between(1, DocumentVersion)); ok {
		doc.Version = v
	}
	if fps, ok := w.integer(obj, "fps", "", false, bounds{positive: true}); ok {
		doc.FPS = fps
	}
	if raw, ok := w.requiredMember(obj, "timeline", ""); ok {
		if tobj, ok := w.object(raw, "timeline"); ok {
			doc.Tracks = w.tracks(tobj, "timeline")
		}
	}
	if raw, ok := member(obj, "mediaBin"); ok {
		doc.HasMediaBin = true
		doc.MediaBin = w.mediaBinItems(raw, "mediaBin")
	}
	if raw, ok := member(obj, "textBinItems"); ok {
		doc.TextBinItems = w.mediaBinItems(raw, "textBinItems")
	}

	if err := w.err(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (w *walker) mediaBinItems(raw json.RawMessage, path string) []timeline.MediaBinItem {
	items, ok := w.array(raw, path)
	if !ok {
		return nil
	}
	out := make([]timeline.MediaBinItem, 0, len(items))
	for i, item := range items {
		p := index(path, i)
		if obj, ok := w.object(item, p); ok {
			out = append(out, w.catalogEntry(obj, p))
		}
	}
	return out
}
