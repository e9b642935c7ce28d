// Package snapshot converts timelines to and from the opaque document stored
// per project.
package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/trykimu/videoeditor-sub001/internal/schema"
	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

type document struct {
	Version      int                     `json:"version"`
	FPS          int                     `json:"fps"`
	Timeline     timelineDoc             `json:"timeline"`
	MediaBin     []timeline.MediaBinItem `json:"mediaBin"`
	TextBinItems []timeline.MediaBinItem `json:"textBinItems"`
}

type timelineDoc struct {
	Tracks []timeline.Track `json:"tracks"`
}

// Serialize renders t as a version 1 document. The output is deterministic:
// the same state always yields the same bytes. Text items are also listed
// under textBinItems for readers of the older layout.
func Serialize(t *timeline.Timeline) ([]byte, error) {
	doc := document{
		Version:      schema.DocumentVersion,
		FPS:          t.FPS(),
		Timeline:     timelineDoc{Tracks: t.Tracks()},
		MediaBin:     t.MediaBin(),
		TextBinItems: []timeline.MediaBinItem{},
	}
	for _, m := range doc.MediaBin {
		if m.MediaType == timeline.MediaText {
			doc.TextBinItems = append(doc.TextBinItems, m)
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// Deserialize parses a stored document. Shape problems come back as a
// *schema.ValidationError and no timeline; invariant problems are left for
// Validate so a caller can report them all at once.
func Deserialize(data []byte) (*timeline.Timeline, error) {
	doc, err := schema.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	media := doc.MediaBin
	if !doc.HasMediaBin {
		media = rebuildMediaBin(doc)
	}
	return timeline.Restore(doc.FPS, doc.Tracks, media), nil
}

// rebuildMediaBin recreates the catalog of a document written before the
// media bin was stored: text items come from textBinItems, everything else
// from the descriptive fields each scrubber carries.
func rebuildMediaBin(doc *schema.Document) []timeline.MediaBinItem {
	var out []timeline.MediaBinItem
	seen := make(map[string]bool)
	for _, m := range doc.TextBinItems {
		if !seen[m.ID] {
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	for _, tr := range doc.Tracks {
		for _, s := range tr.Scrubbers {
			if s.SourceMediaBinID == "" || seen[s.SourceMediaBinID] {
				continue
			}
			seen[s.SourceMediaBinID] = true
			m := s.MediaBinItem
			m.ID = s.SourceMediaBinID
			m.LeftTransitionID, m.RightTransitionID = nil, nil
			out = append(out, m)
		}
	}
	return out
}
