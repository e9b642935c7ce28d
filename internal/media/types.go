// Package media resolves intrinsic metadata (dimensions, duration, kind) of
// media sources when they are registered in a project's media bin.
package media

import (
	"context"
	"errors"
	"time"

	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

var ErrUnsupported = errors.New("unsupported media source")

// ProbeResult is what a prober learned about one source.
type ProbeResult struct {
	MediaType         timeline.MediaType `json:"mediaType"`
	Width             int                `json:"width"`
	Height            int                `json:"height"`
	DurationInSeconds float64            `json:"durationInSeconds"`
	FormatName        string             `json:"formatName,omitempty"`
	ProbedAt          time.Time          `json:"-"`
}

type Prober interface {
	Probe(ctx context.Context, source string) (*ProbeResult, error)
}

// Enrich fills missing dimensions and duration of a playable item from p.
// Items that already carry metadata, and text or grouped items, are returned
// unchanged.
func Enrich(ctx context.Context, p Prober, item timeline.MediaBinItem) (timeline.MediaBinItem, error) {
	if !item.MediaType.Playable() || p == nil {
		return item, nil
	}
	needsDims := item.MediaType != timeline.MediaAudio && (item.MediaWidth == 0 || item.MediaHeight == 0)
	needsDuration := item.MediaType != timeline.MediaImage && item.DurationInSeconds == 0
	if !needsDims && !needsDuration {
		return item, nil
	}

	source := ""
	switch {
	case item.MediaURLRemote != nil && *item.MediaURLRemote != "":
		source = *item.MediaURLRemote
	case item.MediaURLLocal != nil && *item.MediaURLLocal != "":
		source = *item.MediaURLLocal
	default:
		return item, nil
	}

	res, err := p.Probe(ctx, source)
	if err != nil {
		return item, err
	}
	if needsDims {
		item.MediaWidth, item.MediaHeight = res.Width, res.Height
	}
	if needsDuration {
		item.DurationInSeconds = res.DurationInSeconds
	}
	return item, nil
}
