package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

var (
	// ErrNotFound means the project has no stored snapshot.
	ErrNotFound = errors.New("snapshot not found")
	// ErrUnavailable means the store could not be reached; retrying may help.
	ErrUnavailable = errors.New("snapshot store unavailable")
)

// Store persists snapshot bytes verbatim, keyed by project id. Writes are
// last-write-wins.
type Store interface {
	SaveSnapshot(ctx context.Context, projectID string, data []byte) error
	LoadSnapshot(ctx context.Context, projectID string) ([]byte, error)
}

// Bridge moves timelines in and out of a Store.
type Bridge struct {
	store Store
}

func NewBridge(store Store) *Bridge {
	return &Bridge{store: store}
}

func (b *Bridge) Save(ctx context.Context, projectID string, t *timeline.Timeline) error {
	data, err := Serialize(t)
	if err != nil {
		return err
	}
	if err := b.store.SaveSnapshot(ctx, projectID, data); err != nil {
		return fmt.Errorf("failed to save snapshot for project %s: %w", projectID, err)
	}
	return nil
}

// Load returns the stored timeline. ErrNotFound and ErrUnavailable from the
// store pass through wrapped so callers can tell them apart.
func (b *Bridge) Load(ctx context.Context, projectID string) (*timeline.Timeline, error) {
	data, err := b.store.LoadSnapshot(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for project %s: %w", projectID, err)
	}
	t, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot for project %s is invalid: %w", projectID, err)
	}
	return t, nil
}
