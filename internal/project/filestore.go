package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/trykimu/videoeditor-sub001/internal/schema"
	"github.com/trykimu/videoeditor-sub001/internal/snapshot"
)

// FileStore keeps one JSON snapshot file per project in a directory. Each
// read or write holds a per-project file lock, so several processes can share
// the directory.
type FileStore struct {
	dir         string
	lockTimeout time.Duration
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStore{dir: dir, lockTimeout: 5 * time.Second}, nil
}

func (s *FileStore) paths(projectID string) (data, lock string, err error) {
	if err := schema.ValidateID(projectID, "projectId"); err != nil {
		return "", "", err
	}
	if strings.ContainsAny(projectID, `/\`) || projectID == "." || projectID == ".." {
		return "", "", fmt.Errorf("invalid project id %q", projectID)
	}
	base := filepath.Join(s.dir, projectID)
	return base + ".json", base + ".lock", nil
}

func (s *FileStore) withLock(ctx context.Context, lockPath string, exclusive bool, fn func() error) error {
	lock := flock.New(lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	var ok bool
	var err error
	if exclusive {
		ok, err = lock.TryLockContext(lockCtx, 25*time.Millisecond)
	} else {
		ok, err = lock.TryRLockContext(lockCtx, 25*time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("%w: acquire lock: %v", snapshot.ErrUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: lock %s is held", snapshot.ErrUnavailable, lockPath)
	}
	defer lock.Unlock()
	return fn()
}

// SaveSnapshot writes through a temp file and rename so readers never see a
// half-written document.
func (s *FileStore) SaveSnapshot(ctx context.Context, projectID string, data []byte) error {
	path, lockPath, err := s.paths(projectID)
	if err != nil {
		return err
	}
	return s.withLock(ctx, lockPath, true, func() error {
		tmp, err := os.CreateTemp(s.dir, projectID+".*.tmp")
		if err != nil {
			return fmt.Errorf("%w: %v", snapshot.ErrUnavailable, err)
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return fmt.Errorf("%w: %v", snapshot.ErrUnavailable, err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("%w: %v", snapshot.ErrUnavailable, err)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			return fmt.Errorf("%w: %v", snapshot.ErrUnavailable, err)
		}
		return nil
	})
}

func (s *FileStore) LoadSnapshot(ctx context.Context, projectID string) ([]byte, error) {
	path, lockPath, err := s.paths(projectID)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.withLock(ctx, lockPath, false, func() error {
		var readErr error
		data, readErr = os.ReadFile(path)
		if errors.Is(readErr, fs.ErrNotExist) {
			return snapshot.ErrNotFound
		}
		if readErr != nil {
			return fmt.Errorf("%w: %v", snapshot.ErrUnavailable, readErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// List returns the ids of all stored projects, sorted.
func (s *FileStore) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	return ids, nil
}

// DeleteSnapshot removes a project's document. A missing file is not an error.
func (s *FileStore) DeleteSnapshot(ctx context.Context, projectID string) error {
	path, lockPath, err := s.paths(projectID)
	if err != nil {
		return err
	}
	err = s.withLock(ctx, lockPath, true, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", snapshot.ErrUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return os.Remove(lockPath)
}
