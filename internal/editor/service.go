// Package editor owns the live editing sessions. Each project gets one
// session that serializes every mutation of its timeline, persists the result
// and runs its render jobs.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/trykimu/videoeditor-sub001/internal/media"
	"github.com/trykimu/videoeditor-sub001/internal/project"
	"github.com/trykimu/videoeditor-sub001/internal/render"
	"github.com/trykimu/videoeditor-sub001/internal/snapshot"
	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

// ErrProjectNotFound is returned for unknown projects and for projects owned
// by another user.
var ErrProjectNotFound = errors.New("project not found")

// EditorService is what the HTTP layer needs from the editor.
type EditorService interface {
	CreateProject(ctx context.Context, userID, name string) (*project.Project, error)
	ListProjects(ctx context.Context, userID string) ([]*project.Project, error)
	GetProject(ctx context.Context, userID, id string) (*project.Project, *timeline.Timeline, error)
	RenameProject(ctx context.Context, userID, id, name string) (*project.Project, error)
	ReplaceTimeline(ctx context.Context, userID, id string, doc []byte) (*timeline.Timeline, error)
	DeleteProject(ctx context.Context, userID, id string) error

	Mutate(ctx context.Context, userID, id string, fn func(*timeline.Timeline) error) (*timeline.Timeline, error)
	AddMedia(ctx context.Context, userID, id string, item timeline.MediaBinItem) (timeline.MediaBinItem, error)
	Validate(ctx context.Context, userID, id string) (timeline.Violations, error)

	Render(ctx context.Context, userID, id string, req render.Request) (render.Job, error)
	RenderStatus(ctx context.Context, userID, id string) (render.Job, error)
	RenderJobs(ctx context.Context, userID, id string, limit int) ([]*project.RenderJob, error)
}

type Options struct {
	FPS          int
	PollInterval time.Duration
}

type session struct {
	mu      sync.Mutex
	loaded  bool
	tl      *timeline.Timeline
	machine *render.Machine
}

type Service struct {
	repo   project.Repository
	store  snapshot.Store
	bridge *snapshot.Bridge
	prober media.Prober
	client render.Client
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewService wires the editor. Project records always live in repo; snapshot
// documents live in store, which may be repo itself.
func NewService(repo project.Repository, store snapshot.Store, prober media.Prober, client render.Client, opts Options, logger *slog.Logger) *Service {
	if opts.FPS <= 0 {
		opts.FPS = timeline.DefaultFPS
	}
	return &Service{
		repo:     repo,
		store:    store,
		bridge:   snapshot.NewBridge(store),
		prober:   prober,
		client:   client,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

func (s *Service) authorize(ctx context.Context, userID, id string) (*project.Project, error) {
	p, err := s.repo.GetProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

// withSession runs fn with the project's session locked and loaded.
func (s *Service) withSession(ctx context.Context, projectID string, fn func(*session) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("editor service closed")
	}
	sess, ok := s.sessions[projectID]
	if !ok {
		sess = &session{}
		sess.machine = render.NewMachine(s.client, render.Options{
			PollInterval: s.opts.PollInterval,
			Observer:     s.persistJob(projectID),
			Logger:       s.logger.With("project_id", projectID),
		})
		s.sessions[projectID] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.loaded {
		tl, err := s.bridge.Load(ctx, projectID)
		if errors.Is(err, snapshot.ErrNotFound) {
			tl, err = timeline.NewDefault(s.opts.FPS), nil
		}
		if err != nil {
			return err
		}
		sess.tl = tl
		sess.loaded = true
	}
	return fn(sess)
}

func (s *Service) persistJob(projectID string) render.Observer {
	return func(j render.Job) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.UpsertRenderJob(ctx, jobRecord(projectID, j)); err != nil {
			s.logger.Error("failed to persist render job", "project_id", projectID, "job_id", j.ID, "error", err)
		}
	}
}

func (s *Service) CreateProject(ctx context.Context, userID, name string) (*project.Project, error) {
	now := time.Now().UTC()
	p := &project.Project{ID: project.NewID(), UserID: userID, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	if err := s.bridge.Save(ctx, p.ID, timeline.NewDefault(s.opts.FPS)); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", p.ID, "user_id", userID)
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context, userID string) ([]*project.Project, error) {
	return s.repo.ListProjects(ctx, userID)
}

// GetProject returns the record and a copy of the current timeline.
func (s *Service) GetProject(ctx context.Context, userID, id string) (*project.Project, *timeline.Timeline, error) {
	p, err := s.authorize(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	var tl *timeline.Timeline
	err = s.withSession(ctx, id, func(sess *session) error {
		tl = sess.tl.Clone()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return p, tl, nil
}

func (s *Service) RenameProject(ctx context.Context, userID, id, name string) (*project.Project, error) {
	if err := s.repo.RenameProject(ctx, userID, id, name); err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return s.authorize(ctx, userID, id)
}

// ReplaceTimeline swaps the whole timeline for a stored document. The
// document must parse and validate cleanly.
func (s *Service) ReplaceTimeline(ctx context.Context, userID, id string, doc []byte) (*timeline.Timeline, error) {
	next, err := snapshot.Deserialize(doc)
	if err != nil {
		return nil, err
	}
	if err := next.Validate().Err(); err != nil {
		return nil, err
	}
	return s.Mutate(ctx, userID, id, func(tl *timeline.Timeline) error {
		*tl = *next
		return nil
	})
}

func (s *Service) DeleteProject(ctx context.Context, userID, id string) error {
	deleted, err := s.repo.DeleteProject(ctx, userID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrProjectNotFound
	}

	if d, ok := s.store.(interface {
		DeleteSnapshot(ctx context.Context, projectID string) error
	}); ok {
		if err := d.DeleteSnapshot(ctx, id); err != nil {
			s.logger.Warn("failed to delete snapshot", "project_id", id, "error", err)
		}
	}

	s.mu.Lock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if sess != nil {
		sess.machine.Close()
	}
	s.logger.Info("project deleted", "project_id", id, "user_id", userID)
	return nil
}

// Mutate applies fn to a copy of the project's timeline and persists the
// copy. The live timeline only changes when both succeed.
func (s *Service) Mutate(ctx context.Context, userID, id string, fn func(*timeline.Timeline) error) (*timeline.Timeline, error) {
	if _, err := s.authorize(ctx, userID, id); err != nil {
		return nil, err
	}
	var out *timeline.Timeline
	err := s.withSession(ctx, id, func(sess *session) error {
		next := sess.tl.Clone()
		if err := fn(next); err != nil {
			return err
		}
		if err := s.bridge.Save(ctx, id, next); err != nil {
			return err
		}
		sess.tl = next
		out = next.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddMedia registers a media bin item, filling missing metadata from the
// prober first. A failed probe is logged and the item is stored as sent.
func (s *Service) AddMedia(ctx context.Context, userID, id string, item timeline.MediaBinItem) (timeline.MediaBinItem, error) {
	if item.ID == "" {
		item.ID = timeline.NewID()
	}
	enriched, err := media.Enrich(ctx, s.prober, item)
	if err != nil {
		s.logger.Warn("media probe failed, storing item as sent", "project_id", id, "media_id", item.ID, "error", err)
		enriched = item
	}

	tl, err := s.Mutate(ctx, userID, id, func(tl *timeline.Timeline) error {
		return tl.AddMediaBinItem(enriched)
	})
	if err != nil {
		return timeline.MediaBinItem{}, err
	}
	stored, _ := tl.MediaBinItem(enriched.ID)
	return stored, nil
}

// Validate checks a copy of the timeline, so edits are not held up.
func (s *Service) Validate(ctx context.Context, userID, id string) (timeline.Violations, error) {
	if _, err := s.authorize(ctx, userID, id); err != nil {
		return nil, err
	}
	var tl *timeline.Timeline
	err := s.withSession(ctx, id, func(sess *session) error {
		tl = sess.tl.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tl.Validate(), nil
}

func (s *Service) Render(ctx context.Context, userID, id string, req render.Request) (render.Job, error) {
	if _, err := s.authorize(ctx, userID, id); err != nil {
		return render.Job{}, err
	}
	var tl *timeline.Timeline
	var machine *render.Machine
	err := s.withSession(ctx, id, func(sess *session) error {
		tl = sess.tl.Clone()
		machine = sess.machine
		return nil
	})
	if err != nil {
		return render.Job{}, err
	}
	return machine.Request(ctx, tl, req)
}

// RenderStatus returns the session's current job, or the newest stored job
// when the session has not rendered since it was loaded.
func (s *Service) RenderStatus(ctx context.Context, userID, id string) (render.Job, error) {
	if _, err := s.authorize(ctx, userID, id); err != nil {
		return render.Job{}, err
	}
	var current render.Job
	err := s.withSession(ctx, id, func(sess *session) error {
		current = sess.machine.Current()
		return nil
	})
	if err != nil {
		return render.Job{}, err
	}
	if current.State != render.StateIdle {
		return current, nil
	}

	jobs, err := s.repo.ListRenderJobs(ctx, id, 1)
	if err != nil {
		return render.Job{}, err
	}
	if len(jobs) == 0 {
		return current, nil
	}
	return jobFromRecord(jobs[0]), nil
}

func (s *Service) RenderJobs(ctx context.Context, userID, id string, limit int) ([]*project.RenderJob, error) {
	if _, err := s.authorize(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.repo.ListRenderJobs(ctx, id, limit)
}

// Close stops all render pollers. The service rejects work afterwards.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.machine.Close()
	}
}

func jobRecord(projectID string, j render.Job) *project.RenderJob {
	return &project.RenderJob{
		ID:               j.ID,
		ProjectID:        projectID,
		RemoteJobID:      j.RemoteJobID,
		Status:           string(j.State),
		Width:            j.Width,
		Height:           j.Height,
		FPS:              j.FPS,
		DurationInFrames: j.DurationInFrames,
		AssetRef:         j.AssetRef,
		Error:            j.Error,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

func jobFromRecord(r *project.RenderJob) render.Job {
	return render.Job{
		ID:               r.ID,
		RemoteJobID:      r.RemoteJobID,
		State:            render.State(r.Status),
		Width:            r.Width,
		Height:           r.Height,
		FPS:              r.FPS,
		DurationInFrames: r.DurationInFrames,
		AssetRef:         r.AssetRef,
		Error:            r.Error,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

var _ EditorService = (*Service)(nil)
