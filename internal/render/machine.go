package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trykimu/videoeditor-sub001/internal/snapshot"
	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateRendering  State = "rendering"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// InFlight reports whether a job in this state blocks new requests.
func (s State) InFlight() bool {
	return s == StateSubmitting || s == StateRendering
}

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Job is the externally visible record of one render request.
type Job struct {
	ID               string    `json:"id"`
	RemoteJobID      string    `json:"remoteJobId,omitempty"`
	State            State     `json:"state"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	FPS              int       `json:"fps"`
	DurationInFrames int       `json:"durationInFrames"`
	AssetRef         string    `json:"assetRef,omitempty"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Observer is called after every state change, outside the machine lock.
type Observer func(Job)

// DefaultMaxStatusErrors is how many consecutive retryable status errors a
// poller tolerates before failing the job.
const DefaultMaxStatusErrors = 5

type Options struct {
	PollInterval    time.Duration
	MaxStatusErrors int
	Observer        Observer
	Logger          *slog.Logger
}

// Request selects the composition size. A zero dimension is derived from the
// timeline.
type Request struct {
	Width  int
	Height int
}

// ErrClosed is returned by Request after Close.
var ErrClosed = errors.New("render machine closed")

// Machine runs at most one render at a time for an editing session. All state
// lives behind a single mutex.
type Machine struct {
	client Client
	opts   Options

	mu     sync.Mutex
	job    Job
	done   chan struct{}
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

func NewMachine(client Client, opts Options) *Machine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxStatusErrors <= 0 {
		opts.MaxStatusErrors = DefaultMaxStatusErrors
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Machine{client: client, opts: opts, job: Job{State: StateIdle}}
}

// Current returns the latest job, or a job in StateIdle when nothing was
// requested yet.
func (m *Machine) Current() Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job
}

// Request validates t and submits it. t must not be mutated while Request
// runs; editing sessions pass a Clone. A timeline with violations or without
// scrubbers fails the job without contacting the render service and the
// error is returned. While a job is submitting or rendering the call is
// rejected with timeline.ErrRenderInProgress and nothing changes.
func (m *Machine) Request(ctx context.Context, t *timeline.Timeline, req Request) (Job, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Job{}, ErrClosed
	}
	if m.job.State.InFlight() {
		current := m.job
		m.mu.Unlock()
		return current, timeline.NewError(timeline.CodeRenderInProgress, "render job %s is %s", current.ID, current.State)
	}

	now := time.Now().UTC()
	job := Job{ID: uuid.NewString(), FPS: t.FPS(), CreatedAt: now, UpdatedAt: now}

	payload, err := buildPayload(t, req)
	if err != nil {
		job.State = StateFailed
		job.Error = err.Error()
		m.job = job
		m.done = make(chan struct{})
		close(m.done)
		m.mu.Unlock()

		m.opts.Logger.Warn("render rejected before submission", "job_id", job.ID, "error", err)
		m.emit(job)
		return job, err
	}

	job.State = StateSubmitting
	job.Width = payload.CompositionWidth
	job.Height = payload.CompositionHeight
	job.DurationInFrames = payload.DurationInFrames
	m.job = job
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()
	m.emit(job)

	remoteID, submitErr := m.client.Submit(ctx, payload)

	m.mu.Lock()
	if submitErr == nil && m.closed {
		submitErr = ErrClosed
	}
	if submitErr != nil {
		job = m.finishLocked(StateFailed, "", submitErr.Error())
		m.mu.Unlock()

		m.opts.Logger.Error("render submission failed", "job_id", job.ID, "error", submitErr)
		m.emit(job)
		close(done)
		return job, &timeline.Error{Code: timeline.CodeRenderFailed, Message: submitErr.Error()}
	}

	m.job.RemoteJobID = remoteID
	m.job.State = StateRendering
	m.job.UpdatedAt = time.Now().UTC()
	job = m.job
	pollCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	m.opts.Logger.Info("render job accepted", "job_id", job.ID, "remote_job_id", remoteID)
	m.emit(job)
	go m.poll(pollCtx, job.ID, remoteID, done)
	return job, nil
}

// buildPayload turns a validated timeline into the submit body.
func buildPayload(t *timeline.Timeline, req Request) (SubmitRequest, error) {
	if v := t.Validate(); len(v) > 0 {
		return SubmitRequest{}, v
	}
	if t.Empty() {
		return SubmitRequest{}, timeline.NewError(timeline.CodeEmptyTimeline, "no scrubbers to render")
	}

	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		autoW, autoH := t.AutoSize()
		if width <= 0 {
			width = autoW
		}
		if height <= 0 {
			height = autoH
		}
	}

	doc, err := snapshot.Serialize(t)
	if err != nil {
		return SubmitRequest{}, err
	}
	return SubmitRequest{
		Snapshot:          doc,
		TimelineData:      t.TimelineData(),
		CompositionWidth:  width,
		CompositionHeight: height,
		FPS:               t.FPS(),
		DurationInFrames:  t.DurationInFrames(),
	}, nil
}

func (m *Machine) poll(ctx context.Context, jobID, remoteID string, done chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			m.finish(jobID, done, StateFailed, "", "render polling stopped")
			return
		case <-ticker.C:
		}

		st, err := m.client.Status(ctx, remoteID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			failures++
			if !retryable(err) || failures > m.opts.MaxStatusErrors {
				m.opts.Logger.Error("render status failed", "job_id", jobID, "attempts", failures, "error", err)
				m.finish(jobID, done, StateFailed, "", err.Error())
				return
			}
			m.opts.Logger.Warn("render status error, will retry", "job_id", jobID, "attempt", failures, "error", err)
			continue
		}
		failures = 0

		switch st.Phase {
		case PhaseSucceeded:
			m.finish(jobID, done, StateSucceeded, st.AssetRef, "")
			return
		case PhaseFailed:
			msg := st.Message
			if msg == "" {
				msg = "render failed"
			}
			m.finish(jobID, done, StateFailed, "", msg)
			return
		}
	}
}

func retryable(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.IsRetryable()
	}
	return !errors.Is(err, context.Canceled)
}

func (m *Machine) finish(jobID string, done chan struct{}, state State, assetRef, msg string) {
	m.mu.Lock()
	if m.job.ID != jobID || m.job.State.Terminal() {
		m.mu.Unlock()
		return
	}
	job := m.finishLocked(state, assetRef, msg)
	m.mu.Unlock()

	m.opts.Logger.Info("render job finished", "job_id", job.ID, "state", job.State, "asset_ref", job.AssetRef)
	m.emit(job)
	close(done)
}

func (m *Machine) finishLocked(state State, assetRef, msg string) Job {
	m.job.State = state
	m.job.AssetRef = assetRef
	m.job.Error = msg
	m.job.UpdatedAt = time.Now().UTC()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return m.job
}

func (m *Machine) emit(job Job) {
	if m.opts.Observer != nil {
		m.opts.Observer(job)
	}
}

// Wait blocks until the current job reaches a terminal state or ctx ends.
func (m *Machine) Wait(ctx context.Context) (Job, error) {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return m.Current(), nil
	}
	select {
	case <-done:
		return m.Current(), nil
	case <-ctx.Done():
		return m.Current(), ctx.Err()
	}
}

// Close stops any poller and waits for it to exit. A job still rendering is
// marked failed.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}
