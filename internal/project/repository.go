// Package project stores project records, their timeline snapshots and the
// render jobs submitted for them.
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trykimu/videoeditor-sub001/internal/schema"
	"github.com/trykimu/videoeditor-sub001/internal/snapshot"
)

// Repository is the persistence surface the editor service and API use.
// Project lookups are always scoped by the owning user; a project of another
// user looks exactly like a missing one.
type Repository interface {
	snapshot.Store

	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, userID, id string) (*Project, error)
	ListProjects(ctx context.Context, userID string) ([]*Project, error)
	RenameProject(ctx context.Context, userID, id, name string) error
	DeleteProject(ctx context.Context, userID, id string) (bool, error)

	UpsertRenderJob(ctx context.Context, job *RenderJob) error
	GetRenderJob(ctx context.Context, id string) (*RenderJob, error)
	ListRenderJobs(ctx context.Context, projectID string, limit int) ([]*RenderJob, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// unavailable tags a driver failure so callers can tell it from a miss.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", snapshot.ErrUnavailable, err)
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, user_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.Name, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *SQLiteRepository) GetProject(ctx context.Context, userID, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM projects WHERE id = ? AND user_id = ?
	`, id, userID)

	var p Project
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context, userID string) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM projects WHERE user_id = ? ORDER BY updated_at DESC, id
	`, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		var p Project
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &createdAt, &updatedAt); err != nil {
			return nil, unavailable(err)
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return projects, nil
}

func (r *SQLiteRepository) RenameProject(ctx context.Context, userID, id, name string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		name, formatTime(time.Now()), id, userID)
	if err != nil {
		return unavailable(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return snapshot.ErrNotFound
	}
	return nil
}

// DeleteProject reports whether a project was removed. Snapshots and render
// jobs go with it through the foreign keys.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, unavailable(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SaveSnapshot stores data for an existing project and bumps its updated_at.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, projectID string, data []byte) error {
	now := formatTime(time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE projects SET updated_at = ? WHERE id = ?", now, projectID)
	if err != nil {
		return unavailable(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return snapshot.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (project_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, projectID, data, now); err != nil {
		return unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *SQLiteRepository) LoadSnapshot(ctx context.Context, projectID string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE project_id = ?", projectID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, snapshot.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return data, nil
}

func (r *SQLiteRepository) UpsertRenderJob(ctx context.Context, j *RenderJob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO render_jobs (id, project_id, remote_job_id, status, width, height, fps, duration_in_frames,
			asset_ref, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_job_id = excluded.remote_job_id,
			status = excluded.status,
			asset_ref = excluded.asset_ref,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, j.ID, j.ProjectID, nullString(j.RemoteJobID), j.Status, j.Width, j.Height, j.FPS, j.DurationInFrames,
		nullString(j.AssetRef), nullString(j.Error), formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	if err != nil {
		return unavailable(err)
	}
	return nil
}

const renderJobColumns = `id, project_id, remote_job_id, status, width, height, fps, duration_in_frames,
	asset_ref, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRenderJob(s scanner) (*RenderJob, error) {
	var j RenderJob
	var remoteID, assetRef, errMsg sql.NullString
	var createdAt, updatedAt string
	if err := s.Scan(&j.ID, &j.ProjectID, &remoteID, &j.Status, &j.Width, &j.Height, &j.FPS, &j.DurationInFrames,
		&assetRef, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.RemoteJobID = remoteID.String
	j.AssetRef = assetRef.String
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) GetRenderJob(ctx context.Context, id string) (*RenderJob, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+renderJobColumns+" FROM render_jobs WHERE id = ?", id)
	j, err := scanRenderJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return j, nil
}

// ListRenderJobs returns the newest jobs of a project first.
func (r *SQLiteRepository) ListRenderJobs(ctx context.Context, projectID string, limit int) ([]*RenderJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+renderJobColumns+" FROM render_jobs WHERE project_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		projectID, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	jobs := []*RenderJob{}
	for rows.Next() {
		j, err := scanRenderJob(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return jobs, nil
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", unavailable(err)
	}
	return value, nil
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts what we write and what SQLite's datetime() writes.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if canonical, ok := schema.CanonicalDate(s); ok {
		t, _ := time.Parse(time.RFC3339, canonical)
		return t
	}
	return time.Time{}
}
