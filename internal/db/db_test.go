package db

import (
	"path/filepath"
	"testing"
)

func TestNew_CreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	tables := []string{"projects", "snapshots", "render_jobs", "config", "_migrations"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_WALEnabled(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	err = database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	var fk int
	if err := database.Conn().QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys error = %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	err = db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count)
	if err != nil {
		t.Fatalf("count migrations error = %v", err)
	}

	if count != 2 {
		t.Errorf("migration count = %d, want 2", count)
	}
}

func TestNew_ForeignKeysOnEveryConnection(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	_, err = database.Conn().Exec(`INSERT INTO render_jobs (id, project_id, status, created_at, updated_at)
		VALUES ('orphan', 'missing-project', 'idle', datetime('now'), datetime('now'))`)
	if err == nil {
		t.Fatal("expected foreign key violation for a job without a project")
	}
}

func TestMarkInterruptedJobs(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = db1.Conn().Exec(`
		INSERT INTO projects (id, user_id, name, created_at, updated_at)
		VALUES ('p1', 'u1', 'Demo', datetime('now'), datetime('now'));
		INSERT INTO render_jobs (id, project_id, status, created_at, updated_at) VALUES
			('rendering-job', 'p1', 'rendering', datetime('now'), datetime('now')),
			('submitting-job', 'p1', 'submitting', datetime('now'), datetime('now')),
			('done-job', 'p1', 'succeeded', datetime('now'), datetime('now'));
	`)
	if err != nil {
		t.Fatalf("insert jobs error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	tests := []struct {
		id         string
		wantStatus string
		wantError  string
	}{
		{"rendering-job", "failed", "interrupted by restart"},
		{"submitting-job", "failed", "interrupted by restart"},
		{"done-job", "succeeded", ""},
	}
	for _, tt := range tests {
		var status string
		var errMsg *string
		err := db2.Conn().QueryRow("SELECT status, error FROM render_jobs WHERE id = ?", tt.id).Scan(&status, &errMsg)
		if err != nil {
			t.Fatalf("query job %s error = %v", tt.id, err)
		}
		if status != tt.wantStatus {
			t.Errorf("job %s status = %s, want %s", tt.id, status, tt.wantStatus)
		}
		got := ""
		if errMsg != nil {
			got = *errMsg
		}
		if got != tt.wantError {
			t.Errorf("job %s error = %q, want %q", tt.id, got, tt.wantError)
		}
	}
}
