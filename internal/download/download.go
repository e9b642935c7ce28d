// Package download serves files the service has written, such as exported
// edit decision lists, with single byte-range support.
package download

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrBadName is returned for names that could escape the served directory.
var ErrBadName = errors.New("invalid file name")

// Dir serves the regular files directly inside one directory.
type Dir struct {
	root   string
	logger *slog.Logger
}

func NewDir(root string, logger *slog.Logger) *Dir {
	return &Dir{root: root, logger: logger}
}

// Resolve maps a bare file name to its path under the root.
func (d *Dir) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return filepath.Join(d.root, name), nil
}

// Serve writes the named file to w. A missing file is a 404, a bad name a
// 400; other failures are returned to the caller before anything is written.
func (d *Dir) Serve(w http.ResponseWriter, r *http.Request, name string) error {
	path, err := d.Resolve(name)
	if err != nil {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}
	size := info.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType(name))

	span, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err != nil:
		// Malformed ranges are ignored and the whole file is sent.
		span = nil
	}

	if span == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		d.copy(w, f, size, name)
		return nil
	}

	if _, err := f.Seek(span.First, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(span.Length(), 10))
	w.Header().Set("Content-Range", span.Header(size))
	w.WriteHeader(http.StatusPartialContent)
	d.copy(w, f, span.Length(), name)
	return nil
}

func (d *Dir) copy(w io.Writer, f io.Reader, n int64, name string) {
	if _, err := io.CopyN(w, f, n); err != nil {
		d.logger.Debug("download interrupted", "file", name, "error", err)
	}
}

func contentType(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".edl") {
		return "text/plain; charset=utf-8"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
