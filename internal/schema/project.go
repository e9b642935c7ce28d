package schema

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const (
	DefaultProjectName = "Untitled Project"
	maxProjectName     = 120
	maxIDLength        = 128
)

// ProjectRecord is the stored metadata of a project. Dates are RFC3339.
type ProjectRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ParseProjectRecord parses a project record, normalizing its dates.
func ParseProjectRecord(raw []byte) (ProjectRecord, error) {
	w := &walker{}
	obj, ok := w.decodeRoot(raw)
	if !ok {
		return ProjectRecord{}, w.err()
	}
	var r ProjectRecord
	r.ID, _ = w.str(obj, "id", "", true)
	r.UserID, _ = w.str(obj, "user_id", "", true)
	r.Name, _ = w.str(obj, "name", "", true)
	r.CreatedAt, _ = w.date(obj, "created_at", "")
	r.UpdatedAt, _ = w.date(obj, "updated_at", "")
	if err := w.err(); err != nil {
		return ProjectRecord{}, err
	}
	return r, nil
}

// CreateProjectBody is the body of a create request.
type CreateProjectBody struct {
	Name string
}

// ParseCreateProject accepts an empty body; the name then defaults.
func ParseCreateProject(raw []byte) (CreateProjectBody, error) {
	body := CreateProjectBody{Name: DefaultProjectName}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return body, nil
	}
	w := &walker{}
	obj, ok := w.decodeRoot(raw)
	if !ok {
		return body, w.err()
	}
	if name, ok := w.str(obj, "name", "", false); ok {
		w.checkName(name, "name")
		body.Name = name
	}
	if err := w.err(); err != nil {
		return CreateProjectBody{}, err
	}
	return body, nil
}

// PatchProjectBody carries the optional parts of an update. Absent and null
// members both come back as nil.
type PatchProjectBody struct {
	Name         *string
	Timeline     json.RawMessage
	TextBinItems json.RawMessage
}

func ParsePatchProject(raw []byte) (PatchProjectBody, error) {
	var body PatchProjectBody
	w := &walker{}
	obj, ok := w.decodeRoot(raw)
	if !ok {
		return body, w.err()
	}
	if name, ok := w.str(obj, "name", "", false); ok {
		w.checkName(name, "name")
		body.Name = &name
	}
	if tl, ok := member(obj, "timeline"); ok {
		if _, ok := w.object(tl, "timeline"); ok {
			body.Timeline = tl
		}
	}
	if items, ok := member(obj, "textBinItems"); ok {
		if _, ok := w.array(items, "textBinItems"); ok {
			body.TextBinItems = items
		}
	}
	if err := w.err(); err != nil {
		return PatchProjectBody{}, err
	}
	return body, nil
}

func (w *walker) checkName(name, path string) {
	n := utf8.RuneCountInString(name)
	if n < 1 {
		w.add(path, CodeTooSmall, "must not be empty")
	} else if n > maxProjectName {
		w.add(path, CodeTooBig, "must be at most %d characters", maxProjectName)
	}
}

// ValidateID checks a path parameter identifier.
func ValidateID(id, path string) error {
	w := &walker{}
	if id == "" {
		w.add(path, CodeTooSmall, "must not be empty")
	} else if len(id) > maxIDLength {
		w.add(path, CodeTooBig, "must be at most %d characters", maxIDLength)
	}
	return w.err()
}
