// Package schema turns untrusted JSON into typed timeline values. Parsing is
// total: it either returns a value or a *ValidationError listing every field
// problem found, never a partially built value.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Issue codes.
const (
	CodeInvalidJSON = "invalid_json"
	CodeInvalidType = "invalid_type"
	CodeRequired    = "required"
	CodeInvalidEnum = "invalid_enum"
	CodeTooSmall    = "too_small"
	CodeTooBig      = "too_big"
	CodeNotInteger  = "not_integer"
	CodeCustom      = "custom"
)

// Issue is one violated field-level constraint.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		i := e.Issues[0]
		return fmt.Sprintf("validation failed: %s: %s", displayPath(i.Path), i.Message)
	}
	parts := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		parts = append(parts, displayPath(i.Path)+": "+i.Message)
	}
	return fmt.Sprintf("validation failed with %d issues: %s", len(e.Issues), strings.Join(parts, "; "))
}

func displayPath(p string) string {
	if p == "" {
		return "(root)"
	}
	return p
}

// walker accumulates issues while a document is walked. Objects are kept as
// raw members so opaque payloads survive byte for byte.
type walker struct {
	issues []Issue
}

func (w *walker) add(path, code, format string, args ...any) {
	w.issues = append(w.issues, Issue{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (w *walker) err() error {
	if len(w.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: w.issues}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func index(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func kindOf(raw json.RawMessage) string {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return "null"
	}
	switch b[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// decodeRoot parses the top-level document as an object.
func (w *walker) decodeRoot(raw []byte) (map[string]json.RawMessage, bool) {
	if !json.Valid(raw) {
		w.add("", CodeInvalidJSON, "document is not valid JSON")
		return nil, false
	}
	return w.object(raw, "")
}

func (w *walker) object(raw json.RawMessage, path string) (map[string]json.RawMessage, bool) {
	if k := kindOf(raw); k != "object" {
		w.add(path, CodeInvalidType, "expected object, received %s", k)
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		w.add(path, CodeInvalidType, "expected object: %v", err)
		return nil, false
	}
	return obj, true
}

func (w *walker) array(raw json.RawMessage, path string) ([]json.RawMessage, bool) {
	if k := kindOf(raw); k != "array" {
		w.add(path, CodeInvalidType, "expected array, received %s", k)
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		w.add(path, CodeInvalidType, "expected array: %v", err)
		return nil, false
	}
	return items, true
}

// member returns the raw value for key. Absent and null are the same thing.
func member(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok || kindOf(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func (w *walker) requiredMember(obj map[string]json.RawMessage, key, path string) (json.RawMessage, bool) {
	raw, ok := member(obj, key)
	if !ok {
		w.add(join(path, key), CodeRequired, "required")
	}
	return raw, ok
}

func (w *walker) str(obj map[string]json.RawMessage, key, path string, required bool) (string, bool) {
	var raw json.RawMessage
	var ok bool
	if required {
		raw, ok = w.requiredMember(obj, key, path)
	} else {
		raw, ok = member(obj, key)
	}
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		w.add(join(path, key), CodeInvalidType, "expected string, received %s", kindOf(raw))
		return "", false
	}
	return s, true
}

// optString returns nil for both absent and null. An empty string is a value.
func (w *walker) optString(obj map[string]json.RawMessage, key, path string) *string {
	s, ok := w.str(obj, key, path, false)
	if !ok {
		return nil
	}
	return &s
}

// toNumber accepts JSON numbers and numeric-looking strings. NaN and the
// infinities are not numbers here since they cannot be written back as JSON.
func toNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	switch kindOf(raw) {
	case "number":
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, false
		}
		v, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = v
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = v
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// maxInteger is the largest magnitude an integer field may hold. Every integer
// up to it is exact in a float64 and fits an int on all supported platforms.
const maxInteger = 1<<31 - 1

type bounds struct {
	min, max *float64
	integer  bool
	positive bool
}

func nonNegative() bounds {
	z := 0.0
	return bounds{min: &z}
}

func between(lo, hi float64) bounds {
	return bounds{min: &lo, max: &hi}
}

func (w *walker) checkNumber(f float64, p string, b bounds) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		w.add(p, CodeInvalidType, "expected a finite number, received %v", f)
		return false
	}
	if b.integer {
		if f > maxInteger {
			w.add(p, CodeTooBig, "must be <= %d", maxInteger)
			return false
		}
		if f < -maxInteger {
			w.add(p, CodeTooSmall, "must be >= %d", -maxInteger)
			return false
		}
		if f != math.Trunc(f) {
			w.add(p, CodeNotInteger, "expected integer, received %v", f)
			return false
		}
	}
	if b.min != nil && f < *b.min {
		w.add(p, CodeTooSmall, "must be >= %v", *b.min)
		return false
	}
	if b.positive && f <= 0 {
		w.add(p, CodeTooSmall, "must be > 0")
		return false
	}
	if b.max != nil && f > *b.max {
		w.add(p, CodeTooBig, "must be <= %v", *b.max)
		return false
	}
	return true
}

func (w *walker) number(obj map[string]json.RawMessage, key, path string, required bool, b bounds) (float64, bool) {
	var raw json.RawMessage
	var ok bool
	if required {
		raw, ok = w.requiredMember(obj, key, path)
	} else {
		raw, ok = member(obj, key)
	}
	if !ok {
		return 0, false
	}
	p := join(path, key)
	f, ok := toNumber(raw)
	if !ok {
		w.add(p, CodeInvalidType, "expected number, received %s", kindOf(raw))
		return 0, false
	}
	if !w.checkNumber(f, p, b) {
		return 0, false
	}
	return f, true
}

func (w *walker) integer(obj map[string]json.RawMessage, key, path string, required bool, b bounds) (int, bool) {
	b.integer = true
	f, ok := w.number(obj, key, path, required, b)
	return int(f), ok
}

func (w *walker) optInt(obj map[string]json.RawMessage, key, path string, b bounds) *int {
	i, ok := w.integer(obj, key, path, false, b)
	if !ok {
		return nil
	}
	return &i
}

func (w *walker) optFloat(obj map[string]json.RawMessage, key, path string, b bounds) *float64 {
	f, ok := w.number(obj, key, path, false, b)
	if !ok {
		return nil
	}
	return &f
}

// boolean defaults to false when absent.
func (w *walker) boolean(obj map[string]json.RawMessage, key, path string) bool {
	raw, ok := member(obj, key)
	if !ok {
		return false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		w.add(join(path, key), CodeInvalidType, "expected boolean, received %s", kindOf(raw))
	}
	return v
}

func (w *walker) enum(obj map[string]json.RawMessage, key, path string, required bool, allowed []string) (string, bool) {
	s, ok := w.str(obj, key, path, required)
	if !ok {
		return "", false
	}
	for _, a := range allowed {
		if s == a {
			return s, true
		}
	}
	w.add(join(path, key), CodeInvalidEnum, "expected one of %s, received %q", strings.Join(allowed, ", "), s)
	return "", false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// CanonicalDate normalizes a date-like string to RFC3339 in UTC.
func CanonicalDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC().Format(time.RFC3339), true
	}
	return "", false
}

func (w *walker) date(obj map[string]json.RawMessage, key, path string) (string, bool) {
	raw, ok := w.requiredMember(obj, key, path)
	if !ok {
		return "", false
	}
	p := join(path, key)
	var text string
	switch kindOf(raw) {
	case "string":
		_ = json.Unmarshal(raw, &text)
	case "number":
		text = string(bytes.TrimSpace(raw))
	default:
		w.add(p, CodeInvalidType, "expected date, received %s", kindOf(raw))
		return "", false
	}
	d, ok := CanonicalDate(text)
	if !ok {
		w.add(p, CodeInvalidType, "expected date, received %q", text)
		return "", false
	}
	return d, true
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
