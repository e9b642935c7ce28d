package timeline

import (
	"fmt"
	"strings"
)

// Kind groups error codes into the categories callers react to.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindReferentialIntegrity Kind = "referential_integrity"
	KindInvariant            Kind = "invariant_violation"
	KindConcurrency          Kind = "concurrency"
	KindExternal             Kind = "external_failure"
)

type Code string

const (
	CodeInvalidField              Code = "InvalidField"
	CodeDuplicateID               Code = "DuplicateId"
	CodeNotFound                  Code = "NotFound"
	CodeMediaNotFound             Code = "MediaNotFound"
	CodeTrackNotFound             Code = "TrackNotFound"
	CodeScrubberNotFound          Code = "ScrubberNotFound"
	CodeTransitionNotFound        Code = "TransitionNotFound"
	CodeReferencedByScrubber      Code = "ReferencedByScrubber"
	CodeReferencedByTransition    Code = "ReferencedByTransition"
	CodeOverlapViolation          Code = "OverlapViolation"
	CodeAdjacencyViolation        Code = "AdjacencyViolation"
	CodeDurationExceedsOverlap    Code = "DurationExceedsOverlap"
	CodeTransitionOverlapExceeded Code = "TransitionOverlapExceeded"
	CodeInvalidTrim               Code = "InvalidTrim"
	CodeTrackIndexMismatch        Code = "TrackIndexMismatch"
	CodeEmptyTimeline             Code = "EmptyTimeline"
	CodeRenderInProgress          Code = "RenderInProgress"
	CodeRenderFailed              Code = "RenderFailed"
)

var codeKinds = map[Code]Kind{
	CodeInvalidField:              KindValidation,
	CodeDuplicateID:               KindValidation,
	CodeNotFound:                  KindReferentialIntegrity,
	CodeMediaNotFound:             KindReferentialIntegrity,
	CodeTrackNotFound:             KindReferentialIntegrity,
	CodeScrubberNotFound:          KindReferentialIntegrity,
	CodeTransitionNotFound:        KindReferentialIntegrity,
	CodeReferencedByScrubber:      KindReferentialIntegrity,
	CodeReferencedByTransition:    KindReferentialIntegrity,
	CodeOverlapViolation:          KindInvariant,
	CodeAdjacencyViolation:        KindInvariant,
	CodeDurationExceedsOverlap:    KindInvariant,
	CodeTransitionOverlapExceeded: KindInvariant,
	CodeInvalidTrim:               KindInvariant,
	CodeTrackIndexMismatch:        KindInvariant,
	CodeEmptyTimeline:             KindInvariant,
	CodeRenderInProgress:          KindConcurrency,
	CodeRenderFailed:              KindExternal,
}

// Error is a single rejected operation or invariant violation. Path points at
// the offending entity, e.g. "tracks[0].scrubbers[2]".
type Error struct {
	Code    Code
	Message string
	Path    string
}

// Sentinels for errors.Is. Matching compares codes only.
var (
	ErrInvalidField              = &Error{Code: CodeInvalidField}
	ErrDuplicateID               = &Error{Code: CodeDuplicateID}
	ErrNotFound                  = &Error{Code: CodeNotFound}
	ErrMediaNotFound             = &Error{Code: CodeMediaNotFound}
	ErrTrackNotFound             = &Error{Code: CodeTrackNotFound}
	ErrScrubberNotFound          = &Error{Code: CodeScrubberNotFound}
	ErrTransitionNotFound        = &Error{Code: CodeTransitionNotFound}
	ErrReferencedByScrubber      = &Error{Code: CodeReferencedByScrubber}
	ErrReferencedByTransition    = &Error{Code: CodeReferencedByTransition}
	ErrOverlapViolation          = &Error{Code: CodeOverlapViolation}
	ErrAdjacencyViolation        = &Error{Code: CodeAdjacencyViolation}
	ErrDurationExceedsOverlap    = &Error{Code: CodeDurationExceedsOverlap}
	ErrTransitionOverlapExceeded = &Error{Code: CodeTransitionOverlapExceeded}
	ErrInvalidTrim               = &Error{Code: CodeInvalidTrim}
	ErrTrackIndexMismatch        = &Error{Code: CodeTrackIndexMismatch}
	ErrEmptyTimeline             = &Error{Code: CodeEmptyTimeline}
	ErrRenderInProgress          = &Error{Code: CodeRenderInProgress}
	ErrRenderFailed              = &Error{Code: CodeRenderFailed}
)

func newError(code Code, path, format string, args ...any) *Error {
	return &Error{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// NewError builds an Error outside this package (render, editor).
func NewError(code Code, format string, args ...any) *Error {
	return newError(code, "", format, args...)
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Path != "" {
		msg += " (at " + e.Path + ")"
	}
	return msg
}

func (e *Error) Kind() Kind {
	if k, ok := codeKinds[e.Code]; ok {
		return k
	}
	return KindValidation
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Violations is the full set of problems found by Validate.
type Violations []*Error

func (v Violations) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d timeline violation(s): %s", len(v), strings.Join(parts, "; "))
}

// Err returns nil for an empty set so callers can use the usual err != nil check.
func (v Violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Count returns how many violations carry the given code.
func (v Violations) Count(code Code) int {
	n := 0
	for _, e := range v {
		if e.Code == code {
			n++
		}
	}
	return n
}
