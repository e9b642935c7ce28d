package timeline

import (
	"encoding/json"
	"fmt"
)

// Validate re-checks every invariant over the whole state and returns all
// violations found. It never mutates t and never stops at the first problem.
func (t *Timeline) Validate() Violations {
	var out Violations
	add := func(e *Error) { out = append(out, e) }

	out = append(out, t.validateMediaBin()...)

	trackIDs := make(map[string]bool)
	scrubberTrack := make(map[string]int)
	transitionIDs := make(map[string]bool)

	for ti, tr := range t.tracks {
		tpath := fmt.Sprintf("tracks[%d]", ti)
		if tr.ID == "" {
			add(newError(CodeInvalidField, tpath, "track id is required"))
		} else if trackIDs[tr.ID] {
			add(newError(CodeDuplicateID, tpath, "track id %q is used more than once", tr.ID))
		}
		trackIDs[tr.ID] = true

		for si, s := range tr.Scrubbers {
			spath := fmt.Sprintf("%s.scrubbers[%d]", tpath, si)
			if prev, dup := scrubberTrack[s.ID]; dup {
				add(newError(CodeDuplicateID, spath, "scrubber id %q already used on tracks[%d]", s.ID, prev))
			} else {
				scrubberTrack[s.ID] = ti
			}
			if s.Y != ti {
				add(newError(CodeTrackIndexMismatch, spath, "scrubber %q has y=%d but sits on track %d", s.ID, s.Y, ti))
			}
			if err := checkPlacementFields(s, spath); err != nil {
				add(err)
			} else if err := checkMediaFields(s.MediaBinItem, spath); err != nil {
				add(err)
			}
			if _, ok := t.media[s.SourceMediaBinID]; !ok {
				add(newError(CodeMediaNotFound, spath, "scrubber %q references unknown media %q", s.ID, s.SourceMediaBinID))
			}
			if err := checkTrim(s.TrimBefore, s.TrimAfter, t.srcFrames(s.SourceMediaBinID), spath); err != nil {
				add(err)
			}
			if err := checkBinding(tr, s, s.LeftTransitionID, false, spath); err != nil {
				add(err)
			}
			if err := checkBinding(tr, s, s.RightTransitionID, true, spath); err != nil {
				add(err)
			}
		}

		for _, o := range findOverlaps(tr.Scrubbers, tr.Transitions) {
			if o.bridged {
				continue
			}
			add(newError(CodeOverlapViolation, tpath,
				"scrubbers %q and %q overlap by %.2f frames without a covering transition", o.left.ID, o.right.ID, o.amount))
		}

		for xi, x := range tr.Transitions {
			xpath := fmt.Sprintf("%s.transitions[%d]", tpath, xi)
			if transitionIDs[x.ID] {
				add(newError(CodeDuplicateID, xpath, "transition id %q is used more than once", x.ID))
			}
			transitionIDs[x.ID] = true
			out = append(out, t.validateTransition(tr, x, xpath)...)
		}
	}
	return out
}

func (t *Timeline) validateMediaBin() Violations {
	var out Violations
	seen := make(map[string]bool)
	for i, id := range t.mediaOrder {
		path := fmt.Sprintf("mediaBin[%d]", i)
		if seen[id] {
			out = append(out, newError(CodeDuplicateID, path, "media bin id %q is used more than once", id))
		}
		seen[id] = true
		if err := checkCatalogEntry(*t.media[id], path); err != nil {
			out = append(out, err)
		}
	}
	return out
}

// checkMediaFields covers the descriptive fields shared by bin items and the
// scrubbers copied from them.
func checkMediaFields(m MediaBinItem, path string) *Error {
	switch {
	case m.ID == "":
		return newError(CodeInvalidField, path, "id is required")
	case !validMediaType(m.MediaType):
		return newError(CodeInvalidField, path, "%q has unknown media type %q", m.ID, m.MediaType)
	case !finite(m.DurationInSeconds):
		return newError(CodeInvalidField, path, "%q has a non-finite duration", m.ID)
	case m.MediaWidth < 0 || m.MediaHeight < 0 || m.DurationInSeconds < 0:
		return newError(CodeInvalidField, path, "%q has negative dimensions or duration", m.ID)
	case m.UploadProgress != nil && !validProgress(*m.UploadProgress):
		return newError(CodeInvalidField, path, "upload progress %.1f is outside 0-100", *m.UploadProgress)
	case m.Text != nil && !finite(m.Text.FontSize):
		return newError(CodeInvalidField, path, "%q has a non-finite font size", m.ID)
	case m.Text != nil && !validText(*m.Text):
		return newError(CodeInvalidField, path, "%q has unknown text alignment, weight or template", m.ID)
	case m.GroupedScrubbers != nil && !json.Valid(m.GroupedScrubbers):
		return newError(CodeInvalidField, path, "%q has malformed grouped scrubbers", m.ID)
	}
	return nil
}

// checkCatalogEntry adds the rules that only apply to media bin items.
func checkCatalogEntry(m MediaBinItem, path string) *Error {
	if err := checkMediaFields(m, path); err != nil {
		return err
	}
	if m.MediaType.Playable() && m.MediaURLLocal == nil && m.MediaURLRemote == nil {
		return newError(CodeInvalidField, path, "%s item %q needs a local or remote URL", m.MediaType, m.ID)
	}
	if m.MediaType == MediaText && m.Text == nil {
		return newError(CodeInvalidField, path, "text item %q has no text properties", m.ID)
	}
	return nil
}

func validProgress(p float64) bool {
	return p >= 0 && p <= 100
}

// checkBinding verifies that a scrubber's transition id points at a
// transition on its own track that joins it on the same side.
func checkBinding(tr *Track, s Scrubber, id *string, right bool, path string) *Error {
	if id == nil {
		return nil
	}
	i, ok := findTransition(tr.Transitions, *id)
	if !ok {
		return newError(CodeTransitionNotFound, path, "scrubber %q is bound to unknown transition %q", s.ID, *id)
	}
	side, name := tr.Transitions[i].RightScrubberID, "left"
	if right {
		side, name = tr.Transitions[i].LeftScrubberID, "right"
	}
	if side == nil || *side != s.ID {
		return newError(CodeAdjacencyViolation, path, "scrubber %q names transition %q on its %s but the transition does not join it there", s.ID, *id, name)
	}
	return nil
}

func validMediaType(mt MediaType) bool {
	for _, v := range MediaTypes {
		if v == mt {
			return true
		}
	}
	return false
}

func validText(p TextProperties) bool {
	switch p.TextAlign {
	case AlignLeft, AlignCenter, AlignRight:
	default:
		return false
	}
	switch p.FontWeight {
	case WeightNormal, WeightBold:
	default:
		return false
	}
	return p.Template == nil || *p.Template == TemplateNormal || *p.Template == TemplateGlassy
}

func (t *Timeline) validateTransition(tr *Track, x Transition, path string) Violations {
	var out Violations
	if x.LeftScrubberID == nil && x.RightScrubberID == nil {
		out = append(out, newError(CodeInvalidField, path, "transition %q references no scrubber", x.ID))
		return out
	}
	if x.DurationInFrames < 0 {
		out = append(out, newError(CodeInvalidField, path, "transition %q has negative duration", x.ID))
	}
	if !validPresentation(x.Presentation) || !validTiming(x.Timing) {
		out = append(out, newError(CodeInvalidField, path, "transition %q has unknown presentation or timing", x.ID))
	}

	missing := false
	for _, side := range []*string{x.LeftScrubberID, x.RightScrubberID} {
		if side == nil {
			continue
		}
		if _, ok := findScrubber(tr.Scrubbers, *side); ok {
			continue
		}
		missing = true
		if oti, _ := t.locateScrubber(*side); oti >= 0 {
			out = append(out, newError(CodeAdjacencyViolation, path, "transition %q references scrubber %q on another track", x.ID, *side))
		} else {
			out = append(out, newError(CodeScrubberNotFound, path, "transition %q references unknown scrubber %q", x.ID, *side))
		}
	}
	if missing {
		return out
	}
	if x.LeftScrubberID != nil && x.RightScrubberID != nil && *x.LeftScrubberID == *x.RightScrubberID {
		out = append(out, newError(CodeAdjacencyViolation, path, "transition %q joins a scrubber to itself", x.ID))
		return out
	}
	if x.LeftScrubberID != nil {
		si, _ := findScrubber(tr.Scrubbers, *x.LeftScrubberID)
		if b := tr.Scrubbers[si].RightTransitionID; b == nil || *b != x.ID {
			out = append(out, newError(CodeAdjacencyViolation, path, "scrubber %q is not bound to transition %q on its right", *x.LeftScrubberID, x.ID))
		}
	}
	if x.RightScrubberID != nil {
		si, _ := findScrubber(tr.Scrubbers, *x.RightScrubberID)
		if b := tr.Scrubbers[si].LeftTransitionID; b == nil || *b != x.ID {
			out = append(out, newError(CodeAdjacencyViolation, path, "scrubber %q is not bound to transition %q on its left", *x.RightScrubberID, x.ID))
		}
	}
	if err := t.checkBoundTransition(tr.Scrubbers, x, path); err != nil {
		out = append(out, err)
	}
	if x.LeftScrubberID == nil || x.RightScrubberID == nil {
		side := x.LeftScrubberID
		if side == nil {
			side = x.RightScrubberID
		}
		si, _ := findScrubber(tr.Scrubbers, *side)
		if float64(x.DurationInFrames) > t.budget(tr.Scrubbers[si]) {
			out = append(out, newError(CodeDurationExceedsOverlap, path,
				"transition %q lasts %d frames, more than scrubber %q allows", x.ID, x.DurationInFrames, *side))
		}
	}
	return out
}
