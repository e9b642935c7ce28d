package timeline

import (
	"math"
	"sort"
)

// overlap is an intersecting pair of scrubbers on one track, left starting first.
type overlap struct {
	left    Scrubber
	right   Scrubber
	amount  float64
	bridged bool
}

func (o overlap) involves(id string) bool {
	return o.left.ID == id || o.right.ID == id
}

// sortedByLeft returns the scrubbers ordered by position, ties broken by id.
func sortedByLeft(scrubbers []Scrubber) []Scrubber {
	sorted := make([]Scrubber, len(scrubbers))
	copy(sorted, scrubbers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Left != sorted[j].Left {
			return sorted[i].Left < sorted[j].Left
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// findOverlaps sorts the scrubbers by left and scans every earlier scrubber
// still running when the next one starts. An intersection is bridged only when
// the pair is consecutive and a transition from left to right covers it.
func findOverlaps(scrubbers []Scrubber, transitions []Transition) []overlap {
	sorted := sortedByLeft(scrubbers)
	var out []overlap
	for i := 1; i < len(sorted); i++ {
		cur := sorted[i]
		for j := 0; j < i; j++ {
			prev := sorted[j]
			amount := math.Min(prev.End(), cur.End()) - cur.Left
			if amount <= 0 {
				continue
			}
			o := overlap{left: prev, right: cur, amount: amount}
			if j == i-1 {
				if tr, ok := findBridge(transitions, prev.ID, cur.ID); ok && amount <= float64(tr.DurationInFrames) {
					o.bridged = true
				}
			}
			out = append(out, o)
		}
	}
	return out
}

func findBridge(transitions []Transition, left, right string) (Transition, bool) {
	for _, tr := range transitions {
		if tr.Bridges(left, right) {
			return tr, true
		}
	}
	return Transition{}, false
}

// consecutive reports whether right directly follows left in position order.
func consecutive(scrubbers []Scrubber, left, right string) bool {
	sorted := sortedByLeft(scrubbers)
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].ID == left {
			return sorted[i+1].ID == right
		}
	}
	return false
}

func findScrubber(scrubbers []Scrubber, id string) (int, bool) {
	for i, s := range scrubbers {
		if s.ID == id {
			return i, true
		}
	}
	return -1, false
}

func findTransition(transitions []Transition, id string) (int, bool) {
	for i, tr := range transitions {
		if tr.ID == id {
			return i, true
		}
	}
	return -1, false
}

// sourceFrames converts a media duration into whole frames. Zero means the
// source has no intrinsic length (stills, text).
func sourceFrames(durationInSeconds float64, fps int) int {
	if !finite(durationInSeconds) || durationInSeconds <= 0 || fps <= 0 {
		return 0
	}
	frames := math.Ceil(durationInSeconds*float64(fps) - 1e-9)
	if frames >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(frames)
}

// finite reports whether every value is neither NaN nor infinite.
func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// checkPlacementFields rejects scrubber positions that cannot be laid out or
// serialized.
func checkPlacementFields(s Scrubber, path string) *Error {
	if !finite(s.Left, s.Width, s.LeftPlayer, s.TopPlayer, s.WidthPlayer, s.HeightPlayer) {
		return newError(CodeInvalidField, path, "scrubber %q has a non-finite position or size", s.ID)
	}
	if s.Left < 0 || s.Width < 0 {
		return newError(CodeInvalidField, path, "scrubber %q has negative left or width", s.ID)
	}
	return nil
}

// effectiveFrames is trimAfter - trimBefore with absent bounds defaulting to
// the start and the full source length. Zero when the length is unknown.
func effectiveFrames(s Scrubber, srcFrames int) int {
	before, after := 0, srcFrames
	if s.TrimBefore != nil {
		before = *s.TrimBefore
	}
	if s.TrimAfter != nil {
		after = *s.TrimAfter
	}
	if after <= 0 || after <= before {
		return 0
	}
	return after - before
}

// overlapBudget is how far a transition may eat into the scrubber.
func overlapBudget(s Scrubber, srcFrames int) float64 {
	budget := s.Width
	if eff := effectiveFrames(s, srcFrames); eff > 0 && float64(eff) < budget {
		budget = float64(eff)
	}
	return budget
}

// checkTrim enforces 0 <= trimBefore < trimAfter <= srcFrames. The upper
// bound only applies when the source length is known.
func checkTrim(before, after *int, srcFrames int, path string) *Error {
	if before == nil && after == nil {
		return nil
	}
	b := 0
	if before != nil {
		if *before < 0 {
			return newError(CodeInvalidTrim, path, "trimBefore %d is negative", *before)
		}
		b = *before
	}
	if after != nil {
		if *after <= b {
			return newError(CodeInvalidTrim, path, "trimBefore %d must be less than trimAfter %d", b, *after)
		}
		if srcFrames > 0 && *after > srcFrames {
			return newError(CodeInvalidTrim, path, "trimAfter %d exceeds source length of %d frames", *after, srcFrames)
		}
		return nil
	}
	if srcFrames > 0 && b >= srcFrames {
		return newError(CodeInvalidTrim, path, "trimBefore %d is past source length of %d frames", b, srcFrames)
	}
	return nil
}
