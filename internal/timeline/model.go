package timeline

import "fmt"

// Timeline is the in-memory composition of one project. Tracks are ordered
// (the order is the compositing z-order); the media bin keeps insertion order
// so a snapshot reproduces it exactly.
//
// A Timeline is not safe for concurrent use. Sessions serialize mutations and
// hand Clone() copies to anything running concurrently.
type Timeline struct {
	fps        int
	tracks     []*Track
	media      map[string]*MediaBinItem
	mediaOrder []string
}

// New returns an empty timeline without tracks.
func New(fps int) *Timeline {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Timeline{
		fps:   fps,
		media: make(map[string]*MediaBinItem),
	}
}

// NewDefault returns the layout new projects start with: four empty tracks.
func NewDefault(fps int) *Timeline {
	t := New(fps)
	for i := 1; i <= 4; i++ {
		t.tracks = append(t.tracks, &Track{
			ID:          fmt.Sprintf("track-%d", i),
			Scrubbers:   []Scrubber{},
			Transitions: []Transition{},
		})
	}
	return t
}

// Restore builds a timeline from already-parsed parts without checking
// invariants. Call Validate afterwards to find what is wrong with it.
func Restore(fps int, tracks []Track, media []MediaBinItem) *Timeline {
	t := New(fps)
	for _, tr := range tracks {
		c := tr.clone()
		t.tracks = append(t.tracks, &c)
	}
	for _, m := range media {
		c := m.clone()
		if _, dup := t.media[c.ID]; !dup {
			t.mediaOrder = append(t.mediaOrder, c.ID)
		}
		t.media[c.ID] = &c
	}
	return t
}

func (t *Timeline) FPS() int {
	return t.fps
}

// Clone returns a deep copy that shares nothing with t.
func (t *Timeline) Clone() *Timeline {
	out := New(t.fps)
	for _, tr := range t.tracks {
		c := tr.clone()
		out.tracks = append(out.tracks, &c)
	}
	for _, id := range t.mediaOrder {
		c := t.media[id].clone()
		out.media[id] = &c
		out.mediaOrder = append(out.mediaOrder, id)
	}
	return out
}

// Tracks returns a copy of the tracks in z-order.
func (t *Timeline) Tracks() []Track {
	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = tr.clone()
	}
	return out
}

func (t *Timeline) Track(id string) (Track, bool) {
	if i := t.trackIndex(id); i >= 0 {
		return t.tracks[i].clone(), true
	}
	return Track{}, false
}

// MediaBin returns a copy of the catalog in insertion order.
func (t *Timeline) MediaBin() []MediaBinItem {
	out := make([]MediaBinItem, 0, len(t.mediaOrder))
	for _, id := range t.mediaOrder {
		out = append(out, t.media[id].clone())
	}
	return out
}

func (t *Timeline) MediaBinItem(id string) (MediaBinItem, bool) {
	m, ok := t.media[id]
	if !ok {
		return MediaBinItem{}, false
	}
	return m.clone(), true
}

// Scrubber looks a scrubber up across all tracks and returns its track id.
func (t *Timeline) Scrubber(id string) (Scrubber, string, bool) {
	ti, si := t.locateScrubber(id)
	if ti < 0 {
		return Scrubber{}, "", false
	}
	return t.tracks[ti].Scrubbers[si].clone(), t.tracks[ti].ID, true
}

// ScrubberCount is the number of scrubbers placed across all tracks.
func (t *Timeline) ScrubberCount() int {
	n := 0
	for _, tr := range t.tracks {
		n += len(tr.Scrubbers)
	}
	return n
}

func (t *Timeline) trackIndex(id string) int {
	for i, tr := range t.tracks {
		if tr.ID == id {
			return i
		}
	}
	return -1
}

func (t *Timeline) locateScrubber(id string) (int, int) {
	for ti, tr := range t.tracks {
		if si, ok := findScrubber(tr.Scrubbers, id); ok {
			return ti, si
		}
	}
	return -1, -1
}

func (t *Timeline) locateTransition(id string) (int, int) {
	for ti, tr := range t.tracks {
		if i, ok := findTransition(tr.Transitions, id); ok {
			return ti, i
		}
	}
	return -1, -1
}

func (t *Timeline) srcFrames(mediaID string) int {
	m, ok := t.media[mediaID]
	if !ok {
		return 0
	}
	return sourceFrames(m.DurationInSeconds, t.fps)
}

func (t *Timeline) budget(s Scrubber) float64 {
	return overlapBudget(s, t.srcFrames(s.SourceMediaBinID))
}

// AddMediaBinItem registers a new catalog entry.
func (t *Timeline) AddMediaBinItem(item MediaBinItem) error {
	if item.ID == "" {
		return newError(CodeInvalidField, "mediaBin", "media bin item id is required")
	}
	if _, exists := t.media[item.ID]; exists {
		return newError(CodeDuplicateID, "mediaBin", "media bin item %q already exists", item.ID)
	}
	if item.MediaType == MediaGroupedLegacy {
		item.MediaType = MediaGrouped
	}
	if err := checkCatalogEntry(item, "mediaBin"); err != nil {
		return err
	}
	c := item.clone()
	t.media[c.ID] = &c
	t.mediaOrder = append(t.mediaOrder, c.ID)
	return nil
}

// RemoveMediaBinItem deletes a catalog entry. It refuses while any scrubber
// still points at it instead of silently cascading.
func (t *Timeline) RemoveMediaBinItem(id string) error {
	if _, ok := t.media[id]; !ok {
		return newError(CodeNotFound, "mediaBin", "media bin item %q not found", id)
	}
	refs := 0
	for _, tr := range t.tracks {
		for _, s := range tr.Scrubbers {
			if s.SourceMediaBinID == id {
				refs++
			}
		}
	}
	if refs > 0 {
		return newError(CodeReferencedByScrubber, "mediaBin", "media bin item %q is used by %d scrubber(s)", id, refs)
	}
	delete(t.media, id)
	for i, mid := range t.mediaOrder {
		if mid == id {
			t.mediaOrder = append(t.mediaOrder[:i], t.mediaOrder[i+1:]...)
			break
		}
	}
	return nil
}

// UploadUpdate carries the mutable part of a media bin item. A nil Progress
// means the item is no longer uploading; nil URLs leave the current value.
type UploadUpdate struct {
	Progress       *float64
	IsUploading    bool
	MediaURLLocal  *string
	MediaURLRemote *string
}

func (t *Timeline) UpdateMediaUpload(id string, u UploadUpdate) error {
	m, ok := t.media[id]
	if !ok {
		return newError(CodeNotFound, "mediaBin", "media bin item %q not found", id)
	}
	if u.Progress != nil && !validProgress(*u.Progress) {
		return newError(CodeInvalidField, "mediaBin", "upload progress %.1f is outside 0-100", *u.Progress)
	}
	m.UploadProgress = cloneFloat(u.Progress)
	m.IsUploading = u.IsUploading
	if u.MediaURLLocal != nil {
		m.MediaURLLocal = cloneString(u.MediaURLLocal)
	}
	if u.MediaURLRemote != nil {
		m.MediaURLRemote = cloneString(u.MediaURLRemote)
	}
	return nil
}

// AddTrack appends an empty track on top of the stack and returns its id.
func (t *Timeline) AddTrack(id string) (string, error) {
	if id == "" {
		id = NewID()
	}
	if t.trackIndex(id) >= 0 {
		return "", newError(CodeDuplicateID, "tracks", "track %q already exists", id)
	}
	t.tracks = append(t.tracks, &Track{ID: id, Scrubbers: []Scrubber{}, Transitions: []Transition{}})
	return id, nil
}

// RemoveTrack drops a track with its scrubbers and transitions and shifts the
// y index of every track above it.
func (t *Timeline) RemoveTrack(id string) error {
	idx := t.trackIndex(id)
	if idx < 0 {
		return newError(CodeTrackNotFound, "tracks", "track %q not found", id)
	}
	t.tracks = append(t.tracks[:idx], t.tracks[idx+1:]...)
	for i := idx; i < len(t.tracks); i++ {
		for j := range t.tracks[i].Scrubbers {
			t.tracks[i].Scrubbers[j].Y = i
		}
	}
	return nil
}

// PlaceScrubber puts a scrubber on a track. The scrubber's y is set from the
// track position. Transitions already reserved for this scrubber id bind to it
// and are checked now that both sides exist.
func (t *Timeline) PlaceScrubber(trackID string, s Scrubber) error {
	ti := t.trackIndex(trackID)
	if ti < 0 {
		return newError(CodeTrackNotFound, "tracks", "track %q not found", trackID)
	}
	track := t.tracks[ti]
	path := fmt.Sprintf("tracks[%d].scrubbers", ti)

	if s.ID == "" {
		return newError(CodeInvalidField, path, "scrubber id is required")
	}
	if a, _ := t.locateScrubber(s.ID); a >= 0 {
		return newError(CodeDuplicateID, path, "scrubber %q already exists", s.ID)
	}
	if err := checkPlacementFields(s, path); err != nil {
		return err
	}
	if s.MediaType == MediaGroupedLegacy {
		s.MediaType = MediaGrouped
	}
	if err := checkMediaFields(s.MediaBinItem, path); err != nil {
		return err
	}
	if _, ok := t.media[s.SourceMediaBinID]; !ok {
		return newError(CodeMediaNotFound, path, "scrubber %q references unknown media %q", s.ID, s.SourceMediaBinID)
	}
	if err := checkTrim(s.TrimBefore, s.TrimAfter, t.srcFrames(s.SourceMediaBinID), path); err != nil {
		return err
	}

	if err := t.checkReservedElsewhere(s.ID, ti, path); err != nil {
		return err
	}

	placed := s.clone()
	placed.Y = ti
	bindReservations(&placed, track.Transitions)

	candidate := append(append([]Scrubber(nil), track.Scrubbers...), placed)
	if err := t.checkPlacement(candidate, track.Transitions, placed.ID, path); err != nil {
		return err
	}

	track.Scrubbers = append(track.Scrubbers, placed)
	return nil
}

// bindReservations points the scrubber at the transitions of its track that
// name it, and clears any other binding.
func bindReservations(s *Scrubber, transitions []Transition) {
	s.LeftTransitionID = nil
	s.RightTransitionID = nil
	for _, tr := range transitions {
		if tr.RightScrubberID != nil && *tr.RightScrubberID == s.ID {
			s.LeftTransitionID = StringPtr(tr.ID)
		}
		if tr.LeftScrubberID != nil && *tr.LeftScrubberID == s.ID {
			s.RightTransitionID = StringPtr(tr.ID)
		}
	}
}

// checkReservedElsewhere rejects a scrubber that a transition on any track
// other than ti refers to. Transitions only join scrubbers of their own track.
func (t *Timeline) checkReservedElsewhere(scrubberID string, ti int, path string) *Error {
	for oi, other := range t.tracks {
		if oi == ti {
			continue
		}
		for _, tr := range other.Transitions {
			if tr.References(scrubberID) {
				return newError(CodeAdjacencyViolation, path,
					"scrubber %q is referenced by transition %q on track %q", scrubberID, tr.ID, other.ID)
			}
		}
	}
	return nil
}

// checkPlacement verifies the overlaps touching id and every fully bound
// transition of the candidate track layout.
func (t *Timeline) checkPlacement(candidate []Scrubber, transitions []Transition, id, path string) *Error {
	for _, o := range findOverlaps(candidate, transitions) {
		if o.bridged || !o.involves(id) {
			continue
		}
		return newError(CodeOverlapViolation, path,
			"scrubber %q overlaps %q by %.2f frames without a covering transition", o.right.ID, o.left.ID, o.amount)
	}
	for _, tr := range transitions {
		if err := t.checkBoundTransition(candidate, tr, path); err != nil {
			return err
		}
	}
	return nil
}

// checkBoundTransition validates a transition whose two scrubbers are both on
// the given layout. Transitions still waiting for a side are skipped.
func (t *Timeline) checkBoundTransition(scrubbers []Scrubber, tr Transition, path string) *Error {
	if tr.LeftScrubberID == nil || tr.RightScrubberID == nil {
		return nil
	}
	li, lok := findScrubber(scrubbers, *tr.LeftScrubberID)
	ri, rok := findScrubber(scrubbers, *tr.RightScrubberID)
	if !lok || !rok {
		return nil
	}
	if !consecutive(scrubbers, *tr.LeftScrubberID, *tr.RightScrubberID) {
		return newError(CodeAdjacencyViolation, path,
			"transition %q: %q and %q are not adjacent", tr.ID, *tr.LeftScrubberID, *tr.RightScrubberID)
	}
	d := float64(tr.DurationInFrames)
	if d > t.budget(scrubbers[li]) || d > t.budget(scrubbers[ri]) {
		return newError(CodeDurationExceedsOverlap, path,
			"transition %q lasts %d frames, more than its scrubbers allow", tr.ID, tr.DurationInFrames)
	}
	return nil
}

// MoveScrubber repositions a scrubber, possibly onto the track at index newY.
// On any violation the scrubber stays where it was.
func (t *Timeline) MoveScrubber(trackID, scrubberID string, newLeft float64, newY int) error {
	ti := t.trackIndex(trackID)
	if ti < 0 {
		return newError(CodeTrackNotFound, "tracks", "track %q not found", trackID)
	}
	src := t.tracks[ti]
	si, ok := findScrubber(src.Scrubbers, scrubberID)
	if !ok {
		return newError(CodeScrubberNotFound, fmt.Sprintf("tracks[%d].scrubbers", ti), "scrubber %q is not on track %q", scrubberID, trackID)
	}
	if newY < 0 || newY >= len(t.tracks) {
		return newError(CodeTrackNotFound, "tracks", "no track at index %d", newY)
	}
	if newLeft < 0 || !finite(newLeft) {
		return newError(CodeInvalidField, fmt.Sprintf("tracks[%d].scrubbers[%d]", ti, si), "left must be non-negative")
	}

	moved := src.Scrubbers[si].clone()
	moved.Left = newLeft
	moved.Y = newY
	path := fmt.Sprintf("tracks[%d].scrubbers", newY)

	if newY == ti {
		candidate := append([]Scrubber(nil), src.Scrubbers...)
		candidate[si] = moved
		if err := t.checkPlacement(candidate, src.Transitions, scrubberID, path); err != nil {
			return err
		}
		src.Scrubbers[si] = moved
		return nil
	}

	for _, tr := range src.Transitions {
		if tr.References(scrubberID) {
			return newError(CodeAdjacencyViolation, path,
				"scrubber %q is bridged by transition %q and cannot leave track %q", scrubberID, tr.ID, trackID)
		}
	}
	if err := t.checkReservedElsewhere(scrubberID, newY, path); err != nil {
		return err
	}
	dst := t.tracks[newY]
	bindReservations(&moved, dst.Transitions)
	candidate := append(append([]Scrubber(nil), dst.Scrubbers...), moved)
	if err := t.checkPlacement(candidate, dst.Transitions, scrubberID, path); err != nil {
		return err
	}
	src.Scrubbers = append(src.Scrubbers[:si:si], src.Scrubbers[si+1:]...)
	dst.Scrubbers = append(dst.Scrubbers, moved)
	return nil
}

// TrimScrubber sets new trim bounds; nil clears a bound. Transitions bound to
// the scrubber must still fit inside its shrunken overlap budget.
func (t *Timeline) TrimScrubber(scrubberID string, trimBefore, trimAfter *int) error {
	ti, si := t.locateScrubber(scrubberID)
	if ti < 0 {
		return newError(CodeScrubberNotFound, "tracks", "scrubber %q not found", scrubberID)
	}
	track := t.tracks[ti]
	path := fmt.Sprintf("tracks[%d].scrubbers[%d]", ti, si)
	trimmed := track.Scrubbers[si].clone()
	if err := checkTrim(trimBefore, trimAfter, t.srcFrames(trimmed.SourceMediaBinID), path); err != nil {
		return err
	}
	trimmed.TrimBefore = cloneInt(trimBefore)
	trimmed.TrimAfter = cloneInt(trimAfter)

	budget := t.budget(trimmed)
	for _, tr := range track.Transitions {
		if tr.References(scrubberID) && float64(tr.DurationInFrames) > budget {
			return newError(CodeTransitionOverlapExceeded, path,
				"transition %q lasts %d frames but the trimmed scrubber allows %.2f", tr.ID, tr.DurationInFrames, budget)
		}
	}
	track.Scrubbers[si] = trimmed
	return nil
}

// RemoveScrubber deletes a scrubber that no transition refers to.
func (t *Timeline) RemoveScrubber(scrubberID string) error {
	ti, si := t.locateScrubber(scrubberID)
	if ti < 0 {
		return newError(CodeScrubberNotFound, "tracks", "scrubber %q not found", scrubberID)
	}
	track := t.tracks[ti]
	for _, tr := range track.Transitions {
		if tr.References(scrubberID) {
			return newError(CodeReferencedByTransition, fmt.Sprintf("tracks[%d].scrubbers[%d]", ti, si),
				"scrubber %q is bridged by transition %q", scrubberID, tr.ID)
		}
	}
	track.Scrubbers = append(track.Scrubbers[:si:si], track.Scrubbers[si+1:]...)
	return nil
}

// AddTransition bridges two scrubbers on a track. A side may name a scrubber
// that is not placed yet; it is checked when that scrubber is placed.
func (t *Timeline) AddTransition(trackID string, tr Transition) error {
	ti := t.trackIndex(trackID)
	if ti < 0 {
		return newError(CodeTrackNotFound, "tracks", "track %q not found", trackID)
	}
	track := t.tracks[ti]
	path := fmt.Sprintf("tracks[%d].transitions", ti)

	if tr.ID == "" {
		return newError(CodeInvalidField, path, "transition id is required")
	}
	if a, _ := t.locateTransition(tr.ID); a >= 0 {
		return newError(CodeDuplicateID, path, "transition %q already exists", tr.ID)
	}
	if tr.LeftScrubberID == nil && tr.RightScrubberID == nil {
		return newError(CodeInvalidField, path, "transition %q must reference at least one scrubber", tr.ID)
	}
	if tr.DurationInFrames < 0 {
		return newError(CodeInvalidField, path, "transition %q has negative duration", tr.ID)
	}
	if !validPresentation(tr.Presentation) || !validTiming(tr.Timing) {
		return newError(CodeInvalidField, path, "transition %q has unknown presentation or timing", tr.ID)
	}
	if tr.LeftScrubberID != nil && tr.RightScrubberID != nil && *tr.LeftScrubberID == *tr.RightScrubberID {
		return newError(CodeAdjacencyViolation, path, "transition %q joins scrubber %q to itself", tr.ID, *tr.LeftScrubberID)
	}

	for _, side := range []*string{tr.LeftScrubberID, tr.RightScrubberID} {
		if side == nil {
			continue
		}
		if oti, _ := t.locateScrubber(*side); oti >= 0 && oti != ti {
			return newError(CodeAdjacencyViolation, path, "scrubber %q is on another track", *side)
		}
		if err := t.checkReservedElsewhere(*side, ti, path); err != nil {
			return err
		}
	}
	for _, existing := range track.Transitions {
		if tr.LeftScrubberID != nil && existing.LeftScrubberID != nil && *existing.LeftScrubberID == *tr.LeftScrubberID {
			return newError(CodeAdjacencyViolation, path, "scrubber %q already has a transition on its right", *tr.LeftScrubberID)
		}
		if tr.RightScrubberID != nil && existing.RightScrubberID != nil && *existing.RightScrubberID == *tr.RightScrubberID {
			return newError(CodeAdjacencyViolation, path, "scrubber %q already has a transition on its left", *tr.RightScrubberID)
		}
	}

	added := tr.clone()
	d := float64(added.DurationInFrames)
	for _, side := range []*string{added.LeftScrubberID, added.RightScrubberID} {
		if side == nil {
			continue
		}
		if si, ok := findScrubber(track.Scrubbers, *side); ok && d > t.budget(track.Scrubbers[si]) {
			return newError(CodeDurationExceedsOverlap, path,
				"transition %q lasts %d frames, more than scrubber %q allows", added.ID, added.DurationInFrames, *side)
		}
	}
	if err := t.checkBoundTransition(track.Scrubbers, added, path); err != nil {
		return err
	}

	track.Transitions = append(track.Transitions, added)
	t.bind(track, added)
	return nil
}

func (t *Timeline) bind(track *Track, tr Transition) {
	for i := range track.Scrubbers {
		s := &track.Scrubbers[i]
		if tr.LeftScrubberID != nil && s.ID == *tr.LeftScrubberID {
			s.RightTransitionID = StringPtr(tr.ID)
		}
		if tr.RightScrubberID != nil && s.ID == *tr.RightScrubberID {
			s.LeftTransitionID = StringPtr(tr.ID)
		}
	}
}

// RemoveTransition deletes a transition and clears the scrubber bindings to it.
func (t *Timeline) RemoveTransition(id string) error {
	ti, i := t.locateTransition(id)
	if ti < 0 {
		return newError(CodeNotFound, "tracks", "transition %q not found", id)
	}
	track := t.tracks[ti]
	track.Transitions = append(track.Transitions[:i:i], track.Transitions[i+1:]...)
	for j := range track.Scrubbers {
		s := &track.Scrubbers[j]
		if s.LeftTransitionID != nil && *s.LeftTransitionID == id {
			s.LeftTransitionID = nil
		}
		if s.RightTransitionID != nil && *s.RightTransitionID == id {
			s.RightTransitionID = nil
		}
	}
	return nil
}

func validPresentation(p Presentation) bool {
	for _, v := range Presentations {
		if v == p {
			return true
		}
	}
	return false
}

func validTiming(v Timing) bool {
	for _, t := range Timings {
		if t == v {
			return true
		}
	}
	return false
}
