// Package export writes a timeline track as a CMX3600-style edit decision
// list that NLEs can import.
package export

// Event is one edit in the list. All positions are frames at the list's
// frame rate.
type Event struct {
	ScrubberID string
	ClipName   string
	MediaPath  string
	Channel    string // "V" or "A"
	SourceIn   int
	SourceOut  int
	RecordIn   int
	RecordOut  int

	// EditType is "C" for a cut, "D" for a dissolve or "W001" for a wipe.
	EditType           string
	TransitionDuration int
}

// Result is what an export produced.
type Result struct {
	Format     string   `json:"format"`
	Title      string   `json:"title"`
	TrackID    string   `json:"trackId"`
	EventCount int      `json:"eventCount"`
	Skipped    []string `json:"skipped"`
	EDL        string   `json:"edl"`
	OutputPath string   `json:"outputPath,omitempty"`
}
