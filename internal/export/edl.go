package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

const maxClipNameLen = 64

// FromTimeline builds the events of one track, ordered by position. An empty
// trackID selects the first track. Text and grouped scrubbers have no source
// file and are reported as skipped.
func FromTimeline(t *timeline.Timeline, trackID, title string) (*Result, error) {
	tracks := t.Tracks()
	var track *timeline.Track
	for i := range tracks {
		if trackID == "" || tracks[i].ID == trackID {
			track = &tracks[i]
			break
		}
	}
	if track == nil {
		return nil, timeline.NewError(timeline.CodeTrackNotFound, "track %q not found", trackID)
	}

	scrubbers := append([]timeline.Scrubber(nil), track.Scrubbers...)
	sort.SliceStable(scrubbers, func(i, j int) bool { return scrubbers[i].Left < scrubbers[j].Left })

	transitions := make(map[string]timeline.Transition, len(track.Transitions))
	for _, tr := range track.Transitions {
		transitions[tr.ID] = tr
	}

	res := &Result{Format: "edl", Title: title, TrackID: track.ID, Skipped: []string{}}
	var events []Event
	for _, s := range scrubbers {
		path := mediaPath(t, s)
		if path == "" {
			res.Skipped = append(res.Skipped, s.ID)
			continue
		}

		in := 0
		if s.TrimBefore != nil {
			in = *s.TrimBefore
		}
		length := int(math.Round(s.Width))
		recIn := int(math.Round(s.Left))

		ev := Event{
			ScrubberID: s.ID,
			ClipName:   SanitizeName(s.Name, maxClipNameLen),
			MediaPath:  path,
			Channel:    "V",
			SourceIn:   in,
			SourceOut:  in + length,
			RecordIn:   recIn,
			RecordOut:  recIn + length,
			EditType:   "C",
		}
		if s.MediaType == timeline.MediaAudio {
			ev.Channel = "A"
		}
		if s.LeftTransitionID != nil {
			if tr, ok := transitions[*s.LeftTransitionID]; ok && tr.LeftScrubberID != nil {
				ev.EditType = editType(tr.Presentation)
				ev.TransitionDuration = tr.DurationInFrames
			}
		}
		events = append(events, ev)
	}

	res.EventCount = len(events)
	res.EDL = GenerateEDL(events, title, t.FPS())
	return res, nil
}

func mediaPath(t *timeline.Timeline, s timeline.Scrubber) string {
	if s.MediaType == timeline.MediaText || s.MediaType == timeline.MediaGrouped {
		return ""
	}
	item := s.MediaBinItem
	if m, ok := t.MediaBinItem(s.SourceMediaBinID); ok {
		item = m
	}
	if item.MediaURLRemote != nil && *item.MediaURLRemote != "" {
		return *item.MediaURLRemote
	}
	if item.MediaURLLocal != nil && *item.MediaURLLocal != "" {
		return *item.MediaURLLocal
	}
	return ""
}

func editType(p timeline.Presentation) string {
	switch p {
	case timeline.PresentationFade:
		return "D"
	case timeline.PresentationWipe, timeline.PresentationClockWipe:
		return "W001"
	default:
		return "D"
	}
}

// GenerateEDL renders events as CMX3600 text at fps.
func GenerateEDL(events []Event, title string, fps int) string {
	if fps <= 0 {
		fps = timeline.DefaultFPS
	}

	lines := []string{
		fmt.Sprintf("TITLE: %s", SanitizeName(title, 70)),
		"FCM: NON-DROP FRAME",
		"",
	}

	for i, ev := range events {
		edit := ev.EditType
		if edit == "" {
			edit = "C"
		}
		dur := ""
		if edit != "C" {
			dur = fmt.Sprintf("%03d", ev.TransitionDuration)
		}
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s %-4s %3s %s %s %s %s", i+1, "AX", ev.Channel, edit, dur,
				framesToTimecode(ev.SourceIn, fps), framesToTimecode(ev.SourceOut, fps),
				framesToTimecode(ev.RecordIn, fps), framesToTimecode(ev.RecordOut, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ev.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", ev.MediaPath),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func framesToTimecode(totalFrames, fps int) string {
	if totalFrames < 0 {
		totalFrames = 0
	}
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
