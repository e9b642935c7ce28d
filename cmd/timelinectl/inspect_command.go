package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the tracks, clips and media of a timeline document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, tl, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			frames := tl.DurationInFrames()
			w, h := tl.AutoSize()
			fmt.Fprintf(out, "File:        %s (%s)\n", args[0], humanize.Bytes(uint64(len(data))))
			fmt.Fprintf(out, "Frame rate:  %d fps\n", tl.FPS())
			fmt.Fprintf(out, "Duration:    %s frames (%s)\n", humanize.Comma(int64(frames)), framesToDuration(frames, tl.FPS()))
			fmt.Fprintf(out, "Canvas:      %dx%d\n", w, h)
			fmt.Fprintln(out)

			fmt.Fprintln(out, renderTable(
				[]string{"Track", "Clips", "Transitions", "End"},
				trackRows(tl),
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			))
			if tl.ScrubberCount() > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"Clip", "Track", "Type", "Name", "Left", "Width", "Trim"},
					clipRows(tl),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
			}
			if bin := tl.MediaBin(); len(bin) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"Media", "Type", "Name", "Duration", "Size", "Source"},
					mediaRows(bin),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
			}
			return nil
		},
	}
}

func trackRows(tl *timeline.Timeline) [][]string {
	tracks := tl.Tracks()
	rows := make([][]string, 0, len(tracks))
	for _, tr := range tracks {
		var end float64
		for _, s := range tr.Scrubbers {
			end = max(end, s.End())
		}
		rows = append(rows, []string{
			tr.ID,
			strconv.Itoa(len(tr.Scrubbers)),
			strconv.Itoa(len(tr.Transitions)),
			formatFrames(end),
		})
	}
	return rows
}

func clipRows(tl *timeline.Timeline) [][]string {
	var rows [][]string
	for _, tr := range tl.Tracks() {
		scrubbers := append([]timeline.Scrubber(nil), tr.Scrubbers...)
		sort.SliceStable(scrubbers, func(i, j int) bool { return scrubbers[i].Left < scrubbers[j].Left })
		for _, s := range scrubbers {
			rows = append(rows, []string{
				s.ID,
				tr.ID,
				string(s.MediaType),
				s.Name,
				formatFrames(s.Left),
				formatFrames(s.Width),
				formatTrim(s.TrimBefore, s.TrimAfter),
			})
		}
	}
	return rows
}

func mediaRows(bin []timeline.MediaBinItem) [][]string {
	rows := make([][]string, 0, len(bin))
	for _, m := range bin {
		size := "-"
		if m.MediaWidth > 0 && m.MediaHeight > 0 {
			size = fmt.Sprintf("%dx%d", m.MediaWidth, m.MediaHeight)
		}
		dur := "-"
		if m.DurationInSeconds > 0 {
			dur = (time.Duration(m.DurationInSeconds * float64(time.Second))).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{m.ID, string(m.MediaType), m.Name, dur, size, mediaSource(m)})
	}
	return rows
}

func mediaSource(m timeline.MediaBinItem) string {
	switch {
	case m.MediaURLRemote != nil && *m.MediaURLRemote != "":
		return *m.MediaURLRemote
	case m.MediaURLLocal != nil && *m.MediaURLLocal != "":
		return *m.MediaURLLocal
	default:
		return "-"
	}
}

func formatFrames(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTrim(before, after *int) string {
	if before == nil && after == nil {
		return "-"
	}
	b, a := "0", "end"
	if before != nil {
		b = strconv.Itoa(*before)
	}
	if after != nil {
		a = strconv.Itoa(*after)
	}
	return b + ".." + a
}

func framesToDuration(frames, fps int) string {
	if fps <= 0 {
		return "0s"
	}
	return (time.Duration(frames) * time.Second / time.Duration(fps)).Round(time.Millisecond).String()
}
