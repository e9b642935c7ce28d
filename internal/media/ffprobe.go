package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

const (
	maxStdoutBytes = 1 << 20
	maxStderrBytes = 8 * 1024
)

type Config struct {
	FFProbePath string // empty = look up "ffprobe" on PATH
	Timeout     time.Duration
	Logger      *slog.Logger
}

// FFProbe runs the ffprobe binary against a URL or file path.
type FFProbe struct {
	cfg    Config
	binary string
}

func NewFFProbe(cfg Config) (*FFProbe, error) {
	name := cfg.FFProbePath
	if name == "" {
		name = "ffprobe"
	}
	binary, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffprobe: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.Logger.Info("media prober initialised", "ffprobe", binary)
	return &FFProbe{cfg: cfg, binary: binary}, nil
}

func (f *FFProbe) Probe(ctx context.Context, source string) (*ProbeResult, error) {
	if strings.HasPrefix(source, "-") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, source)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		source,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &capWriter{w: &stdout, limit: maxStdoutBytes}
	cmd.Stderr = &tailWriter{w: &stderr, limit: maxStderrBytes}

	if err := cmd.Run(); err != nil {
		f.cfg.Logger.Warn("ffprobe failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"stderr_tail", stderr.String(),
			"error", err,
		)
		return nil, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	res, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	f.cfg.Logger.Debug("ffprobe complete",
		"media_type", res.MediaType,
		"width", res.Width,
		"height", res.Height,
		"duration_s", res.DurationInSeconds,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// imageFormats are ffprobe demuxers that only ever yield stills.
var imageFormats = []string{"image2", "png_pipe", "jpeg_pipe", "webp_pipe", "gif", "bmp_pipe", "tiff_pipe", "svg_pipe"}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	res := &ProbeResult{FormatName: out.Format.FormatName, ProbedAt: time.Now()}
	hasVideo, hasAudio := false, false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if !hasVideo {
				res.Width, res.Height = s.Width, s.Height
			}
			hasVideo = true
		case "audio":
			hasAudio = true
		}
		if d := parseSeconds(s.Duration); d > res.DurationInSeconds {
			res.DurationInSeconds = d
		}
	}
	if d := parseSeconds(out.Format.Duration); d > 0 {
		res.DurationInSeconds = d
	}

	switch {
	case hasVideo && isImageFormat(out.Format.FormatName):
		res.MediaType = timeline.MediaImage
		res.DurationInSeconds = 0
	case hasVideo:
		res.MediaType = timeline.MediaVideo
	case hasAudio:
		res.MediaType = timeline.MediaAudio
	default:
		return nil, fmt.Errorf("%w: no audio or video streams", ErrUnsupported)
	}
	return res, nil
}

func isImageFormat(name string) bool {
	for _, part := range strings.Split(name, ",") {
		for _, f := range imageFormats {
			if part == f {
				return true
			}
		}
	}
	return false
}

func parseSeconds(s string) float64 {
	if s == "" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// capWriter keeps the first limit bytes and drops the rest.
type capWriter struct {
	w     *bytes.Buffer
	limit int
}

func (c *capWriter) Write(p []byte) (int, error) {
	if room := c.limit - c.w.Len(); room > 0 {
		if len(p) > room {
			c.w.Write(p[:room])
		} else {
			c.w.Write(p)
		}
	}
	return len(p), nil
}

// tailWriter keeps only the last limit bytes.
type tailWriter struct {
	w     *bytes.Buffer
	limit int
}

func (t *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	t.w.Write(p)
	if t.w.Len() > t.limit {
		b := t.w.Bytes()
		tail := append([]byte(nil), b[len(b)-t.limit:]...)
		t.w.Reset()
		t.w.Write(tail)
	}
	return n, nil
}
