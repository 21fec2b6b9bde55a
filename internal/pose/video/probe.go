// Package video reads container metadata (frame size, frame rate, frame
// count) with ffprobe. Pixel decoding lives with the detectors that need it.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/banshee-data/pose.report/internal/pose/l1detections"
)

// ErrNoVideoStream is returned when the container has no video stream.
var ErrNoVideoStream = errors.New("no video stream")

// Info describes the first video stream of a file.
type Info struct {
	Width    int
	Height   int
	FPS      float64
	Frames   int // 0 when the container does not record a count
	Duration time.Duration
}

// Prober reads video metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// FFProbe implements Prober by running the ffprobe binary.
type FFProbe struct {
	// Timeout bounds a single ffprobe run when ctx carries no deadline.
	// Zero means no limit.
	Timeout time.Duration
}

// Probe runs ffprobe on path.
func (p FFProbe) Probe(ctx context.Context, path string) (Info, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Info{}, fmt.Errorf("%w: %s", l1detections.ErrVideoNotFound, path)
		}
		return Info{}, fmt.Errorf("stat video: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	timeout := p.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	var out string
	var err error
	if timeout > 0 {
		out, err = ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
	} else {
		out, err = ffmpeg.Probe(path)
	}
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbe([]byte(out))
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ParseProbe extracts Info from ffprobe's JSON output
// (-show_format -show_streams -of json).
func ParseProbe(data []byte) (Info, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, s := range po.Streams {
		if s.CodecType != "video" {
			continue
		}
		info := Info{Width: s.Width, Height: s.Height}

		info.FPS = parseRate(s.AvgFrameRate)
		if info.FPS == 0 {
			info.FPS = parseRate(s.RFrameRate)
		}
		if n, err := strconv.Atoi(s.NbFrames); err == nil {
			info.Frames = n
		}

		dur := s.Duration
		if dur == "" {
			dur = po.Format.Duration
		}
		if secs, err := strconv.ParseFloat(dur, 64); err == nil {
			info.Duration = time.Duration(secs * float64(time.Second))
		}
		if info.Frames == 0 && info.FPS > 0 && info.Duration > 0 {
			info.Frames = int(info.Duration.Seconds()*info.FPS + 0.5)
		}
		return info, nil
	}
	return Info{}, ErrNoVideoStream
}

// parseRate converts an ffprobe rational such as "30000/1001" to frames per
// second. Unparseable or zero-denominator rates yield 0.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
