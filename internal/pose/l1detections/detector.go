package l1detections

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
)

// ErrVideoNotFound is returned (wrapped) by Detector.Open when the video or
// recorded detection file does not exist.
var ErrVideoNotFound = errors.New("video not found")

// Candidate is one detected person: a joint-indexed coordinate list and a
// parallel joint-indexed confidence list.
type Candidate struct {
	Keypoints [][2]float64 `json:"keypoints"`
	Scores    []float64    `json:"keypoint_scores"`
}

// UnmarshalJSON reads null coordinates and scores as NaN, so a joint the
// detector left out is missing rather than a detection at the origin.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var in struct {
		Keypoints [][2]*float64 `json:"keypoints"`
		Scores    []*float64    `json:"keypoint_scores"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := Candidate{}
	if in.Keypoints != nil {
		out.Keypoints = make([][2]float64, len(in.Keypoints))
		for j, xy := range in.Keypoints {
			out.Keypoints[j] = [2]float64{NullAsNaN(xy[0]), NullAsNaN(xy[1])}
		}
	}
	if in.Scores != nil {
		out.Scores = make([]float64, len(in.Scores))
		for j, v := range in.Scores {
			out.Scores[j] = NullAsNaN(v)
		}
	}
	*c = out
	return nil
}

// NullAsNaN maps a decoded JSON number to its value and null to NaN.
func NullAsNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// FrameDetections is the (possibly empty) candidate set for one decoded frame.
type FrameDetections struct {
	Index      int
	Candidates []Candidate
}

// Source yields per-frame detections for one video. It is single pass:
// Next returns io.EOF after the last frame and cannot be rewound.
type Source interface {
	Next(ctx context.Context) (FrameDetections, error)
	Close() error
}

// Detector is the capability every pose backend provides: given a video,
// produce a Source of per-frame candidate sets.
type Detector interface {
	// Name identifies the backend in logs and stored packets.
	Name() string
	// Open starts detection for the video at path.
	Open(ctx context.Context, path string) (Source, error)
	// ConcurrentSafe reports whether Open may be called from several
	// goroutines at once. Batch runs serialise detectors that return false.
	ConcurrentSafe() bool
}

// VideoExtensions are the container types decoded by video backends.
var VideoExtensions = []string{".mp4", ".mov", ".avi"}

// InputTyper is implemented by detectors that know which files they read.
// Replay backends read recordings rather than videos.
type InputTyper interface {
	InputExtensions() []string
}

// InputExtensions returns the file extensions det reads, falling back to
// VideoExtensions for detectors that do not say.
func InputExtensions(det Detector) []string {
	if t, ok := det.(InputTyper); ok {
		if exts := t.InputExtensions(); len(exts) > 0 {
			return exts
		}
	}
	return VideoExtensions
}

// SliceSource replays a fixed list of detections. It is used by the
// synthetic detector and by tests.
type SliceSource struct {
	frames []FrameDetections
	pos    int
	closed bool
}

// NewSliceSource returns a Source over frames. Frame indices are rewritten to
// their position in the slice.
func NewSliceSource(frames []FrameDetections) *SliceSource {
	for i := range frames {
		frames[i].Index = i
	}
	return &SliceSource{frames: frames}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (FrameDetections, error) {
	if err := ctx.Err(); err != nil {
		return FrameDetections{}, err
	}
	if s.closed || s.pos >= len(s.frames) {
		return FrameDetections{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// Close marks the source exhausted.
func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}
