package l2frames

import (
	"fmt"
	"math"
)

// Axis selects one coordinate of a keypoint.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// Axes lists both coordinate axes in storage order.
var Axes = [2]Axis{AxisX, AxisY}

func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "y"
}

// ParseAxis accepts "x" or "y".
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Keypoint is one joint observation in pixel space. Valid is false when the
// detector produced nothing usable for the joint; X, Y and Score are then
// meaningless and must not be read.
type Keypoint struct {
	X     float64
	Y     float64
	Score float64
	Valid bool
}

// Coord returns the coordinate for the given axis.
func (k Keypoint) Coord(a Axis) float64 {
	if a == AxisX {
		return k.X
	}
	return k.Y
}

// SetCoord sets the coordinate for the given axis.
func (k *Keypoint) SetCoord(a Axis, v float64) {
	if a == AxisX {
		k.X = v
	} else {
		k.Y = v
	}
}

// Frame is one time step: exactly NumJoints keypoints.
type Frame [NumJoints]Keypoint

// MissingFrame returns the sentinel frame emitted when no person was
// detected: every joint absent with zero confidence.
func MissingFrame() Frame {
	return Frame{}
}

// DetectedJoints counts the joints present in the frame.
func (f *Frame) DetectedJoints() int {
	n := 0
	for _, kp := range f {
		if kp.Valid {
			n++
		}
	}
	return n
}

// Sequence is the per-video keypoint time series. The fixed-width Frame type
// guarantees the [frames][17] shape; the coordinate dimension is implicit.
type Sequence struct {
	Frames []Frame
}

// NewSequence returns an empty sequence with room for n frames.
func NewSequence(n int) *Sequence {
	return &Sequence{Frames: make([]Frame, 0, n)}
}

// Len returns the frame count.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Frames)
}

// Append adds a frame to the end of the sequence.
func (s *Sequence) Append(f Frame) {
	s.Frames = append(s.Frames, f)
}

// Clone returns a deep copy. Frames are arrays, so copying the slice copies
// every keypoint.
func (s *Sequence) Clone() *Sequence {
	out := &Sequence{Frames: make([]Frame, len(s.Frames))}
	copy(out.Frames, s.Frames)
	return out
}

// Series extracts one joint/axis time series. Missing samples are returned
// as NaN in values and false in valid.
func (s *Sequence) Series(j Joint, a Axis) (values []float64, valid []bool) {
	values = make([]float64, len(s.Frames))
	valid = make([]bool, len(s.Frames))
	for i := range s.Frames {
		kp := s.Frames[i][j]
		if kp.Valid {
			values[i] = kp.Coord(a)
			valid[i] = true
		} else {
			values[i] = math.NaN()
		}
	}
	return values, valid
}

// ValidCount returns how many frames carry joint j.
func (s *Sequence) ValidCount(j Joint) int {
	n := 0
	for i := range s.Frames {
		if s.Frames[i][j].Valid {
			n++
		}
	}
	return n
}

// EmptyFrames counts frames with no detected joint at all.
func (s *Sequence) EmptyFrames() int {
	n := 0
	for i := range s.Frames {
		if s.Frames[i].DetectedJoints() == 0 {
			n++
		}
	}
	return n
}

// Coordinates exports the sequence as a [frames][17][2] array using NaN as
// the sentinel for missing joints.
func (s *Sequence) Coordinates() [][NumJoints][2]float64 {
	out := make([][NumJoints][2]float64, len(s.Frames))
	for i := range s.Frames {
		for j, kp := range s.Frames[i] {
			if kp.Valid {
				out[i][j] = [2]float64{kp.X, kp.Y}
			} else {
				out[i][j] = [2]float64{math.NaN(), math.NaN()}
			}
		}
	}
	return out
}

// Scores exports per-frame per-joint confidences. Missing joints score 0.
func (s *Sequence) Scores() [][NumJoints]float64 {
	out := make([][NumJoints]float64, len(s.Frames))
	for i := range s.Frames {
		for j, kp := range s.Frames[i] {
			if kp.Valid {
				out[i][j] = kp.Score
			}
		}
	}
	return out
}

// FromCoordinates builds a sequence from a [frames][17][2] array. A joint is
// missing when either coordinate is NaN. scores may be nil; otherwise it must
// have one row per frame.
func FromCoordinates(coords [][NumJoints][2]float64, scores [][NumJoints]float64) (*Sequence, error) {
	if scores != nil && len(scores) != len(coords) {
		return nil, fmt.Errorf("score rows %d do not match frame count %d", len(scores), len(coords))
	}
	seq := NewSequence(len(coords))
	for i := range coords {
		var f Frame
		for j := 0; j < NumJoints; j++ {
			x, y := coords[i][j][0], coords[i][j][1]
			if math.IsNaN(x) || math.IsNaN(y) {
				continue
			}
			f[j] = Keypoint{X: x, Y: y, Valid: true}
			if scores != nil {
				f[j].Score = scores[i][j]
			}
		}
		seq.Append(f)
	}
	return seq, nil
}
