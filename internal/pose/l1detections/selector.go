package l1detections

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

// ErrMalformedCandidate marks a candidate whose coordinate and score lists
// cannot describe a COCO-17 person.
var ErrMalformedCandidate = errors.New("malformed candidate")

// Validate checks that the candidate has at least NumJoints joints and that
// its coordinate and score lists are parallel. Extra joints are allowed and
// ignored on selection.
func (c Candidate) Validate() error {
	if len(c.Keypoints) != len(c.Scores) {
		return fmt.Errorf("%w: %d keypoints but %d scores", ErrMalformedCandidate, len(c.Keypoints), len(c.Scores))
	}
	if len(c.Keypoints) < l2frames.NumJoints {
		return fmt.Errorf("%w: %d joints, need %d", ErrMalformedCandidate, len(c.Keypoints), l2frames.NumJoints)
	}
	return nil
}

// MeanScore returns the mean confidence over the candidate's scores,
// ignoring NaN. It returns NaN when no score is a number.
func (c Candidate) MeanScore() float64 {
	var sum float64
	n := 0
	for _, s := range c.Scores {
		if math.IsNaN(s) {
			continue
		}
		sum += s
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// BestCandidate returns the index of the candidate with the strictly highest
// mean score, or -1 for an empty set. Ties keep the first candidate seen.
// A candidate whose mean is undefined ranks below every scored candidate.
func BestCandidate(cands []Candidate) int {
	best := -1
	bestMean := math.Inf(-1)
	for i, c := range cands {
		m := c.MeanScore()
		if math.IsNaN(m) {
			m = math.Inf(-1)
		}
		if best < 0 || m > bestMean {
			best = i
			bestMean = m
		}
	}
	return best
}

// SelectBest collapses a candidate set to one Frame. An empty set yields the
// sentinel frame with every joint missing. Candidates are assumed valid; use
// Select when they come from an untrusted backend.
func SelectBest(cands []Candidate) l2frames.Frame {
	idx := BestCandidate(cands)
	if idx < 0 {
		return l2frames.MissingFrame()
	}
	return toFrame(cands[idx])
}

// Select validates every candidate in dets and returns the best one as a
// Frame.
func Select(dets FrameDetections) (l2frames.Frame, error) {
	for i, c := range dets.Candidates {
		if err := c.Validate(); err != nil {
			return l2frames.Frame{}, fmt.Errorf("frame %d candidate %d: %w", dets.Index, i, err)
		}
	}
	return SelectBest(dets.Candidates), nil
}

func toFrame(c Candidate) l2frames.Frame {
	var f l2frames.Frame
	for j := 0; j < l2frames.NumJoints && j < len(c.Keypoints); j++ {
		x, y := c.Keypoints[j][0], c.Keypoints[j][1]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			continue
		}
		score := 0.0
		if j < len(c.Scores) && !math.IsNaN(c.Scores[j]) {
			score = c.Scores[j]
		}
		f[j] = l2frames.Keypoint{X: x, Y: y, Score: score, Valid: true}
	}
	return f
}
