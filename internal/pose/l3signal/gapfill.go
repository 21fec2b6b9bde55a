package l3signal

import (
	"sort"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

// minInterpolationSamples is the number of valid samples a series needs
// before it can be interpolated. Below this the series is left untouched.
const minInterpolationSamples = 2

// GapFillReport summarises one FillGaps call.
type GapFillReport struct {
	FilledSamples  int              // joint samples that were missing and are now interpolated
	SkippedJoints  []l2frames.Joint // joints with too few valid samples to interpolate
	ResidualMissed int              // joint samples still missing afterwards
}

// GapFiller interpolates missing keypoints across time.
type GapFiller struct {
	enabled bool
}

// NewGapFiller returns a GapFiller configured from cfg. A nil cfg uses the
// built-in defaults.
func NewGapFiller(cfg *config.SignalConfig) *GapFiller {
	if cfg == nil {
		cfg = config.EmptySignalConfig()
	}
	return &GapFiller{enabled: cfg.GetFillGaps()}
}

// Fill returns a copy of seq with missing joints interpolated. When gap
// filling is disabled the copy is returned unchanged.
func (g *GapFiller) Fill(seq *l2frames.Sequence) (*l2frames.Sequence, GapFillReport) {
	if !g.enabled {
		out := seq.Clone()
		return out, GapFillReport{ResidualMissed: countMissing(out)}
	}
	return FillGaps(seq)
}

// FillGaps replaces missing samples of every joint/axis series by linear
// interpolation between valid samples, indexed by frame position. Samples
// before the first or after the last valid sample take that sample's value.
// Series with fewer than two valid samples are left unchanged. Filled
// keypoints become valid with a zero score so they remain distinguishable
// from detections.
func FillGaps(seq *l2frames.Sequence) (*l2frames.Sequence, GapFillReport) {
	out := seq.Clone()
	var report GapFillReport

	for j := l2frames.Joint(0); j < l2frames.NumJoints; j++ {
		xs, valid := out.Series(j, l2frames.AxisX)
		ys, _ := out.Series(j, l2frames.AxisY)

		n := 0
		for _, v := range valid {
			if v {
				n++
			}
		}
		if n == len(valid) {
			continue
		}
		if n < minInterpolationSamples {
			report.SkippedJoints = append(report.SkippedJoints, j)
			tracef("joint %s: %d valid samples, not interpolating", j, n)
			continue
		}

		fx := Interpolate(xs, valid)
		fy := Interpolate(ys, valid)
		for i := range out.Frames {
			if valid[i] {
				continue
			}
			out.Frames[i][j] = l2frames.Keypoint{X: fx[i], Y: fy[i], Valid: true}
			report.FilledSamples++
		}
	}

	report.ResidualMissed = countMissing(out)
	if report.FilledSamples > 0 || len(report.SkippedJoints) > 0 {
		diagf("gap fill: frames=%d filled=%d skipped_joints=%v residual=%d",
			out.Len(), report.FilledSamples, report.SkippedJoints, report.ResidualMissed)
	}
	return out, report
}

// Interpolate fills the invalid entries of values by one-dimensional linear
// interpolation over the valid entries, using the slice index as the
// abscissa. Boundary samples are extrapolated flat. The input is not
// modified. With fewer than two valid samples a copy of values is returned.
func Interpolate(values []float64, valid []bool) []float64 {
	out := make([]float64, len(values))
	copy(out, values)

	idx := make([]int, 0, len(values))
	for i, v := range valid {
		if v {
			idx = append(idx, i)
		}
	}
	if len(idx) < minInterpolationSamples {
		return out
	}

	first, last := idx[0], idx[len(idx)-1]
	for i := range out {
		if valid[i] {
			continue
		}
		switch {
		case i < first:
			out[i] = values[first]
		case i > last:
			out[i] = values[last]
		default:
			// idx[k] is the first valid index greater than i.
			k := sort.SearchInts(idx, i)
			lo, hi := idx[k-1], idx[k]
			frac := float64(i-lo) / float64(hi-lo)
			out[i] = values[lo] + frac*(values[hi]-values[lo])
		}
	}
	return out
}

func countMissing(seq *l2frames.Sequence) int {
	n := 0
	for i := range seq.Frames {
		n += l2frames.NumJoints - seq.Frames[i].DetectedJoints()
	}
	return n
}
