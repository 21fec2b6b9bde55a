package l3signal

import (
	"bytes"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

func constantSequence(n int, x, y float64) *l2frames.Sequence {
	seq := l2frames.NewSequence(n)
	for i := 0; i < n; i++ {
		var f l2frames.Frame
		for j := range f {
			f[j] = l2frames.Keypoint{X: x, Y: y, Score: 0.9, Valid: true}
		}
		seq.Append(f)
	}
	return seq
}

func mustSmoother(t *testing.T, w, p int) *Smoother {
	t.Helper()
	s, err := NewSmoother(SmootherConfig{Enabled: true, WindowLength: w, PolyOrder: p})
	require.NoError(t, err)
	return s
}

func TestSmootherConfigFromSignal(t *testing.T) {
	def := DefaultSmootherConfig()
	assert.Equal(t, SmootherConfig{Enabled: true, WindowLength: 7, PolyOrder: 3}, def)

	cfg := config.EmptySignalConfig()
	w, p := 15, 2
	cfg.WindowLength = &w
	cfg.PolyOrder = &p
	got := SmootherConfigFromSignal(cfg)
	assert.Equal(t, 15, got.WindowLength)
	assert.Equal(t, 2, got.PolyOrder)
}

func TestNewSmoother_RejectsBadWindow(t *testing.T) {
	_, err := NewSmoother(SmootherConfig{Enabled: true, WindowLength: 6, PolyOrder: 2})
	assert.Error(t, err)
}

func TestSmooth_InsufficientWindowPassesThrough(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	seq := constantSequence(3, 10, 20)
	seq.Frames[1][l2frames.LeftKnee].Y = 99

	out, report := mustSmoother(t, 7, 3).Smooth(seq)

	assert.True(t, report.Skipped)
	assert.Equal(t, seq.Frames, out.Frames)
	assert.True(t, strings.Contains(ops.String(), "smoothing skipped"), "warning expected, got %q", ops.String())

	// A copy, not the caller's sequence.
	out.Frames[0][0].X = -1
	assert.Equal(t, 10.0, seq.Frames[0][0].X)
}

func TestSmooth_Disabled(t *testing.T) {
	t.Parallel()
	s, err := NewSmoother(SmootherConfig{Enabled: false, WindowLength: 5, PolyOrder: 2})
	require.NoError(t, err)

	seq := constantSequence(10, 1, 2)
	seq.Frames[4][3].X = 50
	out, report := s.Smooth(seq)
	assert.True(t, report.Skipped)
	assert.Equal(t, 50.0, out.Frames[4][3].X)
}

func TestSmooth_ShapeAndValidityPreserved(t *testing.T) {
	t.Parallel()
	seq := constantSequence(30, 5, 5)
	for i := 10; i < 13; i++ {
		seq.Frames[i][l2frames.RightWrist] = l2frames.Keypoint{}
	}
	orig := seq.Clone()

	out, report := mustSmoother(t, 5, 2).Smooth(seq)

	require.Equal(t, seq.Len(), out.Len())
	assert.Equal(t, orig.Frames, seq.Frames, "input mutated")
	for i := range out.Frames {
		for j := range out.Frames[i] {
			assert.Equal(t, seq.Frames[i][j].Valid, out.Frames[i][j].Valid, "frame %d joint %d", i, j)
			assert.Equal(t, seq.Frames[i][j].Score, out.Frames[i][j].Score)
			if out.Frames[i][j].Valid {
				assert.InDelta(t, 5.0, out.Frames[i][j].X, 1e-9)
			}
		}
	}
	// 16 intact joints x 2 axes, plus the wrist split into two runs per axis.
	assert.Equal(t, 16*2+2*2, report.SmoothedRuns)
	assert.Zero(t, report.ShortRuns)
}

func TestSmooth_ShortRunsPassThrough(t *testing.T) {
	t.Parallel()
	seq := constantSequence(12, 0, 0)
	// Right ankle: valid for frames 0..2 only, jittered.
	for i := range seq.Frames {
		kp := &seq.Frames[i][l2frames.RightAnkle]
		if i < 3 {
			kp.Y = float64(i * i)
		} else {
			*kp = l2frames.Keypoint{}
		}
	}

	out, report := mustSmoother(t, 5, 2).Smooth(seq)

	for i := 0; i < 3; i++ {
		assert.Equal(t, float64(i*i), out.Frames[i][l2frames.RightAnkle].Y)
	}
	assert.Equal(t, 2, report.ShortRuns)
}

func TestValidRuns(t *testing.T) {
	t.Parallel()
	got := validRuns([]bool{false, true, true, false, true, false, false, true})
	assert.Equal(t, []run{{1, 3}, {4, 5}, {7, 8}}, got)
	assert.Nil(t, validRuns([]bool{false, false}))
	assert.Equal(t, []run{{0, 3}}, validRuns([]bool{true, true, true}))
}

// TestSmooth_SyntheticSquat drives a noisy squat trajectory through the
// smoother and checks it against the noiseless curve.
func TestSmooth_SyntheticSquat(t *testing.T) {
	t.Parallel()
	const (
		frames = 150
		sigma  = 3.0
	)

	noise := distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewPCG(42, 7)}
	clean := make([]float64, frames)
	raw := make([]float64, frames)

	seq := l2frames.NewSequence(frames)
	for i := 0; i < frames; i++ {
		ti := 2 * math.Pi * float64(i) / float64(frames-1)
		clean[i] = math.Sin(ti-math.Pi/2)*50 + 300
		raw[i] = clean[i] + noise.Rand()

		var f l2frames.Frame
		for j := range f {
			f[j] = l2frames.Keypoint{X: 100, Y: 0, Score: 1, Valid: true}
		}
		f[l2frames.LeftHip].Y = raw[i]
		seq.Append(f)
	}

	s, err := NewSmoother(SmootherConfig{Enabled: true, WindowLength: 15, PolyOrder: 2})
	require.NoError(t, err)
	out, _ := s.Smooth(seq)

	smoothed, _ := out.Series(l2frames.LeftHip, l2frames.AxisY)

	rawStep := stat.Variance(diffs(raw), nil)
	smoothStep := stat.Variance(diffs(smoothed), nil)
	assert.Less(t, smoothStep, rawStep/4, "sample-to-sample variance should drop")

	rawRMS := rms(raw, clean)
	smoothRMS := rms(smoothed, clean)
	assert.Less(t, smoothRMS, rawRMS)
	assert.Less(t, smoothRMS, 2.0, "smoothed curve drifted from ground truth")

	// Image y grows downward: the squat bottom is the maximum.
	assert.InDelta(t, floats.Max(clean), floats.Max(smoothed), 2*sigma)
}

func diffs(y []float64) []float64 {
	out := make([]float64, len(y)-1)
	floats.SubTo(out, y[1:], y[:len(y)-1])
	return out
}

func rms(a, b []float64) float64 {
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a)))
}
