package l4normalize

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

// standingFrame places shoulders at y=100 and hips at y=300 around x=200,
// giving a torso length of 200.
func standingFrame() l2frames.Frame {
	var f l2frames.Frame
	for j := range f {
		f[j] = l2frames.Keypoint{X: 200, Y: 200, Score: 0.7, Valid: true}
	}
	f[l2frames.LeftShoulder] = l2frames.Keypoint{X: 180, Y: 100, Score: 0.9, Valid: true}
	f[l2frames.RightShoulder] = l2frames.Keypoint{X: 220, Y: 100, Score: 0.9, Valid: true}
	f[l2frames.LeftHip] = l2frames.Keypoint{X: 190, Y: 300, Score: 0.9, Valid: true}
	f[l2frames.RightHip] = l2frames.Keypoint{X: 210, Y: 300, Score: 0.9, Valid: true}
	f[l2frames.Nose] = l2frames.Keypoint{X: 200, Y: 50, Score: 0.8, Valid: true}
	return f
}

func TestConfigFromSignal(t *testing.T) {
	t.Parallel()
	def := DefaultConfig()
	assert.Equal(t, l2frames.LeftShoulder, def.LeftShoulder)
	assert.Equal(t, l2frames.RightShoulder, def.RightShoulder)
	assert.Equal(t, l2frames.LeftHip, def.LeftHip)
	assert.Equal(t, l2frames.RightHip, def.RightHip)
	assert.Equal(t, 1e-3, def.TorsoEpsilon)

	cfg := config.EmptySignalConfig()
	eps := 0.5
	cfg.TorsoEpsilon = &eps
	assert.Equal(t, 0.5, ConfigFromSignal(cfg).TorsoEpsilon)
}

func TestReference(t *testing.T) {
	t.Parallel()
	f := standingFrame()
	ref, ok := New(DefaultConfig()).Reference(&f)
	require.True(t, ok)
	assert.InDelta(t, 200.0, ref.MidShoulderX, 1e-9)
	assert.InDelta(t, 100.0, ref.MidShoulderY, 1e-9)
	assert.InDelta(t, 200.0, ref.MidHipX, 1e-9)
	assert.InDelta(t, 300.0, ref.MidHipY, 1e-9)
	assert.InDelta(t, 200.0, ref.TorsoLength, 1e-9)
}

func TestNormalizeFrame(t *testing.T) {
	t.Parallel()
	f := standingFrame()
	out, degenerate, ok := New(DefaultConfig()).NormalizeFrame(&f)
	require.True(t, ok)
	assert.False(t, degenerate)

	nose := out[l2frames.Nose]
	assert.InDelta(t, 0.0, nose.X, 1e-9)
	assert.InDelta(t, -1.25, nose.Y, 1e-9)
	assert.Equal(t, 0.8, nose.Score)

	ls := out[l2frames.LeftShoulder]
	assert.InDelta(t, -0.1, ls.X, 1e-9)
	assert.InDelta(t, -1.0, ls.Y, 1e-9)
}

func TestNormalizeFrame_DegenerateTorso(t *testing.T) {
	t.Parallel()
	var f l2frames.Frame
	for _, j := range []l2frames.Joint{l2frames.LeftShoulder, l2frames.RightShoulder, l2frames.LeftHip, l2frames.RightHip} {
		f[j] = l2frames.Keypoint{X: 50, Y: 60, Valid: true}
	}
	f[l2frames.LeftWrist] = l2frames.Keypoint{X: 53, Y: 56, Valid: true}

	out, degenerate, ok := New(DefaultConfig()).NormalizeFrame(&f)
	require.True(t, ok)
	assert.True(t, degenerate)

	w := out[l2frames.LeftWrist]
	assert.False(t, math.IsNaN(w.X) || math.IsInf(w.X, 0))
	assert.Equal(t, 3.0, w.X, "centered but unscaled")
	assert.Equal(t, -4.0, w.Y)
	assert.Equal(t, 0.0, out[l2frames.LeftHip].X)
}

func TestNormalizeFrame_MissingReference(t *testing.T) {
	t.Parallel()
	f := standingFrame()
	f[l2frames.RightHip] = l2frames.Keypoint{}

	out, _, ok := New(DefaultConfig()).NormalizeFrame(&f)
	assert.False(t, ok)
	assert.Zero(t, out.DetectedJoints())
}

func TestNormalize_ShapeAndReport(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	seq := l2frames.NewSequence(4)
	seq.Append(standingFrame())
	seq.Append(l2frames.MissingFrame())
	collapsed := standingFrame()
	for _, j := range []l2frames.Joint{l2frames.LeftShoulder, l2frames.RightShoulder, l2frames.LeftHip, l2frames.RightHip} {
		collapsed[j] = l2frames.Keypoint{X: 1, Y: 1, Valid: true}
	}
	seq.Append(collapsed)
	partial := standingFrame()
	partial[l2frames.LeftAnkle] = l2frames.Keypoint{}
	seq.Append(partial)

	out, report := New(DefaultConfig()).Normalize(seq)

	require.Equal(t, seq.Len(), out.Len())
	assert.Equal(t, 1, report.UnreferencedFrames)
	assert.Equal(t, 1, report.DegenerateFrames)
	assert.False(t, out.Frames[3][l2frames.LeftAnkle].Valid)
	assert.True(t, out.Frames[3][l2frames.RightAnkle].Valid)
	assert.True(t, strings.Contains(ops.String(), "degenerate torso"))
}

func TestNormalize_IdempotentOnNormalizedInput(t *testing.T) {
	t.Parallel()
	n := New(DefaultConfig())

	seq := l2frames.NewSequence(3)
	for i := 0; i < 3; i++ {
		f := standingFrame()
		// Vary position and distance per frame.
		for j := range f {
			f[j].X = f[j].X*float64(i+1) + 13*float64(i)
			f[j].Y = f[j].Y*float64(i+1) - 7*float64(i)
		}
		seq.Append(f)
	}

	once, _ := n.Normalize(seq)
	twice, _ := n.Normalize(once)

	for i := range once.Frames {
		ref, ok := n.Reference(&once.Frames[i])
		require.True(t, ok)
		assert.InDelta(t, 1.0, ref.TorsoLength, 1e-9)
		assert.InDelta(t, 0.0, ref.MidHipX, 1e-9)
		assert.InDelta(t, 0.0, ref.MidHipY, 1e-9)

		for j := range once.Frames[i] {
			assert.InDelta(t, once.Frames[i][j].X, twice.Frames[i][j].X, 1e-9)
			assert.InDelta(t, once.Frames[i][j].Y, twice.Frames[i][j].Y, 1e-9)
		}
	}

	// Distance to camera no longer matters.
	for j := range once.Frames[0] {
		assert.InDelta(t, once.Frames[0][j].X, once.Frames[2][j].X, 1e-9)
		assert.InDelta(t, once.Frames[0][j].Y, once.Frames[2][j].Y, 1e-9)
	}
}
