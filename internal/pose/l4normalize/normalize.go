package l4normalize

import (
	"math"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

// Config selects the reference joints and the degenerate-torso threshold.
type Config struct {
	LeftShoulder  l2frames.Joint
	RightShoulder l2frames.Joint
	LeftHip       l2frames.Joint
	RightHip      l2frames.Joint
	// TorsoEpsilon is the torso length below which a frame is left unscaled.
	TorsoEpsilon float64
}

// DefaultConfig returns the COCO-17 reference joints with the default
// epsilon.
func DefaultConfig() Config {
	return ConfigFromSignal(config.EmptySignalConfig())
}

// ConfigFromSignal maps a SignalConfig onto a normalizer Config.
func ConfigFromSignal(cfg *config.SignalConfig) Config {
	return Config{
		LeftShoulder:  l2frames.Joint(cfg.GetLeftShoulder()),
		RightShoulder: l2frames.Joint(cfg.GetRightShoulder()),
		LeftHip:       l2frames.Joint(cfg.GetLeftHip()),
		RightHip:      l2frames.Joint(cfg.GetRightHip()),
		TorsoEpsilon:  cfg.GetTorsoEpsilon(),
	}
}

// Reference is the body measurement taken from one frame.
type Reference struct {
	MidShoulderX, MidShoulderY float64
	MidHipX, MidHipY           float64
	TorsoLength                float64
}

// Report summarises one Normalize call.
type Report struct {
	DegenerateFrames   int // torso shorter than epsilon, scale forced to 1
	UnreferencedFrames int // a reference joint was missing
}

// Normalizer recentres and rescales frames by torso length.
type Normalizer struct {
	cfg Config
}

// New returns a Normalizer for cfg.
func New(cfg Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Reference measures mid-shoulder, mid-hip and torso length in f. ok is
// false when any of the four reference joints is missing.
func (n *Normalizer) Reference(f *l2frames.Frame) (ref Reference, ok bool) {
	ls, rs := f[n.cfg.LeftShoulder], f[n.cfg.RightShoulder]
	lh, rh := f[n.cfg.LeftHip], f[n.cfg.RightHip]
	if !ls.Valid || !rs.Valid || !lh.Valid || !rh.Valid {
		return Reference{}, false
	}

	ref.MidShoulderX = (ls.X + rs.X) / 2
	ref.MidShoulderY = (ls.Y + rs.Y) / 2
	ref.MidHipX = (lh.X + rh.X) / 2
	ref.MidHipY = (lh.Y + rh.Y) / 2
	ref.TorsoLength = math.Hypot(ref.MidShoulderX-ref.MidHipX, ref.MidShoulderY-ref.MidHipY)
	return ref, true
}

// Scale returns 1/torso, or 1 when the torso is shorter than epsilon.
func (n *Normalizer) Scale(ref Reference) (scale float64, degenerate bool) {
	if ref.TorsoLength < n.cfg.TorsoEpsilon {
		return 1, true
	}
	return 1 / ref.TorsoLength, false
}

// NormalizeFrame centres f on its hip midpoint and scales every joint by the
// frame's inverse torso length. Missing joints stay missing. When a
// reference joint is absent the whole frame is returned missing.
func (n *Normalizer) NormalizeFrame(f *l2frames.Frame) (out l2frames.Frame, degenerate, ok bool) {
	ref, ok := n.Reference(f)
	if !ok {
		return l2frames.MissingFrame(), false, false
	}
	scale, degenerate := n.Scale(ref)

	for j, kp := range f {
		if !kp.Valid {
			continue
		}
		out[j] = l2frames.Keypoint{
			X:     (kp.X - ref.MidHipX) * scale,
			Y:     (kp.Y - ref.MidHipY) * scale,
			Score: kp.Score,
			Valid: true,
		}
	}
	return out, degenerate, true
}

// Normalize returns a normalized copy of seq with the same frame count.
func (n *Normalizer) Normalize(seq *l2frames.Sequence) (*l2frames.Sequence, Report) {
	out := l2frames.NewSequence(seq.Len())
	var report Report

	for i := range seq.Frames {
		f, degenerate, ok := n.NormalizeFrame(&seq.Frames[i])
		switch {
		case !ok:
			report.UnreferencedFrames++
			tracef("frame %d: reference joint missing", i)
		case degenerate:
			report.DegenerateFrames++
			tracef("frame %d: degenerate torso, unit scale", i)
		}
		out.Append(f)
	}

	if report.DegenerateFrames > 0 {
		opsf("degenerate torso (< %g) in %d/%d frames, left unscaled",
			n.cfg.TorsoEpsilon, report.DegenerateFrames, seq.Len())
	}
	if report.UnreferencedFrames > 0 {
		diagf("%d/%d frames lack a shoulder or hip, normalized as missing",
			report.UnreferencedFrames, seq.Len())
	}
	return out, report
}
