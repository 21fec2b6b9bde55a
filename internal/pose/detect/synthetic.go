package detect

import (
	"context"
	"hash/fnv"
	"io"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/pose.report/internal/pose/l1detections"
	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

// SyntheticName is the registry name of the squat simulator.
const SyntheticName = "synthetic"

// Squat geometry in pixels. The body is centred on x=100 and the hips
// follow SquatHipY.
const (
	SquatHipCenter = 300.0
	SquatAmplitude = 50.0
)

// standingPose is the mid-squat template, image y growing downward.
var standingPose = [l2frames.NumJoints][2]float64{
	l2frames.Nose:          {100, 120},
	l2frames.LeftEye:       {95, 115},
	l2frames.RightEye:      {105, 115},
	l2frames.LeftEar:       {90, 118},
	l2frames.RightEar:      {110, 118},
	l2frames.LeftShoulder:  {85, 170},
	l2frames.RightShoulder: {115, 170},
	l2frames.LeftElbow:     {80, 230},
	l2frames.RightElbow:    {120, 230},
	l2frames.LeftWrist:     {78, 285},
	l2frames.RightWrist:    {122, 285},
	l2frames.LeftHip:       {92, SquatHipCenter},
	l2frames.RightHip:      {108, SquatHipCenter},
	l2frames.LeftKnee:      {92, 380},
	l2frames.RightKnee:     {108, 380},
	l2frames.LeftAnkle:     {92, 460},
	l2frames.RightAnkle:    {108, 460},
}

// SquatDisplacement is the vertical offset of the hips at frame i of n:
// one full squat cycle, standing at both ends and deepest mid-sequence.
func SquatDisplacement(i, n int) float64 {
	if n < 2 {
		return -SquatAmplitude
	}
	t := 2 * math.Pi * float64(i) / float64(n-1)
	return math.Sin(t-math.Pi/2) * SquatAmplitude
}

// SquatHipY returns the noiseless left-hip y trajectory for n frames.
func SquatHipY(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = SquatHipCenter + SquatDisplacement(i, n)
	}
	return out
}

// SquatPose returns the noiseless keypoints at frame i of n. Everything
// from the hips up follows the hip displacement, knees follow a third of it
// and ankles stay planted.
func SquatPose(i, n int) [l2frames.NumJoints][2]float64 {
	d := SquatDisplacement(i, n)
	pose := standingPose
	for j := range pose {
		switch l2frames.Joint(j) {
		case l2frames.LeftAnkle, l2frames.RightAnkle:
		case l2frames.LeftKnee, l2frames.RightKnee:
			pose[j][1] += d / 3
		default:
			pose[j][1] += d
		}
	}
	return pose
}

// Synthetic generates a jittered squat instead of running a model. The
// path passed to Open only names the video and seeds the noise, so
// different paths give different but reproducible jitter.
type Synthetic struct {
	frames    int
	noise     float64
	dropRate  float64
	seed      uint64
	bystander bool
}

// NewSynthetic returns a simulator. Frames defaults to 150 when unset; a
// zero Noise gives the exact trajectory.
func NewSynthetic(o Options) *Synthetic {
	s := &Synthetic{frames: o.Frames, noise: math.Max(o.Noise, 0), dropRate: o.DropRate, seed: o.Seed, bystander: o.Bystander}
	if s.frames <= 0 {
		s.frames = 150
	}
	return s
}

// Name implements l1detections.Detector.
func (*Synthetic) Name() string { return SyntheticName }

// ConcurrentSafe implements l1detections.Detector: every source owns its
// random stream.
func (*Synthetic) ConcurrentSafe() bool { return true }

// InputExtensions implements l1detections.InputTyper. The simulator ignores
// the file but batch runs still pick videos by type.
func (*Synthetic) InputExtensions() []string { return l1detections.VideoExtensions }

// Frames returns the number of frames each source yields.
func (s *Synthetic) Frames() int { return s.frames }

// Open returns a source for the video named by path.
func (s *Synthetic) Open(_ context.Context, path string) (l1detections.Source, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	rng := rand.New(rand.NewPCG(s.seed, h.Sum64()))
	return &syntheticSource{
		s:      s,
		rng:    rng,
		jitter: distuv.Normal{Mu: 0, Sigma: s.noise, Src: rng},
		score:  distuv.Uniform{Min: 0.8, Max: 0.98, Src: rng},
		weak:   distuv.Uniform{Min: 0.2, Max: 0.5, Src: rng},
	}, nil
}

type syntheticSource struct {
	s      *Synthetic
	rng    *rand.Rand
	jitter distuv.Normal
	score  distuv.Uniform
	weak   distuv.Uniform
	i      int
}

func (src *syntheticSource) Next(ctx context.Context) (l1detections.FrameDetections, error) {
	if err := ctx.Err(); err != nil {
		return l1detections.FrameDetections{}, err
	}
	if src.i >= src.s.frames {
		return l1detections.FrameDetections{}, io.EOF
	}
	i := src.i
	src.i++

	fd := l1detections.FrameDetections{Index: i}
	if src.s.dropRate > 0 && src.rng.Float64() < src.s.dropRate {
		tracef("synthetic frame %d dropped", i)
		return fd, nil
	}

	pose := SquatPose(i, src.s.frames)
	fd.Candidates = append(fd.Candidates, src.person(pose, 0, src.score))
	if src.s.bystander {
		// A second person further right, detected with low confidence.
		fd.Candidates = append(fd.Candidates, src.person(standingPose, 250, src.weak))
	}
	return fd, nil
}

func (src *syntheticSource) person(pose [l2frames.NumJoints][2]float64, dx float64, score distuv.Uniform) l1detections.Candidate {
	c := l1detections.Candidate{
		Keypoints: make([][2]float64, l2frames.NumJoints),
		Scores:    make([]float64, l2frames.NumJoints),
	}
	for j := range pose {
		c.Keypoints[j] = [2]float64{
			pose[j][0] + dx + src.jitter.Rand(),
			pose[j][1] + src.jitter.Rand(),
		}
		c.Scores[j] = score.Rand()
	}
	return c
}

func (src *syntheticSource) Close() error { return nil }
