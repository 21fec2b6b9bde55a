package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pose.report/internal/pose/l1detections"
	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

func writeRecording(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

// drain reads every frame from src and closes it.
func drain(t *testing.T, src l1detections.Source) []l1detections.FrameDetections {
	t.Helper()
	defer src.Close()
	var out []l1detections.FrameDetections
	for {
		fd, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, fd)
	}
}

func mmposePerson(x, score float64) string {
	kps := make([]string, l2frames.NumJoints)
	scores := make([]string, l2frames.NumJoints)
	for j := range kps {
		kps[j] = fmt.Sprintf("[%g, %d]", x, 10*j)
		scores[j] = fmt.Sprintf("%g", score)
	}
	return fmt.Sprintf(`{"keypoints": [%s], "keypoint_scores": [%s]}`, strings.Join(kps, ","), strings.Join(scores, ","))
}

func yoloPerson(x, score float64) string {
	kps := make([]string, l2frames.NumJoints)
	for j := range kps {
		kps[j] = fmt.Sprintf("[%g, %d, %g]", x, 10*j, score)
	}
	return "[" + strings.Join(kps, ",") + "]"
}

func TestRegistry(t *testing.T) {
	names := Names()
	assert.Subset(t, names, []string{MMPoseName, YOLOName, SyntheticName})
	assert.IsIncreasing(t, names)

	det, err := New(SyntheticName, Options{Frames: 5})
	require.NoError(t, err)
	assert.Equal(t, SyntheticName, det.Name())

	_, err = New("openpose", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown detector")

	assert.Panics(t, func() {
		Register(MMPoseName, func(Options) (l1detections.Detector, error) { return MMPose{}, nil })
	})
}

func TestMMPose_Replay(t *testing.T) {
	path := writeRecording(t,
		`{"predictions": [[`+mmposePerson(100, 0.4)+`,`+mmposePerson(300, 0.9)+`]]}`,
		``,
		`{"predictions": [[]]}`,
		`{"predictions": [[`+mmposePerson(120, 0.8)+`]]}`,
	)

	src, err := MMPose{}.Open(context.Background(), path)
	require.NoError(t, err)
	frames := drain(t, src)
	require.Len(t, frames, 3, "blank lines are not frames")

	assert.Equal(t, 0, frames[0].Index)
	require.Len(t, frames[0].Candidates, 2)
	assert.Empty(t, frames[1].Candidates)
	assert.Equal(t, 2, frames[2].Index)

	f, err := l1detections.Select(frames[0])
	require.NoError(t, err)
	assert.Equal(t, 300.0, f[l2frames.Nose].X)
	assert.Equal(t, 160.0, f[l2frames.RightAnkle].Y)
}

func TestYOLO_Replay(t *testing.T) {
	path := writeRecording(t,
		`{"keypoints": [`+yoloPerson(50, 0.7)+`]}`,
		`{"keypoints": null}`,
	)

	src, err := YOLO{}.Open(context.Background(), path)
	require.NoError(t, err)
	frames := drain(t, src)
	require.Len(t, frames, 2)
	require.Len(t, frames[0].Candidates, 1)
	c := frames[0].Candidates[0]
	assert.Equal(t, [2]float64{50, 30}, c.Keypoints[l2frames.LeftEar])
	assert.Equal(t, 0.7, c.Scores[l2frames.LeftEar])
	assert.Empty(t, frames[1].Candidates)
}

func TestYOLO_NullJointIsMissing(t *testing.T) {
	person := strings.Replace(yoloPerson(50, 0.7), "[50, 0, 0.7]", "[null, null, 0.7]", 1)
	require.Contains(t, person, "null")
	path := writeRecording(t, `{"keypoints": [`+person+`]}`)

	src, err := YOLO{}.Open(context.Background(), path)
	require.NoError(t, err)
	frames := drain(t, src)
	require.Len(t, frames, 1)

	f, err := l1detections.Select(frames[0])
	require.NoError(t, err)
	assert.False(t, f[l2frames.Nose].Valid)
	assert.True(t, f[l2frames.LeftEye].Valid)
}

func TestYOLO_RejectsShortTriple(t *testing.T) {
	path := writeRecording(t, `{"keypoints": [[[1, 2]]]}`)
	src, err := YOLO{}.Open(context.Background(), path)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
	assert.Contains(t, err.Error(), "[x, y, conf]")
}

func TestReplay_MalformedLine(t *testing.T) {
	path := writeRecording(t,
		`{"predictions": [[]]}`,
		`{"predictions": [[{]]`,
	)
	src, err := MMPose{}.Open(context.Background(), path)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReplay_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.jsonl")
	for _, det := range []l1detections.Detector{MMPose{}, YOLO{}} {
		_, err := det.Open(context.Background(), missing)
		assert.ErrorIs(t, err, l1detections.ErrVideoNotFound, det.Name())
	}
}

func TestReplay_ContextCancelled(t *testing.T) {
	path := writeRecording(t, `{"predictions": [[]]}`)
	src, err := MMPose{}.Open(context.Background(), path)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSquatPose_Geometry(t *testing.T) {
	const n = 101
	hip := SquatHipY(n)
	assert.InDelta(t, SquatHipCenter-SquatAmplitude, hip[0], 1e-9)
	assert.InDelta(t, SquatHipCenter+SquatAmplitude, hip[50], 1e-9)
	assert.InDelta(t, SquatHipCenter-SquatAmplitude, hip[n-1], 1e-9)

	deep := SquatPose(50, n)
	assert.InDelta(t, hip[50], deep[l2frames.LeftHip][1], 1e-9)
	assert.Equal(t, standingPose[l2frames.LeftAnkle], deep[l2frames.LeftAnkle])
	assert.InDelta(t, standingPose[l2frames.LeftKnee][1]+SquatAmplitude/3, deep[l2frames.LeftKnee][1], 1e-9)
}

func TestSynthetic_NoiselessMatchesTrajectory(t *testing.T) {
	s := NewSynthetic(Options{Frames: 40})
	src, err := s.Open(context.Background(), "squat.mp4")
	require.NoError(t, err)
	frames := drain(t, src)
	require.Len(t, frames, 40)

	hip := SquatHipY(40)
	for i, fd := range frames {
		require.Len(t, fd.Candidates, 1)
		c := fd.Candidates[0]
		require.NoError(t, c.Validate())
		assert.Equal(t, hip[i], c.Keypoints[l2frames.LeftHip][1])
		assert.GreaterOrEqual(t, c.Scores[l2frames.Nose], 0.8)
	}
}

func TestSynthetic_Deterministic(t *testing.T) {
	opts := Options{Frames: 30, Noise: 3, DropRate: 0.2, Seed: 9}
	run := func(path string) []l1detections.FrameDetections {
		src, err := NewSynthetic(opts).Open(context.Background(), path)
		require.NoError(t, err)
		return drain(t, src)
	}

	a, b := run("a.mp4"), run("a.mp4")
	assert.Equal(t, a, b)

	c := run("c.mp4")
	assert.NotEqual(t, a, c, "different videos get different jitter")
}

func TestSynthetic_DropRate(t *testing.T) {
	src, err := NewSynthetic(Options{Frames: 400, DropRate: 0.25, Seed: 1}).Open(context.Background(), "drop.mp4")
	require.NoError(t, err)
	frames := drain(t, src)

	empty := 0
	for _, fd := range frames {
		if len(fd.Candidates) == 0 {
			empty++
		}
	}
	assert.InDelta(t, 100, empty, 40)
}

func TestSynthetic_BystanderLosesSelection(t *testing.T) {
	src, err := NewSynthetic(Options{Frames: 10, Bystander: true, Seed: 3}).Open(context.Background(), "two.mp4")
	require.NoError(t, err)
	for _, fd := range drain(t, src) {
		require.Len(t, fd.Candidates, 2)
		f, err := l1detections.Select(fd)
		require.NoError(t, err)
		assert.Less(t, f[l2frames.Nose].X, 200.0, "the subject, not the bystander, is selected")
	}
}

func TestSynthetic_Defaults(t *testing.T) {
	s := NewSynthetic(Options{Noise: -1})
	assert.Equal(t, 150, s.Frames())
	assert.True(t, s.ConcurrentSafe())
}
