package packet

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

func sampleSequence(n int) *l2frames.Sequence {
	seq := l2frames.NewSequence(n)
	for i := 0; i < n; i++ {
		var f l2frames.Frame
		for j := range f {
			f[j] = l2frames.Keypoint{X: float64(i), Y: float64(j), Score: 0.5, Valid: true}
		}
		seq.Append(f)
	}
	return seq
}

func TestNew_FrameCountMismatch(t *testing.T) {
	t.Parallel()
	_, err := New("v.mp4", sampleSequence(3), sampleSequence(2), sampleSequence(3), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame count mismatch")
}

func TestNew_CopiesMeta(t *testing.T) {
	t.Parallel()
	meta := &Meta{Detector: "synthetic"}
	seq := sampleSequence(2)
	p, err := New("v.mp4", seq, seq, seq, meta)
	require.NoError(t, err)

	meta.Detector = "changed"
	assert.Equal(t, "synthetic", p.Meta.Detector)
	assert.Equal(t, 2, p.FrameCount)
}

func TestEncode_FieldNamesAndNull(t *testing.T) {
	t.Parallel()
	raw := sampleSequence(2)
	raw.Frames[1][l2frames.Nose] = l2frames.Keypoint{}

	p, err := New("squat.mp4", raw, raw, raw, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf))

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &generic))
	for _, key := range []string{"video_id", "frame_count", "raw_keypoints", "smoothed_keypoints", "normalized_keypoints", "scores"} {
		assert.Contains(t, generic, key)
	}
	assert.NotContains(t, generic, "meta")
	assert.True(t, strings.Contains(string(generic["raw_keypoints"]), "[null,null]"))
	assert.False(t, strings.Contains(buf.String(), "NaN"))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "squat.mp4", decoded.VideoID)
	assert.True(t, math.IsNaN(decoded.RawKeypoints[1][l2frames.Nose][0]))
	assert.Equal(t, 1.0, decoded.RawKeypoints[1][l2frames.LeftHip][0])
	assert.Equal(t, 0.0, decoded.Scores[1][l2frames.Nose])

	seq, err := decoded.RawKeypoints.Sequence(decoded.Scores)
	require.NoError(t, err)
	assert.False(t, seq.Frames[1][l2frames.Nose].Valid)
	assert.Equal(t, 0.5, seq.Frames[0][l2frames.Nose].Score)
}

func TestDecode_RejectsBadShapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"missing id", `{"frame_count":0,"raw_keypoints":[],"smoothed_keypoints":[],"normalized_keypoints":[],"scores":[]}`},
		{"count mismatch", `{"video_id":"a","frame_count":1,"raw_keypoints":[],"smoothed_keypoints":[],"normalized_keypoints":[],"scores":[]}`},
		{"short frame", `{"video_id":"a","frame_count":1,"raw_keypoints":[[[1,2]]]}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestEncode_Meta(t *testing.T) {
	t.Parallel()
	seq := sampleSequence(1)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := New("a", seq, seq, seq, &Meta{ID: "abc", CreatedAt: created, Smoothed: true, WindowLength: 7, PolyOrder: 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf))
	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.NotNil(t, decoded.Meta)
	assert.Equal(t, "abc", decoded.Meta.ID)
	assert.True(t, created.Equal(decoded.Meta.CreatedAt))
	assert.Equal(t, 7, decoded.Meta.WindowLength)
}
