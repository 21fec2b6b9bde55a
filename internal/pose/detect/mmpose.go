package detect

import (
	"context"
	"encoding/json"

	"github.com/banshee-data/pose.report/internal/pose/l1detections"
)

// MMPoseName is the registry name of the MMPose replay backend.
const MMPoseName = "mmpose"

// MMPose replays MMPoseInferencer output. Each line holds one frame:
//
//	{"predictions": [[{"keypoints": [[x, y], ...], "keypoint_scores": [...]}, ...]]}
//
// predictions is batched; the first batch entry lists the persons.
type MMPose struct{}

type mmposeFrame struct {
	Predictions [][]l1detections.Candidate `json:"predictions"`
}

// Name implements l1detections.Detector.
func (MMPose) Name() string { return MMPoseName }

// ConcurrentSafe implements l1detections.Detector. Each Open reads its own
// file.
func (MMPose) ConcurrentSafe() bool { return true }

// InputExtensions implements l1detections.InputTyper.
func (MMPose) InputExtensions() []string { return recordingExtensions }

// Open starts replaying the recording at path.
func (MMPose) Open(_ context.Context, path string) (l1detections.Source, error) {
	return openJSONL(path, decodeMMPose)
}

func decodeMMPose(line []byte) ([]l1detections.Candidate, error) {
	var f mmposeFrame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, err
	}
	if len(f.Predictions) == 0 {
		return nil, nil
	}
	return f.Predictions[0], nil
}
