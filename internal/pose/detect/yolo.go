package detect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/pose.report/internal/pose/l1detections"
)

// YOLOName is the registry name of the YOLOv8-pose replay backend.
const YOLOName = "yolo"

// YOLO replays YOLOv8-pose keypoint tensors. Each line holds one frame:
//
//	{"keypoints": [[[x, y, conf], ...17], ...persons]}
//
// A frame with no person has an empty or null keypoints array. A null
// coordinate or confidence marks that joint missing.
type YOLO struct{}

type yoloFrame struct {
	Keypoints [][][]*float64 `json:"keypoints"`
}

// Name implements l1detections.Detector.
func (YOLO) Name() string { return YOLOName }

// ConcurrentSafe implements l1detections.Detector.
func (YOLO) ConcurrentSafe() bool { return true }

// InputExtensions implements l1detections.InputTyper.
func (YOLO) InputExtensions() []string { return recordingExtensions }

// Open starts replaying the recording at path.
func (YOLO) Open(_ context.Context, path string) (l1detections.Source, error) {
	return openJSONL(path, decodeYOLO)
}

func decodeYOLO(line []byte) ([]l1detections.Candidate, error) {
	var f yoloFrame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, err
	}
	cands := make([]l1detections.Candidate, 0, len(f.Keypoints))
	for p, person := range f.Keypoints {
		c := l1detections.Candidate{
			Keypoints: make([][2]float64, len(person)),
			Scores:    make([]float64, len(person)),
		}
		for j, kp := range person {
			if len(kp) != 3 {
				return nil, fmt.Errorf("person %d joint %d: want [x, y, conf], got %d values", p, j, len(kp))
			}
			c.Keypoints[j] = [2]float64{l1detections.NullAsNaN(kp[0]), l1detections.NullAsNaN(kp[1])}
			c.Scores[j] = l1detections.NullAsNaN(kp[2])
		}
		cands = append(cands, c)
	}
	return cands, nil
}
