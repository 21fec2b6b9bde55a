package packet

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

// VideoPose3DAction is the action key used for custom 2D datasets.
const VideoPose3DAction = "custom"

// VideoMetadata is the per-video entry of the VideoPose3D metadata block.
type VideoMetadata struct {
	W   int     `json:"w"`
	H   int     `json:"h"`
	FPS float64 `json:"fps"`
}

// VideoPose3DMetadata describes the keypoint layout to the 3D lifter.
type VideoPose3DMetadata struct {
	LayoutName        string                   `json:"layout_name"`
	NumJoints         int                      `json:"num_joints"`
	KeypointsSymmetry [2][]int                 `json:"keypoints_symmetry"`
	VideoMetadata     map[string]VideoMetadata `json:"video_metadata"`
}

// VideoPose3DExport is a custom 2D dataset in the layout the VideoPose3D
// lifter reads: positions_2d[video]["custom"] holds one keypoint array per
// camera.
type VideoPose3DExport struct {
	Positions2D map[string]map[string][]Keypoints `json:"positions_2d"`
	Metadata    VideoPose3DMetadata               `json:"metadata"`
}

// NewVideoPose3DExport returns an empty COCO-17 export.
func NewVideoPose3DExport() *VideoPose3DExport {
	left := make([]int, len(l2frames.SymmetryLeft))
	for i, j := range l2frames.SymmetryLeft {
		left[i] = int(j)
	}
	right := make([]int, len(l2frames.SymmetryRight))
	for i, j := range l2frames.SymmetryRight {
		right[i] = int(j)
	}
	return &VideoPose3DExport{
		Positions2D: make(map[string]map[string][]Keypoints),
		Metadata: VideoPose3DMetadata{
			LayoutName:        l2frames.LayoutName,
			NumJoints:         l2frames.NumJoints,
			KeypointsSymmetry: [2][]int{left, right},
			VideoMetadata:     make(map[string]VideoMetadata),
		},
	}
}

// Add registers the smoothed keypoints of p under its video id. The lifter
// cannot consume missing joints, so packets with residual gaps are
// rejected.
func (e *VideoPose3DExport) Add(p *DataPacket, md VideoMetadata) error {
	for i := range p.SmoothedKeypoints {
		for j := range p.SmoothedKeypoints[i] {
			xy := p.SmoothedKeypoints[i][j]
			if math.IsNaN(xy[0]) || math.IsNaN(xy[1]) {
				return fmt.Errorf("video %s frame %d joint %s: missing keypoint", p.VideoID, i, l2frames.Joint(j))
			}
		}
	}
	e.Positions2D[p.VideoID] = map[string][]Keypoints{
		VideoPose3DAction: {p.SmoothedKeypoints},
	}
	e.Metadata.VideoMetadata[p.VideoID] = md
	return nil
}

// Encode writes the export as JSON.
func (e *VideoPose3DExport) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(e)
}
