package l2frames

import (
	"fmt"
	"strconv"
)

// Joint is a COCO-17 keypoint index.
type Joint int

// NumJoints is the fixed joint cardinality of the COCO-17 layout.
const NumJoints = 17

const (
	Nose Joint = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// LayoutName identifies the joint layout in exported metadata.
const LayoutName = "coco"

var jointNames = [NumJoints]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

// String returns the snake_case joint name.
func (j Joint) String() string {
	if !j.Valid() {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// Valid reports whether j is inside the COCO-17 layout.
func (j Joint) Valid() bool {
	return j >= 0 && j < NumJoints
}

// ParseJoint resolves a joint by name ("left_hip") or index ("11").
func ParseJoint(s string) (Joint, error) {
	for i, name := range jointNames {
		if name == s {
			return Joint(i), nil
		}
	}
	if idx, err := strconv.Atoi(s); err == nil && Joint(idx).Valid() {
		return Joint(idx), nil
	}
	return 0, fmt.Errorf("unknown joint %q", s)
}

// SymmetryLeft and SymmetryRight list mirrored joints index by index, in the
// order VideoPose3D expects for its keypoints_symmetry metadata.
var (
	SymmetryLeft  = []Joint{LeftEye, LeftEar, LeftShoulder, LeftElbow, LeftWrist, LeftHip, LeftKnee, LeftAnkle}
	SymmetryRight = []Joint{RightEye, RightEar, RightShoulder, RightElbow, RightWrist, RightHip, RightKnee, RightAnkle}
)

// Mirror returns the joint's left/right counterpart, or the joint itself
// for midline joints (nose).
func (j Joint) Mirror() Joint {
	for i, l := range SymmetryLeft {
		if l == j {
			return SymmetryRight[i]
		}
		if SymmetryRight[i] == j {
			return l
		}
	}
	return j
}

// Bone is a pair of joints connected in the skeleton drawing.
type Bone struct {
	A, B Joint
}

// Skeleton holds the COCO bone list used for rendering.
var Skeleton = []Bone{
	{LeftAnkle, LeftKnee}, {LeftKnee, LeftHip}, {RightAnkle, RightKnee}, {RightKnee, RightHip},
	{LeftHip, RightHip}, {LeftShoulder, LeftHip}, {RightShoulder, RightHip},
	{LeftShoulder, RightShoulder}, {LeftShoulder, LeftElbow}, {RightShoulder, RightElbow},
	{LeftElbow, LeftWrist}, {RightElbow, RightWrist},
	{LeftEye, RightEye}, {Nose, LeftEye}, {Nose, RightEye},
	{LeftEye, LeftEar}, {RightEye, RightEar}, {LeftEar, LeftShoulder}, {RightEar, RightShoulder},
}
