// Package l2frames owns Layer 2 (Frames) of the pose data model.
//
// Responsibilities: the COCO-17 joint layout, per-joint keypoints with an
// explicit presence flag, fixed-width frames and the per-video keypoint
// sequence that later layers clean and normalise.
// Key types: Joint, Keypoint, Frame, Sequence.
//
// Dependency rule: L2 may depend on nothing above it. Detection candidates
// (L1) are converted into frames by the selector, not by this package.
package l2frames
