// Package l4normalize owns Layer 4 (Normalized) of the pose data model.
//
// Responsibilities: removing camera distance and framing from a keypoint
// sequence. Each frame is recentred on its hip midpoint and scaled by the
// inverse of its torso length, so the same movement yields comparable
// magnitudes wherever the subject stands.
// Key types: Normalizer, Config, Reference.
//
// Frames are normalized independently; no state crosses frames.
//
// Dependency rule: L4 may depend on L2 (frames) and config.
package l4normalize
