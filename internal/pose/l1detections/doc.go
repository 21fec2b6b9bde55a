// Package l1detections owns Layer 1 (Detections) of the pose data model.
//
// Responsibilities: the detector capability interface every model backend
// implements, the per-frame candidate sets it yields, and the frame selector
// that collapses each candidate set to a single person.
// Key types: Detector, Source, FrameDetections, Candidate.
//
// Dependency rule: L1 may depend on L2 (the selected Frame type) but on
// nothing that cleans or normalises signals.
package l1detections
