// Package l3signal owns Layer 3 (Signal) of the pose data model.
//
// Responsibilities: temporal cleaning of a keypoint sequence. Gap filling
// replaces missing samples by linear interpolation along the time axis, and
// the Savitzky-Golay smoother removes detector jitter while preserving
// curvature at motion extrema.
// Key types: GapFiller, Smoother, SavGolFilter.
//
// Every operation works per joint and per axis, returns a new sequence of the
// same shape, and never mutates its input.
package l3signal
