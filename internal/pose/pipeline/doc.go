// Package pipeline turns one video into one DataPacket.
//
// It is the composition root of the pose layers: detections from an
// injected l1detections.Detector are reduced to one person per frame,
// assembled into an l2frames.Sequence, gap filled and smoothed (l3signal),
// normalized (l4normalize) and packaged (packet). None of those packages
// import pipeline/.
//
// Processing of a single video is synchronous and buffers the whole
// sequence. A failure at any stage aborts that video and no packet file is
// written.
package pipeline
