// Package packet defines the DataPacket produced for each processed video
// and its JSON encodings.
package packet

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

// Keypoints is a [frames][17][2] coordinate array. Missing joints hold NaN
// and are encoded as JSON null.
type Keypoints [][l2frames.NumJoints][2]float64

// MarshalJSON writes NaN coordinates as null.
func (k Keypoints) MarshalJSON() ([]byte, error) {
	out := make([][l2frames.NumJoints][2]*float64, len(k))
	for i := range k {
		for j := range k[i] {
			for a := 0; a < 2; a++ {
				if v := k[i][j][a]; !math.IsNaN(v) && !math.IsInf(v, 0) {
					out[i][j][a] = &v
				}
			}
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null coordinates back as NaN. Frames must carry
// exactly 17 joints.
func (k *Keypoints) UnmarshalJSON(data []byte) error {
	var in [][][2]*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Keypoints, len(in))
	for i, frame := range in {
		if len(frame) != l2frames.NumJoints {
			return fmt.Errorf("frame %d has %d joints, want %d", i, len(frame), l2frames.NumJoints)
		}
		for j, xy := range frame {
			for a := 0; a < 2; a++ {
				if xy[a] == nil {
					out[i][j][a] = math.NaN()
				} else {
					out[i][j][a] = *xy[a]
				}
			}
		}
	}
	*k = out
	return nil
}

// Sequence converts the array back to a frame sequence. Scores may be nil.
func (k Keypoints) Sequence(scores [][l2frames.NumJoints]float64) (*l2frames.Sequence, error) {
	return l2frames.FromCoordinates(k, scores)
}

// Meta records how a packet was produced. It is not part of the
// downstream contract and may be empty.
type Meta struct {
	ID            string    `json:"id,omitempty"`
	Detector      string    `json:"detector,omitempty"`
	Version       string    `json:"version,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	WindowLength  int       `json:"window_length,omitempty"`
	PolyOrder     int       `json:"poly_order,omitempty"`
	Smoothed      bool      `json:"smoothed"`
	FilledSamples int       `json:"filled_samples,omitempty"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	FPS           float64   `json:"fps,omitempty"`
}

// DataPacket is the output record for one video. It is immutable once
// built: New copies everything it is given.
type DataPacket struct {
	VideoID             string                        `json:"video_id"`
	FrameCount          int                           `json:"frame_count"`
	RawKeypoints        Keypoints                     `json:"raw_keypoints"`
	SmoothedKeypoints   Keypoints                     `json:"smoothed_keypoints"`
	NormalizedKeypoints Keypoints                     `json:"normalized_keypoints"`
	Scores              [][l2frames.NumJoints]float64 `json:"scores"`
	Meta                *Meta                         `json:"meta,omitempty"`
}

// New assembles a packet from the three pipeline sequences. Scores are
// taken from raw, the only sequence that carries detector confidence for
// every detected joint. All three must have the same frame count.
func New(videoID string, raw, smoothed, normalized *l2frames.Sequence, meta *Meta) (*DataPacket, error) {
	n := raw.Len()
	if smoothed.Len() != n || normalized.Len() != n {
		return nil, fmt.Errorf("frame count mismatch: raw=%d smoothed=%d normalized=%d",
			n, smoothed.Len(), normalized.Len())
	}
	p := &DataPacket{
		VideoID:             videoID,
		FrameCount:          n,
		RawKeypoints:        raw.Coordinates(),
		SmoothedKeypoints:   smoothed.Coordinates(),
		NormalizedKeypoints: normalized.Coordinates(),
		Scores:              raw.Scores(),
	}
	if meta != nil {
		m := *meta
		p.Meta = &m
	}
	return p, nil
}

// Validate checks the shape invariants of a decoded packet.
func (p *DataPacket) Validate() error {
	if p.VideoID == "" {
		return fmt.Errorf("missing video_id")
	}
	for name, n := range map[string]int{
		"raw_keypoints":        len(p.RawKeypoints),
		"smoothed_keypoints":   len(p.SmoothedKeypoints),
		"normalized_keypoints": len(p.NormalizedKeypoints),
		"scores":               len(p.Scores),
	} {
		if n != p.FrameCount {
			return fmt.Errorf("%s has %d frames, frame_count is %d", name, n, p.FrameCount)
		}
	}
	return nil
}

// Encode writes p as JSON.
func (p *DataPacket) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(p)
}

// Decode reads and validates a packet.
func Decode(r io.Reader) (*DataPacket, error) {
	var p DataPacket
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode packet: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid packet: %w", err)
	}
	return &p, nil
}
