// Package report renders joint trajectories from data packets as PNG plots
// and computes simple error metrics against a known trajectory.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pose.report/internal/pose/l2frames"
	"github.com/banshee-data/pose.report/internal/pose/packet"
)

// Plot size.
var (
	Width  = 10 * vg.Inch
	Height = 5 * vg.Inch
)

// Series is one labelled line. NaN values are missing samples and are left
// out of the line.
type Series struct {
	Label  string
	Values []float64
	Dashed bool
}

// Trajectory describes a time-series plot over frame index.
type Trajectory struct {
	Title  string
	YLabel string
	Series []Series
	// InvertY draws image coordinates the right way up (y grows down).
	InvertY bool
}

var palette = []color.Color{
	color.RGBA{R: 160, G: 160, B: 160, A: 255},
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
}

// JointSeries extracts one joint axis from each keypoint array of pkt.
func JointSeries(pkt *packet.DataPacket, j l2frames.Joint, a l2frames.Axis) (raw, smoothed, normalized []float64) {
	pick := func(k packet.Keypoints) []float64 {
		out := make([]float64, len(k))
		for i := range k {
			out[i] = k[i][j][a]
		}
		return out
	}
	return pick(pkt.RawKeypoints), pick(pkt.SmoothedKeypoints), pick(pkt.NormalizedKeypoints)
}

// PacketTrajectory builds the raw versus smoothed plot of one joint axis.
func PacketTrajectory(pkt *packet.DataPacket, j l2frames.Joint, a l2frames.Axis) Trajectory {
	raw, smoothed, _ := JointSeries(pkt, j, a)
	return Trajectory{
		Title:   fmt.Sprintf("%s: %s %s", pkt.VideoID, j, a),
		YLabel:  a.String() + " (px)",
		InvertY: a == l2frames.AxisY,
		Series: []Series{
			{Label: "raw", Values: raw},
			{Label: "smoothed", Values: smoothed},
		},
	}
}

// Plot builds the plot for tr.
func (tr Trajectory) Plot() (*plot.Plot, error) {
	if len(tr.Series) == 0 {
		return nil, errors.New("trajectory has no series")
	}
	p := plot.New()
	p.Title.Text = tr.Title
	p.X.Label.Text = "frame"
	p.Y.Label.Text = tr.YLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, s := range tr.Series {
		pts := points(s.Values)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.Label, err)
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(1.5)
		if s.Dashed {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		}
		p.Add(line)
		p.Legend.Add(s.Label, line)
	}
	if tr.InvertY {
		p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	}
	return p, nil
}

// WritePNG renders tr as a PNG image to w.
func (tr Trajectory) WritePNG(w io.Writer) error {
	p, err := tr.Plot()
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG renders tr to the file at path.
func (tr Trajectory) SavePNG(path string) error {
	p, err := tr.Plot()
	if err != nil {
		return err
	}
	return p.Save(Width, Height, path)
}

func points(values []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: v})
	}
	return pts
}

// RMSE returns the root mean square error of est against truth over the
// samples where both are defined, and the number of such samples. It
// returns NaN when there are none.
func RMSE(truth, est []float64) (float64, int) {
	n := min(len(truth), len(est))
	var diff []float64
	for i := 0; i < n; i++ {
		if math.IsNaN(truth[i]) || math.IsNaN(est[i]) {
			continue
		}
		diff = append(diff, est[i]-truth[i])
	}
	if len(diff) == 0 {
		return math.NaN(), 0
	}
	return math.Sqrt(floats.Dot(diff, diff) / float64(len(diff))), len(diff)
}
