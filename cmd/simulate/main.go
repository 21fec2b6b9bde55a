// Command simulate runs the pipeline on a synthetic squat and reports how
// close the raw and smoothed hip trajectories are to the known motion.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/fsutil"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/detect"
	"github.com/banshee-data/pose.report/internal/pose/l2frames"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/pose/report"
	"github.com/banshee-data/pose.report/internal/version"
)

var (
	frames      = flag.Int("frames", 150, "Frames in the simulated squat")
	noise       = flag.Float64("noise", 3, "Keypoint jitter sigma in pixels")
	dropRate    = flag.Float64("drop", 0.05, "Fraction of frames with no detection")
	seed        = flag.Uint64("seed", 42, "Random seed")
	bystander   = flag.Bool("bystander", false, "Add a less confident second person")
	window      = flag.Int("window", 0, "Savitzky-Golay window length override")
	poly        = flag.Int("poly", 0, "Savitzky-Golay polynomial order override")
	plotPath    = flag.String("plot", "", "Write a hip trajectory PNG to this path")
	outPath     = flag.String("out", "", "Write the packet JSON to this path")
	verbose     = flag.Bool("v", false, "Log per-video diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	w := pose.LogWriters{Ops: os.Stderr}
	if *verbose {
		w.Diag = os.Stderr
	}
	pose.SetLogWriters(w)

	cfg := config.EmptySignalConfig()
	if *window > 0 {
		cfg.WindowLength = window
	}
	if *poly > 0 {
		cfg.PolyOrder = poly
	}

	det := detect.NewSynthetic(detect.Options{
		Frames:    *frames,
		Noise:     *noise,
		DropRate:  *dropRate,
		Seed:      *seed,
		Bystander: *bystander,
	})
	p, err := pipeline.New(det, pipeline.Options{Signal: cfg, FS: fsutil.OSFileSystem{}})
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	res, err := p.Process(context.Background(), "synthetic-squat.mp4")
	if err != nil {
		log.Fatalf("%v", err)
	}
	pkt := res.Packet

	truth := detect.SquatHipY(det.Frames())
	raw, smoothed, _ := report.JointSeries(pkt, l2frames.LeftHip, l2frames.AxisY)
	rawErr, rawN := report.RMSE(truth, raw)
	smoothErr, smoothN := report.RMSE(truth, smoothed)

	fmt.Printf("frames:         %d (%d without a detection)\n", pkt.FrameCount, res.Raw.EmptyFrames())
	fmt.Printf("filled samples: %d\n", res.GapFill.FilledSamples)
	fmt.Printf("window/poly:    %d/%d smoothed=%v\n", pkt.Meta.WindowLength, pkt.Meta.PolyOrder, pkt.Meta.Smoothed)
	fmt.Printf("raw RMSE:       %.3f px over %d frames\n", rawErr, rawN)
	fmt.Printf("smoothed RMSE:  %.3f px over %d frames\n", smoothErr, smoothN)

	if *outPath != "" {
		if err := p.WritePacket(pkt, *outPath); err != nil {
			log.Fatalf("failed to write packet: %v", err)
		}
		log.Printf("wrote %s", *outPath)
	}

	if *plotPath != "" {
		tr := report.PacketTrajectory(pkt, l2frames.LeftHip, l2frames.AxisY)
		tr.Title = fmt.Sprintf("synthetic squat: left hip y (noise %.1f px, seed %d)", *noise, *seed)
		tr.Series = append([]report.Series{{Label: "truth", Values: truth, Dashed: true}}, tr.Series...)
		if err := tr.SavePNG(*plotPath); err != nil {
			log.Fatalf("failed to write plot: %v", err)
		}
		log.Printf("wrote %s", *plotPath)
	}
}
