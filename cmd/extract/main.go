// Command extract runs the pose pipeline on one video and writes its data
// packet as JSON, optionally storing it in a SQLite database and writing a
// VideoPose3D custom-dataset export.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/fsutil"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/detect"
	"github.com/banshee-data/pose.report/internal/pose/packet"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/pose/storage/sqlite"
	"github.com/banshee-data/pose.report/internal/pose/video"
	"github.com/banshee-data/pose.report/internal/version"
)

var (
	detectorName = flag.String("detector", detect.MMPoseName, "Detector backend (mmpose, yolo, synthetic, movenet)")
	modelPath    = flag.String("model", "", "Model file for inference backends")
	threads      = flag.Int("threads", 4, "Inference threads")
	configPath   = flag.String("config", "", "Signal config JSON (defaults built in)")
	outPath      = flag.String("out", "", "Packet JSON path (default <video>.json in the current directory)")
	dbPath       = flag.String("db", "", "Also store the packet in this SQLite database")
	vp3dPath     = flag.String("videopose3d", "", "Also write a VideoPose3D export to this path")
	probe        = flag.Bool("probe", true, "Probe the video with ffprobe for frame size and rate")
	verbose      = flag.Bool("v", false, "Log per-video diagnostics")
	trace        = flag.Bool("trace", false, "Log per-frame telemetry")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <video>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	videoPath := flag.Arg(0)

	setupLogging(*verbose, *trace)

	cfg := config.EmptySignalConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadSignalConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	det, err := detect.New(*detectorName, detect.Options{ModelPath: *modelPath, Threads: *threads})
	if err != nil {
		log.Fatalf("failed to create detector: %v", err)
	}
	if c, ok := det.(io.Closer); ok {
		defer c.Close()
	}

	opts := pipeline.Options{Signal: cfg, FS: fsutil.OSFileSystem{}}
	if *probe {
		opts.Prober = video.FFProbe{Timeout: 30 * time.Second}
	}
	p, err := pipeline.New(det, opts)
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := *outPath
	if out == "" {
		out = pipeline.OutputName(videoPath)
	}
	res, err := p.ProcessToFile(ctx, videoPath, out)
	if err != nil {
		log.Fatalf("%v", err)
	}
	pkt := res.Packet
	log.Printf("wrote %s: %d frames, %d empty, %d samples filled, smoothed=%v",
		out, pkt.FrameCount, res.Raw.EmptyFrames(), res.GapFill.FilledSamples, pkt.Meta.Smoothed)

	if *dbPath != "" {
		db, err := sqlite.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		id, err := sqlite.NewPacketStore(db.DB).Insert(pkt)
		if err != nil {
			log.Fatalf("failed to store packet: %v", err)
		}
		log.Printf("stored packet %s in %s", id, *dbPath)
	}

	if *vp3dPath != "" {
		if err := writeVideoPose3D(pkt, *vp3dPath); err != nil {
			log.Fatalf("failed to write VideoPose3D export: %v", err)
		}
		log.Printf("wrote VideoPose3D export %s", *vp3dPath)
	}
}

func writeVideoPose3D(pkt *packet.DataPacket, path string) error {
	export := packet.NewVideoPose3DExport()
	md := packet.VideoMetadata{}
	if pkt.Meta != nil {
		md = packet.VideoMetadata{W: pkt.Meta.Width, H: pkt.Meta.Height, FPS: pkt.Meta.FPS}
	}
	if err := export.Add(pkt, md); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func setupLogging(verbose, trace bool) {
	w := pose.LogWriters{Ops: os.Stderr}
	if verbose {
		w.Diag = os.Stderr
	}
	if trace {
		w.Trace = os.Stderr
	}
	pose.SetLogWriters(w)
}
