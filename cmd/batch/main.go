// Command batch runs the pose pipeline over every video in a directory,
// writing one packet JSON per video. Existing packets are skipped unless
// -overwrite is set, and a failing video never stops the batch.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/fsutil"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/batch"
	"github.com/banshee-data/pose.report/internal/pose/detect"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/pose/storage/sqlite"
	"github.com/banshee-data/pose.report/internal/pose/video"
	"github.com/banshee-data/pose.report/internal/version"
)

var (
	inputDir     = flag.String("in", "", "Directory of input videos (required)")
	outputDir    = flag.String("out", "", "Directory for packet JSON files (required)")
	extensions   = flag.String("ext", "", "Comma-separated input extensions (default: .jsonl for replay detectors, else .mp4,.mov,.avi)")
	detectorName = flag.String("detector", detect.MMPoseName, "Detector backend (mmpose, yolo, synthetic, movenet)")
	modelPath    = flag.String("model", "", "Model file for inference backends")
	threads      = flag.Int("threads", 4, "Inference threads")
	workers      = flag.Int("workers", 1, "Videos processed concurrently (concurrency-safe detectors only)")
	overwrite    = flag.Bool("overwrite", false, "Reprocess videos whose packet already exists")
	configPath   = flag.String("config", "", "Signal config JSON (defaults built in)")
	dbPath       = flag.String("db", "", "Also store packets and the run summary in this SQLite database")
	probe        = flag.Bool("probe", false, "Probe each video with ffprobe for frame size and rate")
	noProgress   = flag.Bool("no-progress", false, "Disable the progress bar")
	verbose      = flag.Bool("v", false, "Log per-video diagnostics")
	trace        = flag.Bool("trace", false, "Log per-frame telemetry")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *inputDir == "" || *outputDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	w := pose.LogWriters{Ops: os.Stderr}
	if *verbose {
		w.Diag = os.Stderr
	}
	if *trace {
		w.Trace = os.Stderr
	}
	pose.SetLogWriters(w)

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

	fs := fsutil.OSFileSystem{}
	popts := pipeline.Options{Signal: cfg, FS: fs}
	if *probe {
		popts.Prober = video.FFProbe{Timeout: 30 * time.Second}
	}
	p, err := pipeline.New(det, popts)
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	opts := batch.Options{
		InputDir:   *inputDir,
		OutputDir:  *outputDir,
		Extensions: splitExtensions(*extensions),
		Workers:    *workers,
		Overwrite:  *overwrite,
		FS:         fs,
	}

	var runs *sqlite.RunStore
	var run *sqlite.BatchRun
	if *dbPath != "" {
		db, err := sqlite.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		opts.Sink = sqlite.NewPacketStore(db.DB)
		runs = sqlite.NewRunStore(db.DB)
		run = &sqlite.BatchRun{Detector: det.Name(), InputDir: *inputDir, OutputDir: *outputDir}
		if err := runs.Start(run); err != nil {
			log.Fatalf("failed to record run: %v", err)
		}
	}

	var bar *pb.ProgressBar
	if !*noProgress {
		opts.Progress = func(p batch.Progress) {
			if bar == nil {
				bar = pb.ProgressBarTemplate(`{{ string . "prefix" }} {{counters . }} {{bar . }} {{percent . }} {{etime . "%s elapsed"}}`).Start(p.Total)
				bar.Set("prefix", "videos")
			}
			bar.Increment()
		}
	}

	runner, err := batch.NewRunner(p, opts)
	if err != nil {
		log.Fatalf("failed to create runner: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := runner.Run(ctx)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		log.Fatalf("batch aborted: %v", err)
	}

	if runs != nil {
		if err := runs.Finish(run.RunID, len(sum.Processed), len(sum.Skipped), len(sum.Failed), time.Now()); err != nil {
			log.Printf("failed to record run summary: %v", err)
		}
	}

	log.Printf("%d videos: %d processed, %d skipped, %d failed",
		sum.Total, len(sum.Processed), len(sum.Skipped), len(sum.Failed))
	for video, err := range sum.Failed {
		log.Printf("failed %s: %v", video, err)
	}
	if len(sum.Failed) > 0 {
		os.Exit(1)
	}
}

func splitExtensions(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
