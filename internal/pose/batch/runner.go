// Package batch runs the pose pipeline over every video in a directory.
//
// Per-video failures are logged and collected; they never stop the rest of
// the batch. Only cancellation of the context or an unreadable input
// directory aborts a run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/pose.report/internal/fsutil"
	"github.com/banshee-data/pose.report/internal/pose/l1detections"
	"github.com/banshee-data/pose.report/internal/pose/packet"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/security"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

// DefaultExtensions returns the input types scanned when none are
// configured: the detector's own, or video containers.
func DefaultExtensions(det l1detections.Detector) []string {
	return l1detections.InputExtensions(det)
}

// Status is the outcome of one video.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Progress is reported after each video finishes.
type Progress struct {
	Done   int
	Total  int
	Video  string
	Status Status
	Err    error
}

// PacketSink receives every packet produced by a run, for example a
// sqlite.PacketStore.
type PacketSink interface {
	Insert(pkt *packet.DataPacket) (string, error)
}

// Options configures a Runner.
type Options struct {
	InputDir  string
	OutputDir string
	// Extensions filters input files, compared case-insensitively.
	// DefaultExtensions of the pipeline's detector is used when empty.
	Extensions []string
	// Workers is the number of videos processed concurrently. Values
	// above 1 are honoured only for concurrency-safe detectors.
	Workers int
	// Overwrite reprocesses videos whose packet file already exists.
	Overwrite bool

	FS       fsutil.FileSystem
	Clock    timeutil.Clock
	Sink     PacketSink
	Progress func(Progress)
}

// Summary is the outcome of a run.
type Summary struct {
	Total     int
	Processed []string
	Skipped   []string
	Failed    map[string]error
	// Err combines every per-video failure, or is nil.
	Err error
}

// Runner processes a directory of videos with one pipeline.
type Runner struct {
	p    *pipeline.Pipeline
	opts Options
}

// NewRunner returns a Runner. The pipeline should share opts.FS so that
// packet writes and existence checks see the same filesystem.
func NewRunner(p *pipeline.Pipeline, opts Options) (*Runner, error) {
	if p == nil {
		return nil, errors.New("batch requires a pipeline")
	}
	if opts.InputDir == "" || opts.OutputDir == "" {
		return nil, errors.New("batch requires input and output directories")
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions(p.Detector())
	}
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Workers > 1 && !p.Detector().ConcurrentSafe() {
		opsf("detector %s is not concurrency-safe; running %d workers serially", p.Detector().Name(), opts.Workers)
		opts.Workers = 1
	}
	return &Runner{p: p, opts: opts}, nil
}

// Workers returns the effective worker count.
func (r *Runner) Workers() int {
	return r.opts.Workers
}

// Scan lists the input videos in name order.
func (r *Runner) Scan() ([]string, error) {
	names, err := r.opts.FS.ListFiles(r.opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("scan input dir: %w", err)
	}
	var videos []string
	for _, name := range names {
		if r.matches(name) {
			videos = append(videos, filepath.Join(r.opts.InputDir, name))
		}
	}
	sort.Strings(videos)
	return videos, nil
}

func (r *Runner) matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range r.opts.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// OutputPath returns where the packet for video is written.
func (r *Runner) OutputPath(video string) (string, error) {
	return security.OutputPath(r.opts.OutputDir, pipeline.OutputName(video))
}

// Run processes every scanned video. The returned error is non-nil only
// when the run could not start or ctx was cancelled; per-video failures are
// in Summary.Failed and Summary.Err.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	videos, err := r.Scan()
	if err != nil {
		return nil, err
	}
	if err := r.opts.FS.MkdirAll(r.opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	start := r.opts.Clock.Now()
	sum := &Summary{Total: len(videos), Failed: map[string]error{}}
	var mu sync.Mutex
	done := 0
	record := func(video string, status Status, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		switch status {
		case StatusProcessed:
			sum.Processed = append(sum.Processed, video)
		case StatusSkipped:
			sum.Skipped = append(sum.Skipped, video)
		case StatusFailed:
			sum.Failed[video] = err
			sum.Err = multierr.Append(sum.Err, err)
		}
		if r.opts.Progress != nil {
			r.opts.Progress(Progress{Done: done, Total: len(videos), Video: video, Status: status, Err: err})
		}
	}

	diagf("batch of %d videos from %s with %d workers", len(videos), r.opts.InputDir, r.opts.Workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, video := range videos {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			status, err := r.processOne(gctx, video)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			record(video, status, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	sort.Strings(sum.Processed)
	sort.Strings(sum.Skipped)
	diagf("batch finished in %v: %d processed, %d skipped, %d failed",
		r.opts.Clock.Since(start), len(sum.Processed), len(sum.Skipped), len(sum.Failed))
	return sum, nil
}

func (r *Runner) processOne(ctx context.Context, video string) (Status, error) {
	out, err := r.OutputPath(video)
	if err != nil {
		opsf("%s: %v", video, err)
		return StatusFailed, fmt.Errorf("%s: %w", video, err)
	}
	if !r.opts.Overwrite && r.opts.FS.Exists(out) {
		tracef("%s: %s exists, skipping", video, out)
		return StatusSkipped, nil
	}

	res, err := r.p.ProcessToFile(ctx, video, out)
	if err != nil {
		opsf("%v", err)
		return StatusFailed, err
	}
	if r.opts.Sink != nil {
		if _, err := r.opts.Sink.Insert(res.Packet); err != nil {
			// The packet file doubles as the skip marker, so it must not
			// outlive a failed insert.
			if rerr := r.opts.FS.Remove(out); rerr != nil {
				opsf("%s: remove %s after failed insert: %v", video, out, rerr)
			}
			opsf("%s: store packet: %v", video, err)
			return StatusFailed, fmt.Errorf("%s: store packet: %w", video, err)
		}
	}
	diagf("%s: %d frames -> %s", video, res.Packet.FrameCount, out)
	return StatusProcessed, nil
}
