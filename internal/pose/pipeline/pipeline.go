package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/fsutil"
	"github.com/banshee-data/pose.report/internal/pose/l1detections"
	"github.com/banshee-data/pose.report/internal/pose/l2frames"
	"github.com/banshee-data/pose.report/internal/pose/l3signal"
	"github.com/banshee-data/pose.report/internal/pose/l4normalize"
	"github.com/banshee-data/pose.report/internal/pose/packet"
	"github.com/banshee-data/pose.report/internal/pose/video"
	"github.com/banshee-data/pose.report/internal/timeutil"
	"github.com/banshee-data/pose.report/internal/version"
)

// Options configures a Pipeline. Only Signal is consulted for signal
// parameters; the other fields default when nil.
type Options struct {
	Signal *config.SignalConfig
	Clock  timeutil.Clock
	FS     fsutil.FileSystem
	// Prober, when set, stamps frame size and rate into packet metadata.
	// Probe failures are logged and otherwise ignored.
	Prober video.Prober
}

// Pipeline processes videos with an injected detector. It holds no
// per-video state, so one Pipeline may process several videos
// concurrently when its detector allows it.
type Pipeline struct {
	detector   l1detections.Detector
	gaps       *l3signal.GapFiller
	smoother   *l3signal.Smoother
	normalizer *l4normalize.Normalizer
	clock      timeutil.Clock
	fs         fsutil.FileSystem
	prober     video.Prober
}

// Result carries the packet and the stage reports for one video.
type Result struct {
	Packet    *packet.DataPacket
	Raw       *l2frames.Sequence
	Filled    *l2frames.Sequence
	Smoothed  *l2frames.Sequence
	GapFill   l3signal.GapFillReport
	Smooth    l3signal.SmoothReport
	Normalize l4normalize.Report
}

// New builds a Pipeline around det.
func New(det l1detections.Detector, opts Options) (*Pipeline, error) {
	if det == nil {
		return nil, errors.New("pipeline requires a detector")
	}
	cfg := opts.Signal
	if cfg == nil {
		cfg = config.EmptySignalConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signal config: %w", err)
	}

	smoother, err := l3signal.NewSmoother(l3signal.SmootherConfigFromSignal(cfg))
	if err != nil {
		return nil, fmt.Errorf("create smoother: %w", err)
	}

	p := &Pipeline{
		detector:   det,
		gaps:       l3signal.NewGapFiller(cfg),
		smoother:   smoother,
		normalizer: l4normalize.New(l4normalize.ConfigFromSignal(cfg)),
		clock:      opts.Clock,
		fs:         opts.FS,
		prober:     opts.Prober,
	}
	if p.clock == nil {
		p.clock = timeutil.RealClock{}
	}
	if p.fs == nil {
		p.fs = fsutil.OSFileSystem{}
	}
	return p, nil
}

// Detector returns the injected detector.
func (p *Pipeline) Detector() l1detections.Detector {
	return p.detector
}

// VideoID derives the packet identifier from a video path: its base name.
func VideoID(path string) string {
	return filepath.Base(path)
}

// Process runs detection and the signal stages on the video at path.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	id := VideoID(path)
	start := p.clock.Now()

	raw, err := p.detect(ctx, id, path)
	if err != nil {
		return nil, err
	}

	meta := &packet.Meta{Detector: p.detector.Name()}
	if p.prober != nil {
		if info, err := p.prober.Probe(ctx, path); err != nil {
			opsf("video %s: probe failed, metadata omitted: %v", id, err)
		} else {
			meta.Width, meta.Height, meta.FPS = info.Width, info.Height, info.FPS
		}
	}

	res, err := p.ProcessSequence(id, raw, meta)
	if err != nil {
		return nil, err
	}
	diagf("video %s: %d frames (%d empty) in %v", id, raw.Len(), raw.EmptyFrames(), p.clock.Since(start))
	return res, nil
}

// detect drains the detector's source, selecting one person per frame.
func (p *Pipeline) detect(ctx context.Context, id, path string) (*l2frames.Sequence, error) {
	src, err := p.detector.Open(ctx, path)
	if err != nil {
		return nil, stageErr(id, StageOpen, err)
	}
	defer src.Close()

	seq := l2frames.NewSequence(0)
	for {
		dets, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stageErr(id, StageDetect, fmt.Errorf("frame %d: %w", seq.Len(), err))
		}

		frame, err := l1detections.Select(dets)
		if err != nil {
			return nil, stageErr(id, StageSelect, err)
		}
		tracef("video %s frame %d: %d candidates, %d joints", id, dets.Index, len(dets.Candidates), frame.DetectedJoints())
		seq.Append(frame)
	}

	if seq.Len() == 0 {
		return nil, stageErr(id, StageDetect, errors.New("detector produced no frames"))
	}
	return seq, nil
}

// ProcessSequence runs gap filling, smoothing and normalization on an
// already assembled raw sequence and builds the packet. meta may be nil.
func (p *Pipeline) ProcessSequence(id string, raw *l2frames.Sequence, meta *packet.Meta) (*Result, error) {
	res := &Result{Raw: raw}

	res.Filled, res.GapFill = p.gaps.Fill(raw)
	if err := checkShape(raw, res.Filled); err != nil {
		return nil, stageErr(id, StageGapFill, err)
	}

	res.Smoothed, res.Smooth = p.smoother.Smooth(res.Filled)
	if err := checkShape(raw, res.Smoothed); err != nil {
		return nil, stageErr(id, StageSmooth, err)
	}

	normalized, report := p.normalizer.Normalize(res.Smoothed)
	res.Normalize = report
	if err := checkShape(raw, normalized); err != nil {
		return nil, stageErr(id, StageNormalize, err)
	}

	if meta == nil {
		meta = &packet.Meta{}
	}
	m := *meta
	m.Version = version.Version
	m.CreatedAt = p.clock.Now().UTC()
	cfg := p.smoother.Config()
	m.WindowLength, m.PolyOrder = cfg.WindowLength, cfg.PolyOrder
	m.Smoothed = !res.Smooth.Skipped
	m.FilledSamples = res.GapFill.FilledSamples

	pkt, err := packet.New(id, raw, res.Smoothed, normalized, &m)
	if err != nil {
		return nil, stageErr(id, StagePacket, err)
	}
	res.Packet = pkt

	if res.GapFill.ResidualMissed > 0 {
		diagf("video %s: %d joint samples still missing after gap fill", id, res.GapFill.ResidualMissed)
	}
	return res, nil
}

func checkShape(want, got *l2frames.Sequence) error {
	if got.Len() != want.Len() {
		return fmt.Errorf("shape mismatch: %d frames in, %d out", want.Len(), got.Len())
	}
	return nil
}

// ProcessToFile processes the video and writes the packet JSON to outPath.
// The file is written atomically after every stage has succeeded, so a
// failed video never leaves a partial packet behind.
func (p *Pipeline) ProcessToFile(ctx context.Context, path, outPath string) (*Result, error) {
	res, err := p.Process(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := p.WritePacket(res.Packet, outPath); err != nil {
		return nil, stageErr(res.Packet.VideoID, StageWrite, err)
	}
	diagf("video %s: packet written to %s", res.Packet.VideoID, outPath)
	return res, nil
}

// WritePacket encodes pkt and writes it atomically to path, creating the
// parent directory.
func (p *Pipeline) WritePacket(pkt *packet.DataPacket, path string) error {
	var buf bytes.Buffer
	if err := pkt.Encode(&buf); err != nil {
		return fmt.Errorf("encode packet: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && !p.fs.Exists(dir) {
		if err := p.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return fsutil.WriteFileAtomic(p.fs, path, buf.Bytes(), 0644)
}

// OutputName returns the packet file name for a video: its base name with
// the extension replaced by .json.
func OutputName(videoPath string) string {
	base := filepath.Base(videoPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".json"
}
