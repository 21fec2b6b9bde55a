package l3signal

import (
	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

// SmootherConfig holds the Savitzky-Golay parameters.
type SmootherConfig struct {
	Enabled      bool
	WindowLength int // odd, > PolyOrder
	PolyOrder    int
}

// DefaultSmootherConfig returns the built-in smoothing defaults.
func DefaultSmootherConfig() SmootherConfig {
	return SmootherConfigFromSignal(config.EmptySignalConfig())
}

// SmootherConfigFromSignal maps a SignalConfig onto a SmootherConfig.
func SmootherConfigFromSignal(cfg *config.SignalConfig) SmootherConfig {
	return SmootherConfig{
		Enabled:      cfg.GetSmooth(),
		WindowLength: cfg.GetWindowLength(),
		PolyOrder:    cfg.GetPolyOrder(),
	}
}

// SmoothReport summarises one Smooth call.
type SmoothReport struct {
	Skipped      bool // whole sequence passed through
	SmoothedRuns int  // contiguous valid runs that were filtered
	ShortRuns    int  // valid runs shorter than the window, passed through
}

// Smoother applies a SavGolFilter independently to each joint's x and y
// series.
type Smoother struct {
	cfg    SmootherConfig
	filter *SavGolFilter
}

// NewSmoother validates cfg and precomputes the filter.
func NewSmoother(cfg SmootherConfig) (*Smoother, error) {
	f, err := NewSavGolFilter(cfg.WindowLength, cfg.PolyOrder)
	if err != nil {
		return nil, err
	}
	return &Smoother{cfg: cfg, filter: f}, nil
}

// Config returns the smoother's configuration.
func (s *Smoother) Config() SmootherConfig {
	return s.cfg
}

// Smooth returns a new, smoothed copy of seq. A sequence shorter than the
// window is returned unchanged with a warning on the ops stream.
//
// Missing samples are never synthesised here: the filter runs over each
// contiguous run of valid samples that is at least one window long, and
// shorter runs keep their raw values. After gap filling there is normally a
// single run spanning the whole sequence.
func (s *Smoother) Smooth(seq *l2frames.Sequence) (*l2frames.Sequence, SmoothReport) {
	out := seq.Clone()
	var report SmoothReport

	if !s.cfg.Enabled {
		report.Skipped = true
		return out, report
	}
	if n := seq.Len(); n < s.cfg.WindowLength {
		opsf("smoothing skipped: %d frames < window %d", n, s.cfg.WindowLength)
		report.Skipped = true
		return out, report
	}

	for j := l2frames.Joint(0); j < l2frames.NumJoints; j++ {
		for _, axis := range l2frames.Axes {
			values, valid := seq.Series(j, axis)
			for _, r := range validRuns(valid) {
				if r.end-r.start < s.cfg.WindowLength {
					report.ShortRuns++
					tracef("joint %s/%s: run [%d,%d) shorter than window", j, axis, r.start, r.end)
					continue
				}
				smoothed, err := s.filter.Apply(values[r.start:r.end])
				if err != nil {
					// Unreachable: run length was checked above.
					opsf("joint %s/%s: %v", j, axis, err)
					continue
				}
				for i, v := range smoothed {
					out.Frames[r.start+i][j].SetCoord(axis, v)
				}
				report.SmoothedRuns++
			}
		}
	}

	diagf("smoothed %d frames: w=%d p=%d runs=%d short_runs=%d",
		out.Len(), s.cfg.WindowLength, s.cfg.PolyOrder, report.SmoothedRuns, report.ShortRuns)
	return out, report
}

type run struct{ start, end int }

// validRuns returns the half-open index ranges of consecutive true values.
func validRuns(valid []bool) []run {
	var runs []run
	start := -1
	for i, v := range valid {
		switch {
		case v && start < 0:
			start = i
		case !v && start >= 0:
			runs = append(runs, run{start, i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, run{start, len(valid)})
	}
	return runs
}
