// Package detect provides the pose detector backends behind the
// l1detections.Detector interface and a registry to select one by name.
//
// Backends:
//   - mmpose: replays MMPoseInferencer predictions recorded as JSON lines
//   - yolo: replays YOLOv8-pose keypoints recorded as JSON lines
//   - synthetic: generates a noisy squat, for simulation and tests
//   - movenet: runs a MoveNet TFLite model over decoded video frames
//     (requires the tflite build tag and cgo)
package detect

import (
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/pose.report/internal/pose/l1detections"
)

// Options configures detector construction. Each backend reads only the
// fields it needs.
type Options struct {
	// ModelPath is the model file for inference backends.
	ModelPath string
	// Threads is the inference thread count (movenet).
	Threads int

	// Synthetic squat parameters.
	Frames    int     // frames per video
	Noise     float64 // Gaussian jitter sigma in pixels
	DropRate  float64 // fraction of frames with no detection
	Seed      uint64
	Bystander bool // add a second, less confident person to every frame
}

// Factory builds a detector from options.
type Factory func(opts Options) (l1detections.Detector, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name. It panics on duplicate
// names, which indicates a programming error at init time.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("detect: duplicate detector " + name)
	}
	registry[name] = f
}

// New builds the detector registered under name.
func New(name string, opts Options) (l1detections.Detector, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown detector %q (available: %v)", name, Names())
	}
	return f(opts)
}

// Names lists the registered backends in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(MMPoseName, func(Options) (l1detections.Detector, error) { return MMPose{}, nil })
	Register(YOLOName, func(Options) (l1detections.Detector, error) { return YOLO{}, nil })
	Register(SyntheticName, func(o Options) (l1detections.Detector, error) { return NewSynthetic(o), nil })
}
