//go:build tflite

package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-tflite"
	"gocv.io/x/gocv"

	"github.com/banshee-data/pose.report/internal/pose/l1detections"
	"github.com/banshee-data/pose.report/internal/pose/l2frames"
)

// MoveNetName is the registry name of the TFLite MoveNet backend.
const MoveNetName = "movenet"

func init() {
	Register(MoveNetName, func(o Options) (l1detections.Detector, error) { return NewMoveNet(o) })
}

// MoveNet runs a single-pose MoveNet model (lightning or thunder) over
// frames decoded with OpenCV. The model outputs one [1,1,17,3] tensor of
// normalised (y, x, score) triples in COCO-17 order.
//
// The interpreter is shared, so Open may not be called concurrently and
// only one source may be active at a time.
type MoveNet struct {
	mu     sync.Mutex
	model  *tflite.Model
	interp *tflite.Interpreter
}

// NewMoveNet loads the model at o.ModelPath.
func NewMoveNet(o Options) (*MoveNet, error) {
	if o.ModelPath == "" {
		return nil, errors.New("movenet requires a model path")
	}
	model := tflite.NewModelFromFile(o.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("cannot load model %s", o.ModelPath)
	}

	options := tflite.NewInterpreterOptions()
	defer options.Delete()
	threads := o.Threads
	if threads <= 0 {
		threads = 4
	}
	options.SetNumThread(threads)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		model.Delete()
		return nil, errors.New("cannot create interpreter")
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		model.Delete()
		return nil, fmt.Errorf("allocate tensors: %v", status)
	}
	opsf("movenet loaded %s (%d threads)", o.ModelPath, threads)
	return &MoveNet{model: model, interp: interp}, nil
}

// Name implements l1detections.Detector.
func (*MoveNet) Name() string { return MoveNetName }

// ConcurrentSafe implements l1detections.Detector.
func (*MoveNet) ConcurrentSafe() bool { return false }

// InputExtensions implements l1detections.InputTyper.
func (*MoveNet) InputExtensions() []string { return l1detections.VideoExtensions }

// Close releases the interpreter and model.
func (m *MoveNet) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interp != nil {
		m.interp.Delete()
		m.interp = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
	return nil
}

// Open starts decoding the video at path.
func (m *MoveNet) Open(_ context.Context, path string) (l1detections.Source, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", l1detections.ErrVideoNotFound, path)
		}
		return nil, err
	}
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	if !m.mu.TryLock() {
		capture.Close()
		return nil, errors.New("movenet interpreter busy")
	}
	return &moveNetSource{m: m, capture: capture, frame: gocv.NewMat(), rgb: gocv.NewMat(), resized: gocv.NewMat()}, nil
}

type moveNetSource struct {
	m       *MoveNet
	capture *gocv.VideoCapture
	frame   gocv.Mat
	rgb     gocv.Mat
	resized gocv.Mat
	index   int
	closed  bool
}

func (s *moveNetSource) Next(ctx context.Context) (l1detections.FrameDetections, error) {
	if err := ctx.Err(); err != nil {
		return l1detections.FrameDetections{}, err
	}
	if s.closed || !s.capture.Read(&s.frame) || s.frame.Empty() {
		return l1detections.FrameDetections{}, io.EOF
	}
	fd := l1detections.FrameDetections{Index: s.index}
	s.index++

	cand, err := s.infer()
	if err != nil {
		return fd, fmt.Errorf("frame %d: %w", fd.Index, err)
	}
	fd.Candidates = []l1detections.Candidate{cand}
	return fd, nil
}

func (s *moveNetSource) infer() (l1detections.Candidate, error) {
	input := s.m.interp.GetInputTensor(0)
	width, height := s.frame.Cols(), s.frame.Rows()

	gocv.CvtColor(s.frame, &s.rgb, gocv.ColorBGRToRGB)
	gocv.Resize(s.rgb, &s.resized, image.Pt(input.Dim(2), input.Dim(1)), 0, 0, gocv.InterpolationLinear)

	switch input.Type() {
	case tflite.UInt8:
		if status := input.CopyFromBuffer(s.resized.ToBytes()); status != tflite.OK {
			return l1detections.Candidate{}, fmt.Errorf("set input: %v", status)
		}
	case tflite.Float32:
		f := gocv.NewMat()
		defer f.Close()
		s.resized.ConvertTo(&f, gocv.MatTypeCV32FC3)
		v, err := f.DataPtrFloat32()
		if err != nil {
			return l1detections.Candidate{}, err
		}
		if status := input.SetFloat32s(v); status != tflite.OK {
			return l1detections.Candidate{}, fmt.Errorf("set input: %v", status)
		}
	default:
		return l1detections.Candidate{}, fmt.Errorf("unsupported input type %v", input.Type())
	}

	if status := s.m.interp.Invoke(); status != tflite.OK {
		return l1detections.Candidate{}, fmt.Errorf("invoke: %v", status)
	}

	out := s.m.interp.GetOutputTensor(0).Float32s()
	if len(out) < l2frames.NumJoints*3 {
		return l1detections.Candidate{}, fmt.Errorf("unexpected output size %d", len(out))
	}
	c := l1detections.Candidate{
		Keypoints: make([][2]float64, l2frames.NumJoints),
		Scores:    make([]float64, l2frames.NumJoints),
	}
	for j := 0; j < l2frames.NumJoints; j++ {
		y, x, score := out[3*j], out[3*j+1], out[3*j+2]
		c.Keypoints[j] = [2]float64{float64(x) * float64(width), float64(y) * float64(height)}
		c.Scores[j] = float64(score)
	}
	return c, nil
}

func (s *moveNetSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.frame.Close()
	s.rgb.Close()
	s.resized.Close()
	err := s.capture.Close()
	s.m.mu.Unlock()
	return err
}
