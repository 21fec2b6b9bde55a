package pose

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/banshee-data/pose.report/internal/pose/detect"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
)

func TestSetLogWriters_Streams(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})
	defer SetLogWriters(LogWriters{})

	Opsf("ops %d", 1)
	Diagf("diag %d", 2)
	Tracef("trace %d", 3)

	for name, buf := range map[string]*bytes.Buffer{"ops": &ops, "diag": &diag, "trace": &trace} {
		out := buf.String()
		if !strings.HasPrefix(out, "[pose] ") {
			t.Errorf("%s stream missing prefix: %q", name, out)
		}
		if !strings.Contains(out, " "+name+" ") {
			t.Errorf("%s stream missing message: %q", name, out)
		}
	}
}

func TestSetLogWriters_FansOut(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops})
	defer SetLogWriters(LogWriters{})

	p, err := pipeline.New(detect.NewSynthetic(detect.Options{Frames: 3}), pipeline.Options{})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	if _, err := p.Process(context.Background(), "short.mp4"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	out := ops.String()
	if !strings.Contains(out, "[l3signal] ") || !strings.Contains(out, "smoothing skipped") {
		t.Errorf("expected smoother warning on ops stream, got %q", out)
	}
}

func TestSetLogWriters_Disabled(t *testing.T) {
	SetLogWriters(LogWriters{})
	// Must not panic with every stream disabled.
	Opsf("x")
	Diagf("x")
	Tracef("x")
}
