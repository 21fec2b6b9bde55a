package l3signal

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters_AllStreams(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLogWriters(nil, nil, nil)

	opsf("ops %d", 1)
	diagf("diag %d", 2)
	tracef("trace %d", 3)

	for name, buf := range map[string]*bytes.Buffer{"ops": &ops, "diag": &diag, "trace": &trace} {
		out := buf.String()
		if !strings.Contains(out, "[l3signal] ") {
			t.Errorf("%s stream missing prefix: %q", name, out)
		}
		if !strings.Contains(out, name+" ") {
			t.Errorf("%s stream missing message: %q", name, out)
		}
	}
}

func TestSetLogWriters_Disable(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	SetLogWriters(nil, nil, nil)

	opsf("should not appear")
	diagf("should not appear")
	tracef("should not appear")

	if ops.Len() != 0 {
		t.Errorf("expected no output after disabling, got %q", ops.String())
	}
}

func TestNewLogger_NilWriter(t *testing.T) {
	if l := newLogger("[x] ", nil); l != nil {
		t.Error("expected nil logger for nil writer")
	}
}
