package vision

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})

	Opsf("ops message: %d", 1)
	Diagf("diag message: %d", 2)
	Tracef("trace message: %d", 3)

	if !strings.Contains(ops.String(), "ops message: 1") {
		t.Errorf("ops output = %q", ops.String())
	}
	if !strings.Contains(diag.String(), "diag message: 2") {
		t.Errorf("diag output = %q", diag.String())
	}
	if !strings.Contains(trace.String(), "trace message: 3") {
		t.Errorf("trace output = %q", trace.String())
	}

	// Streams do not cross.
	if strings.Contains(ops.String(), "diag message") {
		t.Error("diag message leaked into ops stream")
	}
	if strings.Contains(trace.String(), "ops message") {
		t.Error("ops message leaked into trace stream")
	}

	// Prefix identifies the package.
	if !strings.Contains(ops.String(), "[vision] ") {
		t.Errorf("ops output missing prefix: %q", ops.String())
	}
}

func TestLogWriters_PartiallyDisabled(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var diag bytes.Buffer
	SetLogWriters(LogWriters{Diag: &diag})

	// Disabled streams must not panic.
	Opsf("dropped")
	Tracef("dropped")
	Diagf("kept")

	if !strings.Contains(diag.String(), "kept") {
		t.Errorf("diag output = %q", diag.String())
	}
}

func TestLogWriters_ConcurrentUse(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var buf bytes.Buffer
	SetLogWriters(LogWriters{Diag: &buf})

	done := make(chan bool)
	for i := 0; i < 8; i++ {
		go func(id int) {
			for j := 0; j < 25; j++ {
				Diagf("worker %d message %d", id, j)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if buf.Len() == 0 {
		t.Error("expected output from concurrent goroutines")
	}
}
