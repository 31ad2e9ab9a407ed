package telemetry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWindowMean(t *testing.T) {
	w := NewWindow(3)
	if w.Mean() != 0 {
		t.Errorf("empty window mean=%v want=0", w.Mean())
	}
	w.Push(1)
	w.Push(2)
	if w.Len() != 2 {
		t.Errorf("Len=%d want=2", w.Len())
	}
	if w.Mean() != 1.5 {
		t.Errorf("partial mean=%v want=1.5", w.Mean())
	}
	w.Push(3)
	if w.Mean() != 2 {
		t.Errorf("full mean=%v want=2", w.Mean())
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 10} {
		w.Push(v)
	}
	// 1 evicted, window holds 2, 3, 10
	if w.Len() != 3 {
		t.Errorf("Len=%d want=3", w.Len())
	}
	if w.Mean() != 5 {
		t.Errorf("mean=%v want=5", w.Mean())
	}
	w.Push(10)
	w.Push(10)
	if w.Mean() != 10 {
		t.Errorf("mean after full turnover=%v want=10", w.Mean())
	}
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics", "run.csv")
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	if err := sink.Emit(1, "episode/length", 12); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := sink.Emit(1, "episode/predator_1/total_reward", -5.5); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 records:\n%s", len(lines), data)
	}
	if lines[0] != "episode,metric,value" {
		t.Errorf("header=%q", lines[0])
	}
	if lines[1] != "1,episode/length,12" {
		t.Errorf("record=%q", lines[1])
	}
	if lines[2] != "1,episode/predator_1/total_reward,-5.5" {
		t.Errorf("record=%q", lines[2])
	}
}

type recordingSink struct {
	emits  int
	closed bool
	err    error
}

func (r *recordingSink) Emit(int, string, float64) error {
	r.emits++
	return r.err
}

func (r *recordingSink) Close() error {
	r.closed = true
	return r.err
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := NewMultiSink(a, b)
	if err := m.Emit(1, "episode/length", 1); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if a.emits != 1 || b.emits != 1 {
		t.Errorf("emits a=%d b=%d want 1 each", a.emits, b.emits)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("not every sink was closed")
	}
}

func TestMultiSinkReachesAllDespiteFailure(t *testing.T) {
	failErr := errors.New("sink down")
	a := &recordingSink{err: failErr}
	b := &recordingSink{}
	m := NewMultiSink(a, b)
	if err := m.Emit(1, "episode/captures", 0); !errors.Is(err, failErr) {
		t.Errorf("err=%v want wrapping %v", err, failErr)
	}
	if b.emits != 1 {
		t.Error("failure in one sink skipped the next")
	}
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	if err := s.Emit(1, "episode/length", 0); err != nil {
		t.Errorf("Emit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
