package telemetry

import "gonum.org/v1/gonum/stat"

// Window is a fixed-size trailing window over a scalar series, used for
// the running-mean metrics. Pushing past capacity evicts the oldest value.
type Window struct {
	size   int
	values []float64
	next   int
	full   bool
}

// NewWindow returns a window holding at most size values. Size must be
// positive.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 1
	}
	return &Window{size: size, values: make([]float64, 0, size)}
}

func (w *Window) Push(v float64) {
	if !w.full {
		w.values = append(w.values, v)
		if len(w.values) == w.size {
			w.full = true
		}
		return
	}
	w.values[w.next] = v
	w.next = (w.next + 1) % w.size
}

func (w *Window) Len() int {
	return len(w.values)
}

// Mean returns the mean of the values currently in the window, or zero if
// the window is empty.
func (w *Window) Mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return stat.Mean(w.values, nil)
}
