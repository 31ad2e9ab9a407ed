// Package telemetry carries per-episode training metrics to pluggable
// sinks under a stable naming scheme: episode/length,
// episode/<agent>/total_reward, mean/<agent>/reward, episode/captures,
// mean/captures.
package telemetry

import "errors"

// Sink receives scalar metrics, one call per metric per episode.
type Sink interface {
	Emit(episode int, name string, value float64) error
	Close() error
}

// NopSink discards everything.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) Emit(int, string, float64) error { return nil }
func (NopSink) Close() error                    { return nil }

// MultiSink fans metrics out to several sinks. Emit and Close try every
// sink and join the failures instead of stopping at the first.
type MultiSink struct {
	sinks []Sink
}

var _ Sink = &MultiSink{}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(episode int, name string, value float64) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(episode, name, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
