package audit

import "context"

// MultiSink fans a Record out to every configured Sink, continuing
// past individual failures so one broken sink never blocks the others.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink wraps sinks, skipping any nil entries so callers can
// build the list conditionally (e.g. only the sinks the config enabled).
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiSink) Write(ctx context.Context, rec Record) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Sink = (*MultiSink)(nil)
