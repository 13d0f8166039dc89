package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Sink receives finalized, normalized text. Implementations must not assume
// they run on any particular goroutine.
type Sink interface {
	Emit(ctx context.Context, text string) error
}

// Func adapts a plain function to Sink.
type Func func(ctx context.Context, text string) error

func (f Func) Emit(ctx context.Context, text string) error { return f(ctx, text) }

// Discard drops everything.
var Discard Sink = Func(func(context.Context, string) error { return nil })

type multi struct {
	sinks []Sink
}

// Multi fans text out to every non-nil sink. A failing sink does not keep the
// remaining ones from receiving the text; all errors are joined.
func Multi(sinks ...Sink) Sink {
	var list []Sink
	for _, s := range sinks {
		if s != nil {
			list = append(list, s)
		}
	}
	return &multi{sinks: list}
}

func (m *multi) Emit(ctx context.Context, text string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter writes one line per emission to w.
func NewWriter(w io.Writer) Sink {
	return &writerSink{w: w}
}

func (s *writerSink) Emit(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.w, text); err != nil {
		return fmt.Errorf("write text: %w", err)
	}
	return nil
}
