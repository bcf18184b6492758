// Package multi combines outputs: fan-out to several sinks and per-sink
// level filtering.
package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/fortiwatch/internal/model"
	"github.com/crimson-sun/fortiwatch/internal/output"
)

// Multi delivers each record to every wrapped output in order. A failing
// output does not stop delivery to the rest.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi over outputs. Nil outputs are skipped.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Len returns the number of wrapped outputs.
func (m *Multi) Len() int { return len(m.outputs) }

func (m *Multi) Write(ctx context.Context, rec model.Record) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Levels forwards only records whose level is in the allowed set.
type Levels struct {
	inner   output.Output
	allowed map[model.Level]bool
}

// OnlyLevels wraps inner so that it receives only the given levels. With no
// levels every record passes.
func OnlyLevels(inner output.Output, levels ...model.Level) output.Output {
	if len(levels) == 0 {
		return inner
	}
	l := &Levels{inner: inner, allowed: make(map[model.Level]bool, len(levels))}
	for _, lv := range levels {
		l.allowed[lv] = true
	}
	return l
}

func (l *Levels) Write(ctx context.Context, rec model.Record) error {
	if !l.allowed[rec.Level] {
		return nil
	}
	return l.inner.Write(ctx, rec)
}

func (l *Levels) Close() error { return l.inner.Close() }
