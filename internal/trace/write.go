package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/motivelab/motive/internal/engine"
	"github.com/motivelab/motive/internal/ir"
)

// Sample is one traced scalar component of a slot at one frame.
type Sample struct {
	Key       string
	Element   int // 0 for signal slots
	Component int
	Value     float64
}

// WriteProgram registers a program generation. Idempotent: re-registering
// the same token is silently ignored.
func (s *Store) WriteProgram(ctx context.Context, p *ir.Program) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO programs (token, patch_hash, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, p.Token, p.PatchHash, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write program: %w", err)
	}
	return nil
}

// WriteFrame records one executed frame and its samples in a single
// transaction. Duplicate (frame, key, element, component) rows are
// silently ignored for idempotency.
func (s *Store) WriteFrame(ctx context.Context, token string, frame int64, timeMS float64, samples []Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO frames (program_token, frame, time_ms)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, token, frame, timeMS); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (program_token, frame, key, element, component, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	defer stmt.Close()

	for _, sm := range samples {
		if _, err := stmt.ExecContext(ctx, token, frame, sm.Key, sm.Element, sm.Component, sm.Value); err != nil {
			return fmt.Errorf("write sample %s: %w", sm.Key, err)
		}
	}
	return tx.Commit()
}

// WriteDiagnostics persists the engine's deduplicated runtime faults for a
// program generation. Existing rows are replaced: counts only grow.
func (s *Store) WriteDiagnostics(ctx context.Context, token string, diags []*engine.RuntimeError) error {
	for _, d := range diags {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO diagnostics (program_token, code, key, first_frame, count, message)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(program_token, code, key) DO UPDATE SET count = excluded.count
		`, token, string(d.Code), d.Key, d.Frame, d.Count, d.Message)
		if err != nil {
			return fmt.Errorf("write diagnostic: %w", err)
		}
	}
	return nil
}

// Recorder samples an engine after each frame and writes the result. Keys
// selects which debug keys to trace; empty means every key the program
// exposes.
type Recorder struct {
	store *Store
	keys  []string
}

// NewRecorder creates a recorder tracing the given debug keys.
func NewRecorder(store *Store, keys ...string) *Recorder {
	return &Recorder{store: store, keys: keys}
}

// Record samples the engine's live slots for one completed frame.
func (r *Recorder) Record(ctx context.Context, e *engine.Engine, frame *engine.Frame) error {
	prog := e.Program()
	if prog == nil {
		return nil
	}
	if err := r.store.WriteProgram(ctx, prog); err != nil {
		return err
	}

	keys := r.keys
	if len(keys) == 0 {
		keys = e.DebugKeys()
	}

	var samples []Sample
	for _, key := range keys {
		if v, ok := e.ReadSignal(key); ok {
			for c, val := range v {
				samples = append(samples, Sample{Key: key, Component: c, Value: val})
			}
			continue
		}
		if data, count, ok := e.ReadField(key); ok && count > 0 {
			stride := len(data) / count
			for el := 0; el < count; el++ {
				for c := 0; c < stride; c++ {
					samples = append(samples, Sample{
						Key: key, Element: el, Component: c,
						Value: data[el*stride+c],
					})
				}
			}
		}
	}

	if err := r.store.WriteFrame(ctx, prog.Token, frame.Number, frame.TimeMS, samples); err != nil {
		return err
	}
	return r.store.WriteDiagnostics(ctx, prog.Token, e.Diagnostics())
}
