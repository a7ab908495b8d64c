package compiler

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/motivelab/motive/internal/ir"
	"github.com/motivelab/motive/internal/patch"
)

// Compile runs the full pipeline on a snapshot of the patch: structural
// validation, payload resolution, default-source materialization, unit
// unification, adapter insertion, dense indexing, two-phase lowering and
// scheduling. The input is cloned immediately, so the caller's graph may
// keep being edited while compilation runs.
//
// Compilation either fully succeeds, producing an immutable Program, or
// fully fails with a CompileError carrying every collected diagnostic.
// There is no partial compiled state.
func Compile(reg *Registry, p *patch.Patch, logger *slog.Logger) (*ir.Program, error) {
	if logger == nil {
		logger = slog.Default()
	}
	snapshot := p.Clone()
	sink := &diagSink{}

	// Structural errors are fatal and reported before type resolution.
	if structural := snapshot.Validate(reg); len(structural) > 0 {
		for _, se := range structural {
			sink.add(Diagnostic{
				Code:    DiagCode(se.Code),
				Message: se.Message,
				Block:   se.Block,
				Edge:    se.Edge,
			})
		}
		return nil, sink.err()
	}

	hash, err := snapshot.Hash()
	if err != nil {
		sink.addf(DiagLowering, "", "", "patch hash: %v", err)
		return nil, sink.err()
	}

	g := buildGraph(reg, snapshot, sink)

	// Normalizer sub-pass order is load-bearing: payloads, then defaults,
	// then payloads again (synthesized constants pick their payload up from
	// the port they feed), then unit unification.
	g.resolvePayloads()
	g.materializeDefaults("Time", "Const")
	g.resolvePayloads()

	newSolver(sink).solve(g, false)
	if !sink.empty() {
		return nil, sink.err()
	}

	// Defaults again after unit resolution (idempotent - only ports that
	// gained no edge yet are touched), then adapters, then a final solve
	// that also reports anything still unresolved.
	g.materializeDefaults("Time", "Const")
	g.resolvePayloads()
	notes := g.insertAdapters()
	newSolver(sink).solve(g, true)
	if !sink.empty() {
		return nil, sink.err()
	}

	g.checkSoundness()
	if !sink.empty() {
		return nil, sink.err()
	}

	g.denseIndex()

	sched := newScheduler(g, sink)
	if !sched.run() {
		return nil, sink.err()
	}

	prog := &ir.Program{
		Token:     uuid.Must(uuid.NewV7()).String(),
		PatchHash: hash,
		Adapters:  notes,
	}
	sched.flatten(prog)

	logger.Debug("compiled patch",
		slog.String("patch", hash[:12]),
		slog.String("token", prog.Token),
		slog.Int("exprs", len(prog.Exprs)),
		slog.Int("steps", len(prog.Steps)),
		slog.Int("slots", len(prog.Slots)))
	return prog, nil
}

// Session serializes compile requests for one live patch. If a new request
// arrives while an older one has not been compiled yet, the newer snapshot
// supersedes it: at most one compilation's result is ever produced per
// Flush, and superseded requests are discarded, never merged.
type Session struct {
	reg     *Registry
	logger  *slog.Logger
	pending *patch.Patch
}

// NewSession creates a compile session over a registry.
func NewSession(reg *Registry, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{reg: reg, logger: logger}
}

// Request snapshots the patch for compilation, superseding any pending
// request (last-request-wins).
func (s *Session) Request(p *patch.Patch) {
	if s.pending != nil {
		s.logger.Debug("superseding pending compile request")
	}
	s.pending = p.Clone()
}

// Pending reports whether a request is waiting.
func (s *Session) Pending() bool { return s.pending != nil }

// Flush compiles the latest pending snapshot, if any. Returns (nil, nil)
// when nothing is pending.
func (s *Session) Flush() (*ir.Program, error) {
	if s.pending == nil {
		return nil, nil
	}
	snapshot := s.pending
	s.pending = nil
	return Compile(s.reg, snapshot, s.logger)
}
