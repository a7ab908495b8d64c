package engine

import (
	"errors"
	"log/slog"

	"github.com/motivelab/motive/internal/ir"
)

// ErrNoProgram is returned by Frame before any program has been swapped in.
var ErrNoProgram = errors.New("engine: no program loaded")

// FrameInput is what the host supplies per frame: its animation clock time
// and, for dynamic domains, the current element counts and optional stable
// ids. Domains absent from Counts keep their declared or previous count.
type FrameInput struct {
	TimeMS    float64
	Counts    map[string]int
	StableIDs map[string][]int
}

// BufferOutput is one flat typed buffer of a render pass, element-major.
// Stride comes from the payload; renderers must never assume one.
type BufferOutput struct {
	Name    string
	Payload ir.Payload
	Stride  int
	Data    []float64
}

// PassOutput is one assembled draw pass.
type PassOutput struct {
	Instance string
	Count    int
	Buffers  []BufferOutput
}

// Frame is one completed frame's render output.
type Frame struct {
	Number int64
	TimeMS float64
	Passes []PassOutput
}

// Engine runs compiled programs frame by frame.
//
// The frame loop is single-threaded: Frame must be called from exactly one
// goroutine, and every mutation (banks, state registers, continuity tables,
// the program pointer itself) happens inside it. Swap only stages; the
// staged program becomes current at the next Frame boundary, so no step
// ever observes a half-replaced program.
//
// State registers and continuity tables belong to the engine, not to any
// program: they persist across swaps and are reconciled against each new
// program's declarations.
type Engine struct {
	logger *slog.Logger
	policy ContinuityPolicy

	clock    frameClock
	lastTime float64

	prog   *ir.Program
	staged *ir.Program

	rosters      map[string]*domainRoster
	pendingBuild map[string]bool

	states *stateTable
	cont   *continuityTable
	diags  *diagnostics

	// Per-program derived lookups, rebuilt once per swap and keyed by the
	// program token so a stale cache can never serve a new program.
	cacheToken  string
	passesByDom map[string][]ir.RenderPassDecl

	lastBanks *banks
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithContinuityPolicy overrides the hot-swap crossfade policy.
func WithContinuityPolicy(p ContinuityPolicy) EngineOption {
	return func(e *Engine) { e.policy = p }
}

// New creates an engine with no program loaded.
func New(logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:       logger,
		policy:       DefaultContinuityPolicy(),
		rosters:      make(map[string]*domainRoster),
		pendingBuild: make(map[string]bool),
		states:       newStateTable(),
		diags:        newDiagnostics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cont = newContinuityTable(e.policy)
	return e
}

// Swap stages a newly compiled program. The running program stays fully
// live until the next Frame call applies the swap at its boundary. A second
// Swap before that boundary supersedes the first.
func (e *Engine) Swap(p *ir.Program) {
	if e.staged != nil {
		e.logger.Debug("superseding staged program",
			slog.String("superseded", e.staged.Token),
			slog.String("staged", p.Token))
	}
	e.staged = p
}

// Program returns the currently running program, nil before the first swap
// is applied.
func (e *Engine) Program() *ir.Program { return e.prog }

// Diagnostics returns the deduplicated runtime faults collected so far.
func (e *Engine) Diagnostics() []*RuntimeError { return e.diags.all() }

// ResetDiagnostics clears collected faults.
func (e *Engine) ResetDiagnostics() { e.diags.reset() }

// applySwap makes the staged program current and reconciles everything
// that outlives a program: rosters, state registers, continuity domains.
func (e *Engine) applySwap() {
	prev := e.prog
	e.prog = e.staged
	e.staged = nil

	rosters := make(map[string]*domainRoster, len(e.prog.Instances))
	for _, decl := range e.prog.Instances {
		if old, ok := e.rosters[decl.ID]; ok {
			old.decl = decl
			if !decl.Dynamic && old.count != decl.Count {
				old.resize(decl.Count, nil)
			}
			rosters[decl.ID] = old
		} else {
			rosters[decl.ID] = newRoster(decl)
		}
		e.pendingBuild[decl.ID] = true
	}
	e.rosters = rosters

	e.states.adopt(e.prog)
	e.cont.prune(e.rosters)

	e.passesByDom = make(map[string][]ir.RenderPassDecl)
	for _, pass := range e.prog.Passes {
		e.passesByDom[pass.Instance] = append(e.passesByDom[pass.Instance], pass)
	}
	e.cacheToken = e.prog.Token

	from := "none"
	if prev != nil {
		from = prev.Token
	}
	e.logger.Info("program swapped",
		slog.String("from", from),
		slog.String("to", e.prog.Token),
		slog.String("patch", e.prog.PatchHash[:12]))
}

// applyInput folds the host's dynamic domain updates into the rosters. A
// count or identity change re-arms the continuity build for that domain.
func (e *Engine) applyInput(in FrameInput) {
	for id, count := range in.Counts {
		r, ok := e.rosters[id]
		if !ok || !r.decl.Dynamic {
			continue
		}
		ids := in.StableIDs[id]
		if count != r.count || !sameIDs(r.stableIDs, ids, count) {
			r.resize(count, ids)
			e.pendingBuild[id] = true
		}
	}
}

func sameIDs(have, want []int, count int) bool {
	if len(have) != count {
		return false
	}
	for i := 0; i < count; i++ {
		id := i
		if i < len(want) {
			id = want[i]
		}
		if have[i] != id {
			return false
		}
	}
	return true
}

// Frame executes one frame of the current program synchronously and
// returns its render output. The staged program, if any, is applied first.
func (e *Engine) Frame(in FrameInput) (*Frame, error) {
	if e.staged != nil {
		e.applySwap()
	}
	if e.prog == nil {
		return nil, ErrNoProgram
	}

	frameNo, timeMS := e.clock.resolve(in.TimeMS)
	dtMS := float32(timeMS - e.lastTime)
	if frameNo == 1 {
		dtMS = 0
	}
	e.applyInput(in)

	b := newBanks(e.prog, e.rosters)
	ev := newEvalCtx(e.prog, b, e.states, e.rosters, frameNo, timeMS, e.diags)

	out := &Frame{Number: frameNo, TimeMS: timeMS}

	for _, step := range e.prog.Steps {
		if err := e.runStep(step, b, ev, out, dtMS); err != nil {
			return nil, err
		}
	}

	e.lastTime = timeMS
	e.lastBanks = b
	return out, nil
}

func (e *Engine) runStep(step ir.Step, b *banks, ev *evalCtx, out *Frame, dtMS float32) error {
	switch step.Kind {
	case ir.StepEvalSignal:
		v, err := ev.evalSignal(step.Expr)
		if err != nil {
			return err
		}
		b.writeSignal(e.prog.Slot(step.Slot), v)

	case ir.StepMaterializeField:
		data, err := ev.evalField(step.Expr)
		if err != nil {
			return err
		}
		slot := e.prog.Slot(step.Slot)
		b.writeField(slot, e.prog.FieldWidths[slot.Instance], data)

	case ir.StepStateWrite:
		src := e.prog.Expr(step.Src)
		if src.IsField() {
			data, err := ev.evalField(step.Src)
			if err != nil {
				return err
			}
			roster := e.rosters[src.Type.Extent.Instance]
			if roster == nil || !e.states.writeField(step.State, roster, data) {
				return ev.badProgram(step.Src, "state write to missing field register %q", step.State)
			}
		} else {
			v, err := ev.evalSignal(step.Src)
			if err != nil {
				return err
			}
			if !e.states.writeSignal(step.State, v) {
				return ev.badProgram(step.Src, "state write to missing register %q", step.State)
			}
		}

	case ir.StepContinuityBuild:
		if !e.pendingBuild[step.Instance] {
			return nil
		}
		delete(e.pendingBuild, step.Instance)
		roster := e.rosters[step.Instance]
		if roster == nil {
			return nil
		}
		e.cont.build(step.Instance, roster, e.states,
			e.positionRows(step.Instance, b, roster), e.diags, ev.frame)

	case ir.StepContinuityApply:
		roster := e.rosters[step.Instance]
		if roster == nil {
			return nil
		}
		buffers, slots := e.passBuffers(step.Instance, b, roster)
		e.cont.apply(step.Instance, roster, buffers, dtMS)
		// Write the blended values back so render assembly and the debug
		// read API observe post-continuity data.
		for name, slot := range slots {
			b.writeField(slot, e.prog.FieldWidths[slot.Instance], buffers[name])
		}

	case ir.StepRenderAssemble:
		pass := e.prog.Passes[step.Pass]
		roster := e.rosters[pass.Instance]
		if roster == nil {
			return nil
		}
		po := PassOutput{Instance: pass.Instance, Count: roster.count}
		for _, buf := range pass.Buffers {
			slot := e.prog.Slot(buf.Slot)
			po.Buffers = append(po.Buffers, BufferOutput{
				Name:    buf.Name,
				Payload: buf.Payload,
				Stride:  buf.Payload.Stride(),
				Data:    b.readField(slot, e.prog.FieldWidths[slot.Instance], roster.count),
			})
		}
		out.Passes = append(out.Passes, po)
	}
	return nil
}

// passBuffers extracts the dense data of every render buffer bound to a
// domain, with the slot each came from.
func (e *Engine) passBuffers(instance string, b *banks, roster *domainRoster) (map[string][]float64, map[string]ir.ValueSlot) {
	buffers := make(map[string][]float64)
	slots := make(map[string]ir.ValueSlot)
	for _, pass := range e.passesByDom[instance] {
		for _, buf := range pass.Buffers {
			slot := e.prog.Slot(buf.Slot)
			buffers[buf.Name] = b.readField(slot, e.prog.FieldWidths[slot.Instance], roster.count)
			slots[buf.Name] = slot
		}
	}
	return buffers, slots
}

// positionRows returns this frame's per-element positions for a domain,
// nil when it renders no position buffer.
func (e *Engine) positionRows(instance string, b *banks, roster *domainRoster) [][]float64 {
	for _, pass := range e.passesByDom[instance] {
		for _, buf := range pass.Buffers {
			if buf.Name != "position" {
				continue
			}
			slot := e.prog.Slot(buf.Slot)
			data := b.readField(slot, e.prog.FieldWidths[slot.Instance], roster.count)
			stride := slot.Stride
			rows := make([][]float64, roster.count)
			for el := 0; el < roster.count; el++ {
				rows[el] = data[el*stride : (el+1)*stride]
			}
			return rows
		}
	}
	return nil
}
