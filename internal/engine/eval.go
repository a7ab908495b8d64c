package engine

import (
	"fmt"
	"math"
	"strconv"

	"github.com/motivelab/motive/internal/ir"
)

// evalCtx evaluates expressions for one frame. Results are memoized per
// expression id, so shared subexpressions run once regardless of how many
// steps or combines reference them.
type evalCtx struct {
	prog    *ir.Program
	banks   *banks
	states  *stateTable
	rosters map[string]*domainRoster
	timeMS  float64
	frame   int64
	diags   *diagnostics

	sig map[ir.ExprID][]float64
	fld map[ir.ExprID][]float64
}

func newEvalCtx(prog *ir.Program, b *banks, st *stateTable, rosters map[string]*domainRoster, frame int64, timeMS float64, diags *diagnostics) *evalCtx {
	return &evalCtx{
		prog:    prog,
		banks:   b,
		states:  st,
		rosters: rosters,
		timeMS:  timeMS,
		frame:   frame,
		diags:   diags,
		sig:     make(map[ir.ExprID][]float64),
		fld:     make(map[ir.ExprID][]float64),
	}
}

func (c *evalCtx) badProgram(id ir.ExprID, format string, args ...any) error {
	return &RuntimeError{
		Code:    ErrCodeBadProgram,
		Message: fmt.Sprintf(format, args...),
		Expr:    id,
		Frame:   c.frame,
		Count:   1,
	}
}

// evalSignal computes a per-frame value: stride-many components.
func (c *evalCtx) evalSignal(id ir.ExprID) ([]float64, error) {
	if v, ok := c.sig[id]; ok {
		return v, nil
	}
	if int(id) < 0 || int(id) >= len(c.prog.Exprs) {
		return nil, c.badProgram(id, "expression out of range")
	}
	e := c.prog.Expr(id)
	stride := e.Type.Payload.Stride()

	var out []float64
	switch e.Kind {
	case ir.ExprConst:
		out = make([]float64, stride)
		copy(out, e.Const)

	case ir.ExprInput:
		switch e.Input {
		case ir.InputTimeMS:
			out = []float64{c.timeMS}
		default:
			return nil, c.badProgram(id, "unknown input %q", e.Input)
		}

	case ir.ExprOp:
		args := make([][]float64, len(e.Args))
		for i, a := range e.Args {
			v, err := c.evalSignal(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		out = applyOp(e.Op, stride, args)

	case ir.ExprReduce:
		field, err := c.evalField(e.Args[0])
		if err != nil {
			return nil, err
		}
		argStride := c.prog.Expr(e.Args[0]).Type.Payload.Stride()
		out = reduceField(e.Op, argStride, field)

	case ir.ExprStateRead:
		v, ok := c.states.readSignal(e.State)
		if !ok {
			return nil, c.badProgram(id, "state register %q not declared as signal", e.State)
		}
		out = make([]float64, stride)
		copy(out, v)

	default:
		return nil, c.badProgram(id, "expression kind %q is not a signal", e.Kind)
	}

	out = c.sanitize(out, id, e.Debug)
	c.sig[id] = out
	return out, nil
}

// evalField computes a per-element buffer: count*stride values,
// element-major.
func (c *evalCtx) evalField(id ir.ExprID) ([]float64, error) {
	if v, ok := c.fld[id]; ok {
		return v, nil
	}
	if int(id) < 0 || int(id) >= len(c.prog.Exprs) {
		return nil, c.badProgram(id, "expression out of range")
	}
	e := c.prog.Expr(id)
	stride := e.Type.Payload.Stride()

	roster, ok := c.rosters[e.Type.Extent.Instance]
	if !ok {
		return nil, &RuntimeError{
			Code:    ErrCodeUnknownDomain,
			Message: fmt.Sprintf("instance domain %q is not declared", e.Type.Extent.Instance),
			Expr:    id,
			Frame:   c.frame,
			Count:   1,
		}
	}
	count := roster.count

	var out []float64
	switch e.Kind {
	case ir.ExprConst:
		out = make([]float64, count*stride)
		for el := 0; el < count; el++ {
			copy(out[el*stride:(el+1)*stride], e.Const)
		}

	case ir.ExprBroadcast:
		src, err := c.evalSignal(e.Args[0])
		if err != nil {
			return nil, err
		}
		out = make([]float64, count*stride)
		for el := 0; el < count; el++ {
			copy(out[el*stride:(el+1)*stride], src)
		}

	case ir.ExprIntrinsic:
		out = make([]float64, count*stride)
		for el := 0; el < count; el++ {
			out[el*stride] = c.intrinsicValue(e.Intrinsic, roster, el)
		}

	case ir.ExprKernel:
		args := make([][]float64, len(e.Args))
		argStrides := make([]int, len(e.Args))
		for i, a := range e.Args {
			arg := c.prog.Expr(a)
			argStrides[i] = arg.Type.Payload.Stride()
			if arg.IsField() {
				v, err := c.evalField(a)
				if err != nil {
					return nil, err
				}
				args[i] = v
			} else {
				// Signals reaching a kernel are splatted per element.
				v, err := c.evalSignal(a)
				if err != nil {
					return nil, err
				}
				splat := make([]float64, count*argStrides[i])
				for el := 0; el < count; el++ {
					copy(splat[el*argStrides[i]:(el+1)*argStrides[i]], v)
				}
				args[i] = splat
			}
		}
		out = make([]float64, count*stride)
		row := make([][]float64, len(args))
		for el := 0; el < count; el++ {
			for i := range args {
				row[i] = args[i][el*argStrides[i] : (el+1)*argStrides[i]]
			}
			copy(out[el*stride:(el+1)*stride], applyOp(e.Op, stride, row))
		}

	case ir.ExprStateRead:
		v, ok := c.states.readField(e.State, roster)
		if !ok {
			return nil, c.badProgram(id, "state register %q not declared as field", e.State)
		}
		out = v

	default:
		return nil, c.badProgram(id, "expression kind %q is not a field", e.Kind)
	}

	out = c.sanitize(out, id, e.Debug)
	c.fld[id] = out
	return out, nil
}

func (c *evalCtx) intrinsicValue(kind ir.IntrinsicKind, roster *domainRoster, el int) float64 {
	switch kind {
	case ir.IntrinsicIndex:
		return float64(el)
	case ir.IntrinsicNormIndex:
		if roster.count < 2 {
			return 0
		}
		return float64(el) / float64(roster.count-1)
	case ir.IntrinsicRandSeed:
		return seedFromKey(roster.keys[el])
	}
	return 0
}

// seedFromKey maps an element's stable key to a uniform value in [0,1).
// 13 hex digits give 52 bits, which a float64 mantissa holds exactly.
func seedFromKey(key string) float64 {
	if len(key) > 13 {
		key = key[:13]
	}
	bits, err := strconv.ParseUint(key, 16, 64)
	if err != nil {
		return 0
	}
	return float64(bits) / float64(uint64(1)<<52)
}

// sanitize clamps non-finite components in place and reports the fault
// once. NaN becomes 0, infinities become the largest finite magnitude.
func (c *evalCtx) sanitize(vals []float64, id ir.ExprID, debug string) []float64 {
	for i, v := range vals {
		switch {
		case math.IsNaN(v):
			vals[i] = 0
		case math.IsInf(v, 1):
			vals[i] = math.MaxFloat64
		case math.IsInf(v, -1):
			vals[i] = -math.MaxFloat64
		default:
			continue
		}
		c.diags.report(ErrCodeNonFinite, id, debug, "non-finite value clamped", c.frame)
	}
	return vals
}

// comp reads component i of a value, broadcasting a narrower argument
// across a wider result (a scalar mix factor against a vec2, say).
func comp(vals []float64, i int) float64 {
	if i < len(vals) {
		return vals[i]
	}
	return vals[len(vals)-1]
}

// applyOp evaluates one opcode over already computed argument rows,
// componentwise except for pack.
func applyOp(op ir.Opcode, stride int, args [][]float64) []float64 {
	if op == ir.OpPack {
		var out []float64
		for _, a := range args {
			out = append(out, a...)
		}
		return out
	}

	out := make([]float64, stride)
	for i := 0; i < stride; i++ {
		switch op {
		case ir.OpAdd:
			acc := comp(args[0], i)
			for _, a := range args[1:] {
				acc += comp(a, i)
			}
			out[i] = acc
		case ir.OpSub:
			out[i] = comp(args[0], i) - comp(args[1], i)
		case ir.OpMul, ir.OpScale:
			out[i] = comp(args[0], i) * comp(args[1], i)
		case ir.OpDiv:
			out[i] = comp(args[0], i) / comp(args[1], i)
		case ir.OpOffset:
			out[i] = comp(args[0], i) + comp(args[1], i)
		case ir.OpMin:
			acc := comp(args[0], i)
			for _, a := range args[1:] {
				acc = math.Min(acc, comp(a, i))
			}
			out[i] = acc
		case ir.OpMax:
			acc := comp(args[0], i)
			for _, a := range args[1:] {
				acc = math.Max(acc, comp(a, i))
			}
			out[i] = acc
		case ir.OpNeg:
			out[i] = -comp(args[0], i)
		case ir.OpAbs:
			out[i] = math.Abs(comp(args[0], i))
		case ir.OpSin:
			out[i] = math.Sin(comp(args[0], i))
		case ir.OpCos:
			out[i] = math.Cos(comp(args[0], i))
		case ir.OpFract:
			v := comp(args[0], i)
			out[i] = v - math.Floor(v)
		case ir.OpClamp01:
			out[i] = math.Min(1, math.Max(0, comp(args[0], i)))
		case ir.OpMix:
			a, b, t := comp(args[0], i), comp(args[1], i), comp(args[2], i)
			out[i] = a + (b-a)*t
		case ir.OpLast:
			out[i] = comp(args[len(args)-1], i)
		default:
			out[i] = math.NaN() // surfaces as a clamped NON_FINITE_VALUE
		}
	}
	return out
}

// reduceField folds a dense per-element buffer into a single stride-wide
// value. An empty domain reduces to zero.
func reduceField(op ir.Opcode, stride int, data []float64) []float64 {
	out := make([]float64, stride)
	count := len(data) / stride
	if count == 0 {
		return out
	}
	copy(out, data[:stride])
	for el := 1; el < count; el++ {
		row := data[el*stride : (el+1)*stride]
		for i := 0; i < stride; i++ {
			switch op {
			case ir.OpAdd:
				out[i] += row[i]
			case ir.OpMul:
				out[i] *= row[i]
			case ir.OpMin:
				out[i] = math.Min(out[i], row[i])
			case ir.OpMax:
				out[i] = math.Max(out[i], row[i])
			case ir.OpLast:
				out[i] = row[i]
			}
		}
	}
	return out
}
