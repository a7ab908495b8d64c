package patchfile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/motivelab/motive/internal/ir"
	"github.com/motivelab/motive/internal/patch"
)

// DecodeError is a patch file parse failure with CUE position info when the
// source location is known.
type DecodeError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *DecodeError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a patch from a CUE file. The file's top-level "patch" struct
// holds blocks, edges and instance domains:
//
//	patch: {
//		blocks: {
//			phase: {type: "Phasor", params: {freq: 2.0}}
//			osc:   {type: "Sin"}
//		}
//		edges: [
//			{from: "phase.out", to: "osc.in"},
//		]
//		instances: {
//			dots: {count: 64}
//		}
//	}
func Load(path string) (*patch.Patch, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patch file: %w", err)
	}
	return Parse(src, path)
}

// Parse decodes CUE source into a patch. filename is used in positions.
func Parse(src []byte, filename string) (*patch.Patch, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("patch"))
	if !root.Exists() {
		return nil, &DecodeError{
			Field:   "patch",
			Message: "top-level \"patch\" struct is required",
			Pos:     v.Pos(),
		}
	}
	return decodePatch(root)
}

func decodePatch(v cue.Value) (*patch.Patch, error) {
	p := &patch.Patch{}

	blocksVal := v.LookupPath(cue.ParsePath("blocks"))
	if blocksVal.Exists() {
		iter, err := blocksVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			b, err := decodeBlock(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			p.AddBlock(b)
		}
	}
	if len(p.Blocks) == 0 {
		return nil, &DecodeError{
			Field:   "blocks",
			Message: "a patch needs at least one block",
			Pos:     v.Pos(),
		}
	}

	edgesVal := v.LookupPath(cue.ParsePath("edges"))
	if edgesVal.Exists() {
		iter, err := edgesVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			e, err := decodeEdge(iter.Value())
			if err != nil {
				return nil, err
			}
			p.AddEdge(e.From, e.To, e.Combine)
		}
	}

	instVal := v.LookupPath(cue.ParsePath("instances"))
	if instVal.Exists() {
		iter, err := instVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			decl, err := decodeInstance(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			p.Instances = append(p.Instances, decl)
		}
		sort.Slice(p.Instances, func(i, j int) bool {
			return p.Instances[i].ID < p.Instances[j].ID
		})
	}

	return p, nil
}

func decodeBlock(id string, v cue.Value) (*patch.Block, error) {
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &DecodeError{
			Field:   "blocks." + id,
			Message: "block type is required",
			Pos:     v.Pos(),
		}
	}
	blockType, err := typeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	b := &patch.Block{ID: id, Type: blockType}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		iter, err := paramsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		b.Params = make(map[string]any)
		for iter.Next() {
			name := iter.Selector().Unquoted()
			val, err := decodeParam(iter.Value())
			if err != nil {
				return nil, &DecodeError{
					Field:   "blocks." + id + ".params." + name,
					Message: err.Error(),
					Pos:     iter.Value().Pos(),
				}
			}
			b.Params[name] = val
		}
	}
	return b, nil
}

// decodeParam accepts the param value kinds the patch model stores: numbers,
// bools and strings.
func decodeParam(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.StringKind:
		return v.String()
	}
	return nil, fmt.Errorf("unsupported param kind %s", v.Kind())
}

func decodeEdge(v cue.Value) (patch.Edge, error) {
	from, err := decodePortRef(v, "from")
	if err != nil {
		return patch.Edge{}, err
	}
	to, err := decodePortRef(v, "to")
	if err != nil {
		return patch.Edge{}, err
	}

	combine := patch.CombineLast
	combineVal := v.LookupPath(cue.ParsePath("combine"))
	if combineVal.Exists() {
		s, err := combineVal.String()
		if err != nil {
			return patch.Edge{}, formatCUEError(err)
		}
		switch patch.CombineMode(s) {
		case patch.CombineSum, patch.CombineMax, patch.CombineLast:
			combine = patch.CombineMode(s)
		default:
			return patch.Edge{}, &DecodeError{
				Field:   "edges.combine",
				Message: fmt.Sprintf("unknown combine mode %q", s),
				Pos:     combineVal.Pos(),
			}
		}
	}
	return patch.Edge{From: from, To: to, Combine: combine}, nil
}

// decodePortRef parses a "block.port" reference string.
func decodePortRef(v cue.Value, field string) (patch.PortRef, error) {
	refVal := v.LookupPath(cue.ParsePath(field))
	if !refVal.Exists() {
		return patch.PortRef{}, &DecodeError{
			Field:   "edges." + field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := refVal.String()
	if err != nil {
		return patch.PortRef{}, formatCUEError(err)
	}
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return patch.PortRef{}, &DecodeError{
			Field:   "edges." + field,
			Message: fmt.Sprintf("port reference %q must be \"block.port\"", s),
			Pos:     refVal.Pos(),
		}
	}
	return patch.PortRef{Block: s[:i], Port: s[i+1:]}, nil
}

func decodeInstance(id string, v cue.Value) (ir.InstanceDecl, error) {
	decl := ir.InstanceDecl{ID: id}

	if cv := v.LookupPath(cue.ParsePath("count")); cv.Exists() {
		n, err := cv.Int64()
		if err != nil {
			return decl, formatCUEError(err)
		}
		decl.Count = int(n)
	}
	if dv := v.LookupPath(cue.ParsePath("dynamic")); dv.Exists() {
		b, err := dv.Bool()
		if err != nil {
			return decl, formatCUEError(err)
		}
		decl.Dynamic = b
	}
	if dv := v.LookupPath(cue.ParsePath("domain")); dv.Exists() {
		s, err := dv.String()
		if err != nil {
			return decl, formatCUEError(err)
		}
		decl.Domain = s
	}
	if lv := v.LookupPath(cue.ParsePath("layout")); lv.Exists() {
		s, err := lv.String()
		if err != nil {
			return decl, formatCUEError(err)
		}
		decl.Layout = s
	}

	if !decl.Dynamic && decl.Count <= 0 {
		return decl, &DecodeError{
			Field:   "instances." + id,
			Message: "a fixed domain needs a positive count",
			Pos:     v.Pos(),
		}
	}
	return decl, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &DecodeError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
