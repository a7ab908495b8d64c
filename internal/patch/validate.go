package patch

import "fmt"

// Catalog is the view of the block-type registry that structural validation
// needs. Implemented by compiler.Registry; an interface here keeps the data
// model free of a compiler dependency.
type Catalog interface {
	// Ports returns the declared input and output port names of a block
	// type, or ok=false for an unknown type.
	Ports(blockType string) (inputs, outputs []string, ok bool)
}

// StructuralError is a fatal graph-shape error, reported before any type
// resolution begins.
type StructuralError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Block   string `json:"block,omitempty"`
	Edge    string `json:"edge,omitempty"`
}

func (e StructuralError) Error() string {
	where := e.Block
	if where == "" {
		where = e.Edge
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, where)
}

// Structural error codes.
const (
	ErrDuplicateBlockID  = "DUPLICATE_BLOCK_ID"
	ErrUnknownBlockType  = "UNKNOWN_BLOCK_TYPE"
	ErrDanglingEndpoint  = "DANGLING_ENDPOINT"
	ErrUnknownPort       = "UNKNOWN_PORT"
	ErrDuplicateInstance = "DUPLICATE_INSTANCE"
	ErrBadInstanceCount  = "BAD_INSTANCE_COUNT"
)

// Validate checks graph shape against the catalog: duplicate ids, unknown
// block types, dangling edge endpoints, edges naming undeclared ports, and
// malformed instance declarations. All errors are collected, not fail-fast.
func (p *Patch) Validate(catalog Catalog) []StructuralError {
	var errs []StructuralError

	seen := make(map[string]bool, len(p.Blocks))
	for _, b := range p.Blocks {
		if seen[b.ID] {
			errs = append(errs, StructuralError{
				Code:    ErrDuplicateBlockID,
				Message: fmt.Sprintf("block id %q declared twice", b.ID),
				Block:   b.ID,
			})
		}
		seen[b.ID] = true
		if _, _, ok := catalog.Ports(b.Type); !ok {
			errs = append(errs, StructuralError{
				Code:    ErrUnknownBlockType,
				Message: fmt.Sprintf("unknown block type %q", b.Type),
				Block:   b.ID,
			})
		}
	}

	for _, e := range p.Edges {
		errs = append(errs, p.validateEndpoint(catalog, e, e.From, true)...)
		errs = append(errs, p.validateEndpoint(catalog, e, e.To, false)...)
	}

	seenInst := make(map[string]bool, len(p.Instances))
	for _, decl := range p.Instances {
		if seenInst[decl.ID] {
			errs = append(errs, StructuralError{
				Code:    ErrDuplicateInstance,
				Message: fmt.Sprintf("instance %q declared twice", decl.ID),
			})
		}
		seenInst[decl.ID] = true
		if !decl.Dynamic && decl.Count <= 0 {
			errs = append(errs, StructuralError{
				Code:    ErrBadInstanceCount,
				Message: fmt.Sprintf("instance %q has non-positive count %d", decl.ID, decl.Count),
			})
		}
	}

	return errs
}

func (p *Patch) validateEndpoint(catalog Catalog, e Edge, ref PortRef, isSource bool) []StructuralError {
	b := p.Block(ref.Block)
	if b == nil {
		return []StructuralError{{
			Code:    ErrDanglingEndpoint,
			Message: fmt.Sprintf("edge endpoint %s names a missing block", ref),
			Edge:    e.Key().String(),
		}}
	}
	inputs, outputs, ok := catalog.Ports(b.Type)
	if !ok {
		// Unknown block type already reported per block.
		return nil
	}
	ports := inputs
	if isSource {
		ports = outputs
	}
	for _, name := range ports {
		if name == ref.Port {
			return nil
		}
	}
	direction := "input"
	if isSource {
		direction = "output"
	}
	return []StructuralError{{
		Code:    ErrUnknownPort,
		Message: fmt.Sprintf("block %q (%s) has no %s port %q", ref.Block, b.Type, direction, ref.Port),
		Edge:    e.Key().String(),
	}}
}
