package patch

import (
	"fmt"
	"sort"

	"github.com/motivelab/motive/internal/ir"
)

// PortRef addresses one port of one block instance.
type PortRef struct {
	Block string `json:"block"`
	Port  string `json:"port"`
}

func (r PortRef) String() string { return r.Block + "." + r.Port }

// EdgeRole records who authored an edge. Synthesized edges are inserted by
// the normalizer and must be distinguishable from user wiring for the
// editor's adapter display and for snapshot hashing (synthesized edges are
// excluded from the hash - they are derived, not authored).
type EdgeRole string

const (
	RoleUser    EdgeRole = "user"
	RoleDefault EdgeRole = "default"
	RoleAdapter EdgeRole = "adapter"
)

// CombineMode resolves multiple writers into one input. Modes must be
// associative and commutative, since write order across edges is unordered;
// CombineLast is only legal where the editor enforces a single writer.
type CombineMode string

const (
	CombineSum  CombineMode = "sum"
	CombineMax  CombineMode = "max"
	CombineLast CombineMode = "last"
)

// Edge connects a source block's output port to a target block's input port.
type Edge struct {
	From    PortRef     `json:"from"`
	To      PortRef     `json:"to"`
	Role    EdgeRole    `json:"role"`
	Combine CombineMode `json:"combine,omitempty"`
}

// Key returns the edge's diagnostic address.
func (e Edge) Key() ir.EdgeKey {
	return ir.EdgeKey{
		FromBlock: e.From.Block, FromPort: e.From.Port,
		ToBlock: e.To.Block, ToPort: e.To.Port,
	}
}

// Block is one graph node. Ports and their types come from the block-type
// catalog at compile time; the patch itself only stores identity, type name
// and authored parameters. Param values are float64, int, bool or string.
type Block struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// ParamFloat reads a numeric parameter with a fallback.
func (b *Block) ParamFloat(name string, fallback float64) float64 {
	switch v := b.Params[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

// ParamString reads a string parameter with a fallback.
func (b *Block) ParamString(name, fallback string) string {
	if v, ok := b.Params[name].(string); ok {
		return v
	}
	return fallback
}

// Patch is the editor-owned graph: blocks, user edges and per-element
// instance domains. The compiler never mutates a live Patch; it works on a
// Clone taken at compile trigger time.
type Patch struct {
	Blocks    []*Block          `json:"blocks"`
	Edges     []Edge            `json:"edges"`
	Instances []ir.InstanceDecl `json:"instances,omitempty"`
}

// Block returns the block with the given id, or nil.
func (p *Patch) Block(id string) *Block {
	for _, b := range p.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Instance returns the instance declaration with the given id.
func (p *Patch) Instance(id string) (ir.InstanceDecl, bool) {
	for _, decl := range p.Instances {
		if decl.ID == id {
			return decl, true
		}
	}
	return ir.InstanceDecl{}, false
}

// Clone deep-copies the patch. Compilation operates on the clone so
// authoring can continue while a compile is in flight.
func (p *Patch) Clone() *Patch {
	out := &Patch{
		Blocks:    make([]*Block, len(p.Blocks)),
		Edges:     append([]Edge(nil), p.Edges...),
		Instances: append([]ir.InstanceDecl(nil), p.Instances...),
	}
	for i, b := range p.Blocks {
		nb := &Block{ID: b.ID, Type: b.Type}
		if b.Params != nil {
			nb.Params = make(map[string]any, len(b.Params))
			for k, v := range b.Params {
				nb.Params[k] = v
			}
		}
		out.Blocks[i] = nb
	}
	return out
}

// AddBlock appends a block. Duplicate ids are a structural error caught by
// Validate; the edit itself is permissive so the editor can stage invalid
// intermediate states.
func (p *Patch) AddBlock(b *Block) {
	p.Blocks = append(p.Blocks, b)
}

// RemoveBlock deletes a block and every edge touching it.
func (p *Patch) RemoveBlock(id string) {
	blocks := p.Blocks[:0]
	for _, b := range p.Blocks {
		if b.ID != id {
			blocks = append(blocks, b)
		}
	}
	p.Blocks = blocks

	edges := p.Edges[:0]
	for _, e := range p.Edges {
		if e.From.Block != id && e.To.Block != id {
			edges = append(edges, e)
		}
	}
	p.Edges = edges
}

// AddEdge appends a user edge.
func (p *Patch) AddEdge(from, to PortRef, combine CombineMode) {
	p.Edges = append(p.Edges, Edge{From: from, To: to, Role: RoleUser, Combine: combine})
}

// RemoveEdge deletes the first edge matching the endpoints.
func (p *Patch) RemoveEdge(from, to PortRef) {
	for i, e := range p.Edges {
		if e.From == from && e.To == to {
			p.Edges = append(p.Edges[:i], p.Edges[i+1:]...)
			return
		}
	}
}

// SetParam updates a block parameter.
func (p *Patch) SetParam(blockID, name string, value any) error {
	b := p.Block(blockID)
	if b == nil {
		return fmt.Errorf("set param: no block %q", blockID)
	}
	if b.Params == nil {
		b.Params = make(map[string]any)
	}
	b.Params[name] = value
	return nil
}

// CanonicalMap converts the authored parts of the patch (user edges only,
// blocks sorted by id) to the canonical-JSON-marshalable form used for
// hashing.
func (p *Patch) CanonicalMap() map[string]any {
	blocks := make([]*Block, len(p.Blocks))
	copy(blocks, p.Blocks)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })

	blockList := make([]any, 0, len(blocks))
	for _, b := range blocks {
		entry := map[string]any{"id": b.ID, "type": b.Type}
		if len(b.Params) > 0 {
			params := make(map[string]any, len(b.Params))
			for k, v := range b.Params {
				params[k] = v
			}
			entry["params"] = params
		}
		blockList = append(blockList, entry)
	}

	userEdges := make([]Edge, 0, len(p.Edges))
	for _, e := range p.Edges {
		if e.Role == RoleUser {
			userEdges = append(userEdges, e)
		}
	}
	sort.Slice(userEdges, func(i, j int) bool {
		return userEdges[i].Key().String() < userEdges[j].Key().String()
	})
	edgeList := make([]any, 0, len(userEdges))
	for _, e := range userEdges {
		edgeList = append(edgeList, map[string]any{
			"from":    e.From.String(),
			"to":      e.To.String(),
			"combine": string(e.Combine),
		})
	}

	instances := make([]ir.InstanceDecl, len(p.Instances))
	copy(instances, p.Instances)
	sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })
	instList := make([]any, 0, len(instances))
	for _, decl := range instances {
		instList = append(instList, map[string]any{
			"id":      decl.ID,
			"count":   decl.Count,
			"dynamic": decl.Dynamic,
			"domain":  decl.Domain,
			"layout":  decl.Layout,
		})
	}

	return map[string]any{
		"blocks":    blockList,
		"edges":     edgeList,
		"instances": instList,
	}
}

// Hash returns the canonical content hash of the authored patch.
func (p *Patch) Hash() (string, error) {
	return ir.PatchHash(p.CanonicalMap())
}
