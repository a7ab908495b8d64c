package engine

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/motivelab/motive/internal/ir"
)

// ContinuityPolicy tunes how per-element state is carried across a
// hot-swap. The crossfade duration and curve are policy, not correctness;
// hosts override them per taste.
type ContinuityPolicy struct {
	// WindowMS is the crossfade duration in milliseconds after a remap.
	WindowMS float32
	// Ease shapes the crossfade.
	Ease ease.TweenFunc
	// SearchRadius bounds positional matching: an old element further than
	// this (in the position buffer's units) is never matched to a new one.
	SearchRadius float64
}

// DefaultContinuityPolicy is a short eased blend: long enough to hide a
// snap, short enough not to read as an animation of its own.
func DefaultContinuityPolicy() ContinuityPolicy {
	return ContinuityPolicy{WindowMS: 250, Ease: ease.OutQuad, SearchRadius: 1.0}
}

// domainContinuity is the process-lifetime record for one instance domain.
// It outlives any single program: entries are pruned only when the domain
// itself disappears from the running program.
type domainContinuity struct {
	// keys and positions describe the elements as of the last completed
	// frame. positions is nil until the domain renders a position buffer.
	keys      []string
	positions [][]float64

	// snapshot holds the last blended value per render buffer per element
	// key; it is the "old" side of a crossfade.
	snapshot map[string]map[string][]float64

	fade  *gween.Tween
	blend float64
}

// continuityTable maps per-element runtime state from one compiled program
// to the next. Field state registers are addressed by stable element key,
// so stable-id matches survive a swap with no copying; the table's job is
// positional rescue for elements whose key changed, pruning, and the
// crossfade that hides whatever still moved.
type continuityTable struct {
	policy  ContinuityPolicy
	domains map[string]*domainContinuity
}

func newContinuityTable(policy ContinuityPolicy) *continuityTable {
	if policy.Ease == nil {
		policy.Ease = ease.OutQuad
	}
	return &continuityTable{
		policy:  policy,
		domains: make(map[string]*domainContinuity),
	}
}

// prune drops domains absent from the program now running.
func (t *continuityTable) prune(live map[string]*domainRoster) {
	for id := range t.domains {
		if _, ok := live[id]; !ok {
			delete(t.domains, id)
		}
	}
}

func (t *continuityTable) domain(id string) *domainContinuity {
	d, ok := t.domains[id]
	if !ok {
		d = &domainContinuity{snapshot: make(map[string]map[string][]float64)}
		t.domains[id] = d
	}
	return d
}

// build runs once per domain at the first frame after a swap, before any
// blending. It reconciles the old element set with the new roster:
//
//  1. Elements whose stable key survives keep their state untouched
//     (identity and by-stable-id mapping are the same operation under
//     key-addressed state).
//  2. New keys with no match are rescued by position when the domain
//     rendered a position buffer: nearest unclaimed old element within
//     the policy radius donates its state rows.
//  3. Remaining new keys reset to declared defaults; the miss is reported
//     once per domain.
//
// Stale rows are dropped, and a crossfade is armed whenever the element
// set actually changed.
func (t *continuityTable) build(instance string, roster *domainRoster, states *stateTable, newPositions [][]float64, diags *diagnostics, frame int64) {
	d := t.domain(instance)
	// A domain seen for the first time has nothing to map from; its
	// elements are new by definition, not misses.
	fresh := len(d.keys) == 0

	oldIndex := make(map[string]int, len(d.keys))
	for i, k := range d.keys {
		oldIndex[k] = i
	}

	mapping := make([]int, roster.count)
	claimed := make([]bool, len(d.keys))
	changed := len(d.keys) != roster.count
	missed := false

	for i, key := range roster.keys {
		if j, ok := oldIndex[key]; ok {
			mapping[i] = j
			claimed[j] = true
			if j != i {
				changed = true
			}
			continue
		}
		changed = true
		mapping[i] = t.matchByPosition(d, claimed, newPositions, i)
		if mapping[i] >= 0 {
			claimed[mapping[i]] = true
		} else {
			missed = true
		}
	}

	if missed && !fresh {
		diags.report(ErrCodeContinuityMiss, ir.NoExpr, instance,
			"elements reset to defaults after remap", frame)
	}

	// Rewrite keyed state rows through the mapping. Identity entries copy
	// through; rescued entries move rows to their new key; misses reset.
	newKeys := roster.keys
	for _, id := range states.fieldRegs(instance) {
		states.remapField(id, d.keys, newKeys, mapping)
	}

	// Remap the render snapshot the same way so the crossfade blends from
	// each element's last drawn value, not from a stale key.
	for name, rows := range d.snapshot {
		next := make(map[string][]float64, roster.count)
		for i, key := range newKeys {
			if j := mapping[i]; j >= 0 && j < len(d.keys) {
				if row, ok := rows[d.keys[j]]; ok {
					next[key] = row
				}
			}
		}
		d.snapshot[name] = next
	}

	d.keys = append([]string(nil), newKeys...)
	d.positions = nil

	if changed && !fresh && t.policy.WindowMS > 0 {
		d.fade = gween.New(0, 1, t.policy.WindowMS, t.policy.Ease)
		d.blend = 0
	}
}

// matchByPosition finds the nearest unclaimed old element within the
// policy radius of new element i. Returns -1 when nothing qualifies.
func (t *continuityTable) matchByPosition(d *domainContinuity, claimed []bool, newPositions [][]float64, i int) int {
	if d.positions == nil || newPositions == nil || i >= len(newPositions) {
		return -1
	}
	target := newPositions[i]
	best, bestDist := -1, t.policy.SearchRadius
	for j, pos := range d.positions {
		if j >= len(claimed) || claimed[j] || pos == nil {
			continue
		}
		dist := 0.0
		for c := 0; c < len(target) && c < len(pos); c++ {
			dc := target[c] - pos[c]
			dist += dc * dc
		}
		dist = math.Sqrt(dist)
		if dist <= bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}

// apply blends this frame's freshly computed render buffers toward the
// persisted snapshot while a crossfade is active, then refreshes the
// snapshot and last-known positions. buffers maps buffer name to the dense
// element-major data for the current frame; the data is blended in place.
func (t *continuityTable) apply(instance string, roster *domainRoster, buffers map[string][]float64, dtMS float32) {
	d := t.domain(instance)

	if d.fade != nil {
		v, done := d.fade.Update(dtMS)
		d.blend = float64(v)
		if done {
			d.fade = nil
			d.blend = 1
		}
	} else {
		d.blend = 1
	}

	for name, data := range buffers {
		rows := d.snapshot[name]
		if rows == nil {
			rows = make(map[string][]float64, roster.count)
			d.snapshot[name] = rows
		}
		stride := 0
		if roster.count > 0 {
			stride = len(data) / roster.count
		}
		for e := 0; e < roster.count; e++ {
			key := roster.keys[e]
			cur := data[e*stride : (e+1)*stride]
			if prev, ok := rows[key]; ok && d.blend < 1 {
				for c := range cur {
					cur[c] = prev[c] + (cur[c]-prev[c])*d.blend
				}
			}
			row := make([]float64, stride)
			copy(row, cur)
			rows[key] = row
		}
	}

	// Track positions for the next swap's by-position rescue.
	if pos, ok := buffers["position"]; ok && roster.count > 0 {
		stride := len(pos) / roster.count
		d.positions = make([][]float64, roster.count)
		for e := 0; e < roster.count; e++ {
			row := make([]float64, stride)
			copy(row, pos[e*stride:(e+1)*stride])
			d.positions[e] = row
		}
	}
	d.keys = append(d.keys[:0], roster.keys...)
}
