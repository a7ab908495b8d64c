package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix allows
// a future algorithm migration without id collisions.
const (
	DomainPatch   = "motive/patch/v1"
	DomainDefault = "motive/default-source/v1"
	DomainAdapter = "motive/adapter/v1"
	DomainElement = "motive/element/v1"
)

// hashWithDomain computes SHA-256 with domain separation. The null byte
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PatchHash computes the content hash of a canonically marshalable patch
// snapshot (as produced by patch.Patch.CanonicalMap). Identical patches hash
// identically across processes.
func PatchHash(snapshot map[string]any) (string, error) {
	canonical, err := MarshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("patch hash: %w", err)
	}
	return hashWithDomain(DomainPatch, canonical), nil
}

// DefaultSourceID derives the id of a synthesized default-source block from
// the unconnected input it feeds. The id is a pure function of
// (ownerBlockID, portID), so recompiles of the same patch produce the same
// synthesized ids and state/debug correlation survives hot-swaps.
func DefaultSourceID(ownerBlockID, portID string) string {
	canonical, err := MarshalCanonical(map[string]any{
		"owner": ownerBlockID,
		"port":  portID,
	})
	if err != nil {
		// Both inputs are plain strings; canonical marshal cannot fail.
		panic(err)
	}
	return "default$" + hashWithDomain(DomainDefault, canonical)[:12]
}

// AdapterID derives the id of a synthesized adapter block from the edge it
// is spliced onto plus the conversion name. Deterministic for the same
// reason as DefaultSourceID.
func AdapterID(edge EdgeKey, conversion string) string {
	canonical, err := MarshalCanonical(map[string]any{
		"fromBlock":  edge.FromBlock,
		"fromPort":   edge.FromPort,
		"toBlock":    edge.ToBlock,
		"toPort":     edge.ToPort,
		"conversion": conversion,
	})
	if err != nil {
		panic(err)
	}
	return "adapter$" + hashWithDomain(DomainAdapter, canonical)[:12]
}

// ElementKey derives the stable per-element identity used by the continuity
// system: independent of the element's current index, stable across
// recompiles and domain resizes.
func ElementKey(instanceID string, stableID int) string {
	canonical, err := MarshalCanonical(map[string]any{
		"instance": instanceID,
		"stableId": stableID,
	})
	if err != nil {
		panic(err)
	}
	return hashWithDomain(DomainElement, canonical)[:16]
}
