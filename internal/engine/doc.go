// Package engine executes a compiled program frame by frame.
//
// The frame loop is single-threaded, synchronous and cooperative: one call
// to Frame runs the current program's schedule to completion. Hot-swap is an
// atomic pointer replacement from the loop's perspective: a newly compiled
// program is staged and becomes the running program at the next frame
// boundary, never mid-frame. State registers and the continuity tables
// outlive any single program, so edits do not reset running animation.
//
// Runtime numeric faults (NaN, infinities) never crash the loop: the value
// is clamped to a safe substitute and a deduplicated diagnostic is counted.
package engine
