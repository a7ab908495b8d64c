// Package trace records engine frames to SQLite and reads them back as
// typed queries.
//
// A trace is keyed by program token, so samples from successive hot-swaps
// of the same patch stay distinguishable while their debug keys still line
// up for comparison. The Recorder is the write path: point it at a running
// engine and it samples the selected debug keys after every frame. Reads
// go through Query, which compiles to parameterized SQL with a total
// ordering so replays are deterministic.
package trace
