// Package harness runs declarative conformance scenarios against the
// compiler and engine.
//
// A scenario is a YAML file naming a patch, a frame count, optional
// hot-swaps and per-frame inputs, and a list of assertions over the
// sampled frames. The harness compiles the patch, steps the engine on a
// deterministic virtual timeline, records the selected debug keys per
// frame, and evaluates the assertions against the recording.
//
// Two comparison modes exist:
//
//   - Assertions check specific values (a signal at a frame, a field
//     element, a diagnostic count). They live in the scenario file next to
//     the patch they describe.
//
//   - Golden files snapshot the whole recording as canonical JSON and
//     compare byte for byte. Regenerate with:
//
//     go test ./internal/harness -update
//
// Scenarios run on virtual time only, so the same scenario always produces
// the same recording regardless of host load.
package harness
