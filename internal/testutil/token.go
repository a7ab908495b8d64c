package testutil

import (
	"fmt"

	"github.com/motivelab/motive/internal/ir"
)

// Retoken replaces a program's per-compilation token with a fixed value so
// snapshots that include the token stay byte-identical across runs. The
// patch hash is untouched; it is already deterministic.
func Retoken(prog *ir.Program, token string) *ir.Program {
	if token == "" {
		token = "test-program-00000000-0000-0000-0000-000000000001"
	}
	prog.Token = token
	return prog
}

// Tokens returns a deterministic sequence of n distinct program tokens for
// tests that hot-swap several generations.
func Tokens(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("test-program-00000000-0000-0000-0000-%012d", i+1)
	}
	return out
}
