package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/motivelab/motive/internal/blocks"
	"github.com/motivelab/motive/internal/compiler"
	"github.com/motivelab/motive/internal/ir"
	"github.com/motivelab/motive/internal/patch"
	"github.com/motivelab/motive/internal/patchfile"
)

// commandLogger builds the logger commands hand to the compiler and
// engine. Debug level in verbose mode; logs go to the formatter's error
// writer so stdout stays clean.
func commandLogger(f *OutputFormatter) *slog.Logger {
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	level := slog.LevelInfo
	if f.Verbose {
		level = slog.LevelDebug
	}
	if !f.Verbose {
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadPatch parses a CUE patch file into the data model.
func loadPatch(path string) (*patch.Patch, error) {
	p, err := patchfile.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load patch", err)
	}
	return p, nil
}

// compilePatchFile loads and compiles a patch. Compile diagnostics come
// back as a CompileError so callers can render them individually; other
// failures become ExitErrors.
func compilePatchFile(path string, logger *slog.Logger) (*ir.Program, *compiler.CompileError, error) {
	p, err := loadPatch(path)
	if err != nil {
		return nil, nil, err
	}
	prog, err := compiler.Compile(blocks.Catalog(), p, logger)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return nil, ce, nil
		}
		return nil, nil, WrapExitError(ExitCommandError, "compile failed", err)
	}
	return prog, nil, nil
}
