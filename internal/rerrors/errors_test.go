package rerrors

import (
	"errors"
	"testing"

	"github.com/standardbeagle/r-lsp-core/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestResolutionErrorUnwrap(t *testing.T) {
	underlying := errors.New("no such file")
	err := NewResolutionError(types.NewFileID("/a.R"), "b.R", 4, underlying)
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "b.R")
}

func TestAmbiguousParentErrorMessage(t *testing.T) {
	err := NewAmbiguousParentError(
		types.NewFileID("/child.R"),
		types.NewFileID("/p1.R"),
		[]types.FileID{types.NewFileID("/p2.R")},
	)
	assert.Contains(t, err.Error(), "1 alternative")
}

func TestConflictErrorMessage(t *testing.T) {
	err := NewConflictError(types.NewFileID("/a.R"), types.NewFileID("/utils.R"), 4)
	assert.Contains(t, err.Error(), "overrides AST-detected")
}

func TestIndexingErrorUnwrap(t *testing.T) {
	underlying := errors.New("disk read failed")
	err := NewIndexingError(types.NewFileID("/a.R"), "scan", underlying)
	assert.ErrorIs(t, err, underlying)
}
