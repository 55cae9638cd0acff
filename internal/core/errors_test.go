package core_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/book-expert/voiceprep/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestItemError_UnwrapsKindAndCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("%w: bad header", core.ErrDecode)
	err := core.NewItemError("a.wav", cause)

	assert.ErrorIs(t, err, core.ErrItemFailed)
	assert.ErrorIs(t, err, core.ErrDecode)
	assert.NotErrorIs(t, err, core.ErrMissingPrecondition)
	assert.Equal(t, "a.wav: audio decode failed: bad header", err.Error())

	var itemErr *core.ItemError
	assert.True(t, errors.As(fmt.Errorf("batch: %w", err), &itemErr))
	assert.Equal(t, "a.wav", itemErr.File)
}

func TestMissingPrecondition(t *testing.T) {
	t.Parallel()

	err := core.MissingPrecondition("dataset_metadata.json", "run build-dataset first")
	assert.ErrorIs(t, err, core.ErrMissingPrecondition)
	assert.Contains(t, err.Error(), "run build-dataset first")

	bare := core.MissingPrecondition("voice_samples", "")
	assert.Equal(t, "missing precondition: voice_samples not found", bare.Error())
	assert.NotErrorIs(t, bare, fs.ErrNotExist)
}
