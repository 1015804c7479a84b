package vfs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeTravelsThroughWrapping(t *testing.T) {
	base := NewError(CodeNotFound, "read", "user://missing.txt")
	wrapped := fmt.Errorf("gateway: %w", base)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrAccessDenied))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, CodeNotFound))
}

func TestCodeOfUnclassified(t *testing.T) {
	// Raw causes that escaped wrapping classify as StorageError so
	// callers never see a codeless failure.
	assert.Equal(t, CodeStorageError, CodeOf(io.ErrUnexpectedEOF))
}

func TestErrorMessageShape(t *testing.T) {
	err := WrapError(CodeStorageError, "write", "user://a.txt", io.ErrShortWrite)
	assert.Equal(t, "write user://a.txt: StorageError: short write", err.Error())

	bare := NewError(CodeAuthRequired, "", "")
	assert.Equal(t, "AuthRequired", bare.Error())
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := io.ErrClosedPipe
	err := WrapError(CodeStorageError, "wipe", "", cause)
	assert.True(t, errors.Is(err, io.ErrClosedPipe))
}
