package docprops

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHelpersMatchThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("reading: %w", NewNotFoundError("a.docx", os.ErrNotExist))
	assert.True(t, IsNotFoundError(wrapped))
	assert.True(t, errors.Is(wrapped, os.ErrNotExist))

	assert.True(t, IsFormatError(NewFormatError("a.txt", "expected a .docx file")))
	assert.True(t, IsCorruptArchiveError(NewCorruptArchiveError("a.docx", nil)))
	assert.True(t, IsValidationError(NewValidationError("property name", "must not be empty")))

	cause := errors.New("disk full")
	ioErr := NewIOFailureError("rename temp file", "a.docx", cause)
	assert.True(t, IsIOFailureError(ioErr))
	assert.True(t, errors.Is(ioErr, cause))

	assert.False(t, IsNotFoundError(errors.New("other")))
	assert.False(t, IsIOFailureError(nil))
}

func TestErrorMessages(t *testing.T) {
	assert.Contains(t, NewFormatError("a.txt", "expected a .docx file").Error(), "a.txt")
	assert.Contains(t, NewValidationError("", "no properties given").Error(), "validation failed")
	assert.Contains(t, NewIOFailureError("create temp file", "b.docx", errors.New("denied")).Error(),
		"create temp file")
}
