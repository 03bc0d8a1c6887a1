package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineErrorIsMatchesByCode(t *testing.T) {
	specific := ErrInvalidFileMetadata.With("file name %q has no extension", "report")
	assert.ErrorIs(t, specific, ErrInvalidFileMetadata)
	assert.NotErrorIs(t, specific, ErrInvalidGrade)
	assert.Contains(t, specific.Error(), "report")

	wrapped := fmt.Errorf("submit: %w", ErrAlreadyPassed)
	assert.ErrorIs(t, wrapped, ErrAlreadyPassed)
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestCollaboratorWrapsPlainErrors(t *testing.T) {
	cause := errors.New("connection reset")
	err := Collaborator("load attempts", cause)

	assert.ErrorIs(t, err, ErrCollaborator)
	assert.ErrorIs(t, err, cause)
	var ee *EngineError
	assert.True(t, errors.As(err, &ee))
	assert.True(t, ee.Recoverable)

	// engine errors pass through untouched
	assert.Same(t, ErrConcurrentAttempt, Collaborator("append", ErrConcurrentAttempt))
	assert.NoError(t, Collaborator("noop", nil))
}

func TestUnlockFailed(t *testing.T) {
	cause := errors.New("catalog down")
	err := UnlockFailed(3, cause)
	assert.ErrorIs(t, err, ErrLessonUnlockFailed)
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Recoverable)
	assert.Contains(t, err.Error(), "lesson 3")
}
