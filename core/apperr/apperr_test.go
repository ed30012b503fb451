package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("Track not found")))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("outer: %w", Conflict("dup"))))
	assert.Equal(t, KindUnexpected, KindOf(errors.New("plain")))
	assert.True(t, Is(Forbidden("no"), KindForbidden))
	assert.False(t, Is(nil, KindUnexpected))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("failed to save file", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to save file: disk full", err.Error())
	assert.Equal(t, "storage", err.Kind.String())
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Title is required", PublicMessage(Validation("Title is required")))
	assert.Equal(t, "Server error", PublicMessage(Unexpected("db exploded", errors.New("boom"))))
	assert.Equal(t, "Server error", PublicMessage(errors.New("raw")))
}
