package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := errors.New("boom")

	t.Run("direct code matches", func(t *testing.T) {
		err := New(CodeNotFound, "application not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("inner code is found through wrapping", func(t *testing.T) {
		inner := New(CodeTimeout, "transaction aborted")
		err := Wrap(inner, CodeInternal, "submit failed")
		assert.True(t, HasCode(err, CodeTimeout))
		assert.True(t, HasCode(err, CodeInternal))
	})

	t.Run("fmt wrapping is traversed", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeValidation, "bad"))
		assert.True(t, HasCode(err, CodeValidation))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(base, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(base))
		assert.Equal(t, "internal error", MessageOf(base))
	})

	t.Run("wrap keeps the underlying error reachable", func(t *testing.T) {
		err := Wrap(base, CodeInternal, "save failed")
		assert.ErrorIs(t, err, base)
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodeInvalidTransition))
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusUnauthorized, ToHTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(CodeInvariantViolation))
}
