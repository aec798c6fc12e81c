package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		expect int
	}{
		{"validation", Validation("bad input"), http.StatusBadRequest},
		{"auth", Auth("Invalid signature"), http.StatusUnauthorized},
		{"not found", NotFound("call %s not found", "x"), http.StatusNotFound},
		{"provider with upstream status", Provider(429, "rate limited", nil), http.StatusTooManyRequests},
		{"provider without status", Provider(0, "unreachable", nil), http.StatusBadGateway},
		{"storage", Storage("redis down", nil), http.StatusInternalServerError},
		{"forward", Forward(500, "delivery failed", nil), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.err.HTTPStatus())
		})
	}
}

func TestIsKindAndUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := Storage("redis set failed", inner)

	wrapped := fmt.Errorf("while persisting: %w", err)

	assert.True(t, IsKind(wrapped, KindStorage))
	assert.False(t, IsKind(wrapped, KindValidation))
	assert.ErrorIs(t, wrapped, inner)
}

func TestFrom(t *testing.T) {
	ae := From(NotFound("missing"))
	assert.Equal(t, KindNotFound, ae.Kind)

	ae = From(errors.New("plain error"))
	assert.Equal(t, http.StatusInternalServerError, ae.HTTPStatus())
	assert.Equal(t, "internal error", ae.Message)
}

func TestErrorStringContainsKindAndMessage(t *testing.T) {
	err := Provider(401, "provider rejected credentials", errors.New("status 401"))
	assert.Contains(t, err.Error(), "provider")
	assert.Contains(t, err.Error(), "provider rejected credentials")
}
