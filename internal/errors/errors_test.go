package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    *ServiceError
		code   ErrorCode
		status int
	}{
		{Unauthenticated(""), CodeUnauthenticated, http.StatusUnauthorized},
		{Forbidden(""), CodeForbidden, http.StatusForbidden},
		{NotFound("art"), CodeNotFound, http.StatusNotFound},
		{InvalidInput("bad"), CodeInvalidInput, http.StatusBadRequest},
		{InsufficientCredits(5, 3), CodeInsufficientCredits, http.StatusBadRequest},
		{Conflict("dup"), CodeConflict, http.StatusConflict},
		{ModelFailure("m", nil), CodeModelError, http.StatusBadGateway},
		{StorageFailure("s", nil), CodeStorageError, http.StatusBadGateway},
		{ChainFailure("c", nil), CodeChainError, http.StatusBadGateway},
		{Timeout("t"), CodeTimeout, http.StatusGatewayTimeout},
		{RateLimited(10), CodeRateLimited, http.StatusTooManyRequests},
		{Internal("", nil), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.status, tc.err.HTTPStatus)
		assert.NotEmpty(t, tc.err.Message)
	}
}

func TestInsufficientCreditsDetails(t *testing.T) {
	err := InsufficientCredits(5, 3)
	assert.Equal(t, int64(5), err.Details["required"])
	assert.Equal(t, int64(3), err.Details["available"])
}

func TestWithDetailsChains(t *testing.T) {
	err := InvalidInput("bad").WithDetails("field", "prompt").WithDetails("max", 1000)
	assert.Equal(t, "prompt", err.Details["field"])
	assert.Equal(t, 1000, err.Details["max"])
}

func TestGetServiceErrorThroughWrapping(t *testing.T) {
	base := NotFound("listing")
	wrapped := fmt.Errorf("purchase: %w", base)

	found := GetServiceError(wrapped)
	require.NotNil(t, found)
	assert.Equal(t, CodeNotFound, found.Code)

	assert.Nil(t, GetServiceError(stderrors.New("plain")))
	assert.Nil(t, GetServiceError(nil))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ChainFailure("verify deposit", cause)
	assert.True(t, stderrors.Is(err, cause))
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", Conflict("already minted"))
	assert.True(t, Is(err, CodeConflict))
	assert.False(t, Is(err, CodeNotFound))
	assert.False(t, Is(nil, CodeConflict))
}
