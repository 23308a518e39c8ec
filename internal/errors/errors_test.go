package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServiceError_Unwraps(t *testing.T) {
	base := NotFound("Startup not found")
	wrapped := fmt.Errorf("load startup: %w", base)

	se := GetServiceError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, CodeNotFound, se.Code)
	assert.Equal(t, http.StatusNotFound, StatusOf(wrapped))
}

func TestGetServiceError_PlainError(t *testing.T) {
	assert.Nil(t, GetServiceError(stderrors.New("plain")))
	assert.Nil(t, GetServiceError(nil))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(stderrors.New("plain")))
}

func TestServiceError_MessageAndCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Upstream("wallet unavailable", cause)

	assert.Equal(t, "wallet unavailable: connection refused", err.Error())
	assert.True(t, Is(err, cause))
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)
}

func TestRateLimitExceeded_Details(t *testing.T) {
	err := RateLimitExceeded(10, "1s")
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus)
	assert.Equal(t, 10, err.Details["limit"])
	assert.Equal(t, "1s", err.Details["window"])
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, "Access denied. No token provided.", Unauthorized("").Message)
	assert.Equal(t, "Access denied", Forbidden("").Message)
	assert.Equal(t, "Internal Server Error", Internal("", nil).Message)
}
