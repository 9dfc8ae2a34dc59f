package upstream

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCodes = Register("UPSTREAM_TEST", "Test")

func TestClassify_ByStatus(t *testing.T) {
	cases := []struct {
		status int
		msg    string
		want   string
	}{
		{http.StatusUnauthorized, "bad key", "UPSTREAM_TEST_API_UNAUTHORIZED"},
		{http.StatusForbidden, "nope", "UPSTREAM_TEST_API_UNAUTHORIZED"},
		{http.StatusTooManyRequests, "slow down", "UPSTREAM_TEST_API_RATE_LIMIT"},
		{http.StatusNotFound, "no such model", "UPSTREAM_TEST_MODEL_NOT_FOUND"},
		{http.StatusBadRequest, "maximum context exceeded", "UPSTREAM_TEST_CONTEXT_LENGTH_EXCEEDED"},
		{http.StatusBadRequest, "bad temperature", "UPSTREAM_TEST_INVALID_REQUEST"},
		{http.StatusServiceUnavailable, "down", "UPSTREAM_TEST_API_RESPONSE_INVALID"},
		{http.StatusConflict, "odd", "UPSTREAM_TEST_API_REQUEST_FAILED"},
	}

	for _, tc := range cases {
		got := testCodes.Classify(errors.New(tc.msg), tc.status, Hints{})
		require.NotNil(t, got)
		assert.Equal(t, tc.want, got.Code, "status %d", tc.status)
		assert.Equal(t, tc.status, got.Details["status_code"])
	}
}

func TestClassify_ByHints(t *testing.T) {
	hints := Hints{
		Unauthorized:  []string{"accessdenied"},
		RateLimit:     []string{"throttl"},
		ContextLength: []string{"input is too long"},
	}

	got := testCodes.Classify(errors.New("ThrottlingException: Rate exceeded"), 0, hints)
	assert.True(t, testCodes.RateLimit.Is(got))
	assert.Nil(t, got.Details["status_code"])

	got = testCodes.Classify(errors.New("AccessDeniedException"), 0, hints)
	assert.True(t, testCodes.Unauthorized.Is(got))

	got = testCodes.Classify(errors.New("connection reset"), 0, hints)
	assert.True(t, testCodes.Request.Is(got))
}

func TestClassify_KeepsRegisteredErrors(t *testing.T) {
	original := testCodes.New(testCodes.EmptyMessages)
	assert.Same(t, original, testCodes.Classify(original, http.StatusBadGateway, Hints{}))
	assert.Same(t, original, testCodes.Wrap(original, testCodes.InvalidMessage))
	assert.Nil(t, testCodes.Classify(nil, 0, Hints{}))
	assert.Nil(t, testCodes.Wrap(nil, testCodes.InvalidMessage))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("bad json")
	got := testCodes.Wrap(cause, testCodes.InvalidMessage)
	assert.True(t, testCodes.InvalidMessage.Is(got))
	assert.ErrorIs(t, got, cause)
}
