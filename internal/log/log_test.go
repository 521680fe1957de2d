package log

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentStorage, Output: &buf})

	logger.Info("Transaction created", FieldAccountID, "acct")

	out := buf.String()
	assert.Contains(t, out, "component=storage")
	assert.Contains(t, out, "account_id=acct")
	assert.Equal(t, ComponentStorage, logger.Component())
}

func TestWithComponent_ReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentApp, Output: &buf}).WithComponent(ComponentWorker)

	logger.Info("Started")

	out := buf.String()
	assert.Contains(t, out, "component=worker")
	assert.NotContains(t, out, "component=app")
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Component: ComponentHTTP, Output: &buf})

	handler := Middleware(base)(RequestIDMiddleware(func(r *http.Request) string {
		return r.Header.Get("X-Request-ID")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "Handled")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), "request_id=req-42")
}

func TestFromContext_Default(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, "unknown", logger.Component())
}

func TestLogFields(t *testing.T) {
	fields := NewFields().
		WithAccount("acct").
		WithRequestID("").
		WithOperation("create").
		WithError(errors.New("boom"), ErrorTypeStore).
		ToSlice()

	assert.Len(t, fields, 8)
	assert.NotContains(t, strings.Join(toStrings(fields), " "), FieldRequestID)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		s, _ := v.(string)
		out[i] = s
	}
	return out
}
