package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Handler(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	testCases := []struct {
		name     string
		method   string
		path     string
		checkers map[string]Checker
		assertFn func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:   "liveness",
			method: http.MethodGet,
			path:   "/health",
			checkers: map[string]Checker{
				"redis": func(context.Context) error { return errors.New("down") },
			},
			assertFn: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, "ok\n", rec.Body.String())
			},
		},
		{
			name:   "ready",
			method: http.MethodGet,
			path:   "/ready",
			checkers: map[string]Checker{
				"catalog": func(context.Context) error { return nil },
				"redis":   func(context.Context) error { return nil },
			},
			assertFn: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusOK, rec.Code)
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, map[string]string{"catalog": "ok", "redis": "ok"}, body)
			},
		},
		{
			name:   "not ready",
			method: http.MethodGet,
			path:   "/ready",
			checkers: map[string]Checker{
				"catalog": func(context.Context) error { return nil },
				"questdb": func(context.Context) error { return errors.New("connection refused") },
			},
			assertFn: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "connection refused", body["questdb"])
				assert.Equal(t, "ok", body["catalog"])
			},
		},
		{
			name:   "passes through",
			method: http.MethodPost,
			path:   "/health",
			assertFn: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusTeapot, rec.Code)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hc := New(time.Second)
			for name, check := range tc.checkers {
				hc.Register(name, check)
			}

			rec := httptest.NewRecorder()
			hc.Handler(next).ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			tc.assertFn(t, rec)
		})
	}
}

func TestHealthCheck_CheckTimeout(t *testing.T) {
	hc := New(20 * time.Millisecond)
	hc.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	results := hc.Check(context.Background())
	assert.Equal(t, context.DeadlineExceeded.Error(), results["slow"])
}
