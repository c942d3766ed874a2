package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apony/quoteintake/internal/config"
	"github.com/apony/quoteintake/internal/core"
	"github.com/apony/quoteintake/internal/core/engine"
	apperrors "github.com/apony/quoteintake/internal/errors"
	"github.com/apony/quoteintake/internal/server/handlers"
)

type fakeIntake struct {
	meta core.RequestMeta
}

func (f *fakeIntake) Admit(context.Context, string, string) (engine.RateLimitDecision, error) {
	return engine.RateLimitDecision{Allowed: true, Limit: 3, Remaining: 2}, nil
}

func (f *fakeIntake) Submit(_ context.Context, sub core.Submission, meta core.RequestMeta) (*engine.SubmitResult, error) {
	f.meta = meta
	return &engine.SubmitResult{
		Decision: engine.RateLimitDecision{
			Allowed:   true,
			Limit:     3,
			Remaining: 2,
			ResetAt:   time.Date(2025, 3, 4, 9, 5, 0, 0, time.UTC),
		},
		Quote: &core.QuoteRequest{ID: "id-1", Code: "QR-20250304-0001", Status: core.StatusOpen},
	}, nil
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(config.ServerConfig{Host: "127.0.0.1"}, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, apperrors.CodeNotFound, body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
	assert.Equal(t, body.Error.RequestID, rec.Header().Get("X-Request-ID"))
}

func TestServerRoutesQuoteRequests(t *testing.T) {
	intake := &fakeIntake{}
	srv := New(config.ServerConfig{}, Deps{Intake: intake})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quote-requests", strings.NewReader(`{"email":"a@x.io"}`))
	req.Header.Set("X-Forwarded-For", "198.51.100.9")
	req.Header.Set("User-Agent", "quote-form/1.0")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "3", rec.Header().Get(handlers.HeaderRateLimitLimit))
	assert.Equal(t, "2025-03-04T09:05:00.000Z", rec.Header().Get(handlers.HeaderRateLimitReset))
	assert.Equal(t, "198.51.100.9", intake.meta.IP)
	assert.Equal(t, "quote-form/1.0", intake.meta.UserAgent)

	var body handlers.SuccessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "QR-20250304-0001", body.Data.Code)
}

func TestServerRejectsWrongMethod(t *testing.T) {
	srv := New(config.ServerConfig{}, Deps{Intake: &fakeIntake{}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quote-requests", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerHealthRoutes(t *testing.T) {
	health := handlers.NewHealthManager("1.0.0")
	health.MarkStarted()
	srv := New(config.ServerConfig{}, Deps{Health: health})

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/health/startup", "/version"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestAdminEndpointRequiresToken(t *testing.T) {
	srv := New(config.ServerConfig{}, Deps{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/signal", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerAddr(t *testing.T) {
	srv := New(config.ServerConfig{Host: "localhost", Port: 8080}, Deps{})
	assert.Equal(t, "localhost:8080", srv.Addr())
	assert.NoError(t, srv.Shutdown(context.Background()))
}
