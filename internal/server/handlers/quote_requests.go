package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	fulerrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/apony/quoteintake/internal/core"
	"github.com/apony/quoteintake/internal/core/engine"
	apperrors "github.com/apony/quoteintake/internal/errors"
)

// MaxQuoteRequestBody caps the submission body size.
const MaxQuoteRequestBody = 64 << 10

// RateLimitResetFormat is the ISO-8601 layout of X-RateLimit-Reset.
const RateLimitResetFormat = "2006-01-02T15:04:05.000Z"

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// Submitter is the intake pipeline behind the public endpoint.
type Submitter interface {
	Admit(ctx context.Context, email, ip string) (engine.RateLimitDecision, error)
	Submit(ctx context.Context, sub core.Submission, meta core.RequestMeta) (*engine.SubmitResult, error)
}

// QuoteRequestHandler serves POST /api/v1/quote-requests.
type QuoteRequestHandler struct {
	intake Submitter
}

// NewQuoteRequestHandler builds the handler over intake.
func NewQuoteRequestHandler(intake Submitter) *QuoteRequestHandler {
	return &QuoteRequestHandler{intake: intake}
}

// SuccessResponse is the body of a created quote request.
type SuccessResponse struct {
	Success bool         `json:"success"`
	Data    core.Summary `json:"data"`
}

// Create accepts a public quote request submission.
func (h *QuoteRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := ClientIP(r)

	var sub core.Submission
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxQuoteRequestBody))
	if err := decoder.Decode(&sub); err != nil {
		// An unreadable body still counts against the caller's window.
		decision, limitErr := h.intake.Admit(ctx, "", ip)
		setRateLimitHeaders(w, decision)
		if limitErr != nil {
			h.respondSubmitError(w, r, limitErr)
			return
		}
		respondWithError(w, r, apperrors.WrapValidationError(ctx, err, "Invalid request body"))
		return
	}

	result, err := h.intake.Submit(ctx, sub, core.RequestMeta{
		IP:        ip,
		UserAgent: r.UserAgent(),
	})
	if result != nil {
		setRateLimitHeaders(w, result.Decision)
	}
	if err != nil {
		h.respondSubmitError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    result.Quote.Summary(),
	})
}

func (h *QuoteRequestHandler) respondSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var limitErr *engine.RateLimitError
	var validationErr *engine.ValidationError

	switch {
	case errors.As(err, &limitErr):
		w.Header().Set(HeaderRetryAfter, strconv.Itoa(limitErr.Decision.RetryAfter))
		respondWithError(w, r, apperrors.NewRateLimitError(limitErr.Error(), limitErr.Decision.RetryAfter))
	case errors.As(err, &validationErr):
		respondWithError(w, r, validationEnvelope(validationErr))
	default:
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "Failed to create quote request"))
	}
}

func validationEnvelope(err *engine.ValidationError) *fulerrors.ErrorEnvelope {
	details := map[string]interface{}{"rule": err.Rule}
	if len(err.Fields) > 0 {
		details["fields"] = err.Fields
	}
	return apperrors.NewValidationError(err.Message).WithDetails(details)
}

// setRateLimitHeaders writes the limit headers present on every response.
func setRateLimitHeaders(w http.ResponseWriter, d engine.RateLimitDecision) {
	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		h.Set(HeaderRateLimitReset, d.ResetAt.UTC().Format(RateLimitResetFormat))
	}
}

// ClientIP returns the first X-Forwarded-For entry, else the host part of
// RemoteAddr, else "unknown".
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		if host == "" {
			return "unknown"
		}
		return host
	}
	return addr
}
