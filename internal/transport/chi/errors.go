package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// Error codes returned in the JSON error body.
const (
	CodeBadRequest             = "bad_request"
	CodeValidationFailed       = "validation_failed"
	CodeInvalidWeights         = "invalid_weights"
	CodeEntityNotFound         = "entity_not_found"
	CodeNotFound               = "not_found"
	CodeInsufficientData       = "insufficient_data"
	CodeRateLimited            = "rate_limited"
	CodeEmbeddingProviderError = "embedding_provider_error"
	CodeExplanationUnavailable = "explanation_unavailable"
	CodeUnauthorized           = "unauthorized"
	CodeMethodNotAllowed       = "method_not_allowed"
	CodeInternalError          = "internal_error"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// errorMapping binds a sentinel to its HTTP status and code.
// Client-caused errors carry our own messages, so they are returned in full.
type errorMapping struct {
	sentinel error
	status   int
	code     string
	verbose  bool
}

// errorMappings are checked in order. ErrRateLimited precedes the provider
// sentinels because a 429 chain carries both.
var errorMappings = []errorMapping{
	{domain.ErrInvalidWeights, http.StatusBadRequest, CodeInvalidWeights, true},
	{domain.ErrInvalidArgument, http.StatusBadRequest, CodeValidationFailed, true},
	{domain.ErrEntityNotFound, http.StatusNotFound, CodeEntityNotFound, true},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound, false},
	{domain.ErrInsufficientData, http.StatusUnprocessableEntity, CodeInsufficientData, true},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited, false},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError, false},
	{domain.ErrExplanationUnavailable, http.StatusBadGateway, CodeExplanationUnavailable, false},
}

func defaultErrorHandlers() []errorHandler {
	handlers := make([]errorHandler, 0, len(errorMappings)+1)
	for _, m := range errorMappings {
		handlers = append(handlers, sentinelHandler(m))
	}
	return append(handlers, providerErrorHandler)
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(m errorMapping) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, m.sentinel) {
			return false
		}
		writeError(w, m.status, m.code, message(m, err))
		return true
	}
}

// providerErrorHandler catches provider failures that carry no sentinel.
func providerErrorHandler(w http.ResponseWriter, err error) bool {
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	writeError(w, http.StatusBadGateway, CodeEmbeddingProviderError, domain.ErrEmbeddingProviderError.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.log(r).Warn("domain error", zap.Error(err))
			return
		}
	}
	s.log(r).Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// errorBody maps an error to the code and message reported for a batch slot.
func errorBody(err error) ErrorResponse {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return ErrorResponse{Code: m.code, Message: message(m, err)}
		}
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return ErrorResponse{Code: CodeEmbeddingProviderError, Message: domain.ErrEmbeddingProviderError.Error()}
	}
	return ErrorResponse{Code: CodeInternalError, Message: "internal error"}
}

func message(m errorMapping, err error) string {
	if m.verbose {
		return err.Error()
	}
	return m.sentinel.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}
