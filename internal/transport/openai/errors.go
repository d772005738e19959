package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// classifyError turns a client error into a *domain.ProviderError.
// 408, 429, 5xx, timeouts and connection failures are transient; everything else is permanent.
// base is the sentinel the error chain should carry for HTTP mapping.
func classifyError(err error, base error) error {
	status, detail := statusAndDetail(err)

	switch {
	case errors.Is(err, context.Canceled):
		return domain.NewPermanentError(0, fmt.Errorf("request cancelled: %w: %w", base, err))
	case status == http.StatusTooManyRequests:
		return domain.NewTransientError(status, fmt.Errorf("%s: %w: %w", detail, domain.ErrRateLimited, base))
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return domain.NewTransientError(status, fmt.Errorf("%s: %w", detail, base))
	case status > 0:
		return domain.NewPermanentError(status, fmt.Errorf("%s: %w", detail, base))
	case isNetworkError(err):
		return domain.NewTransientError(0, fmt.Errorf("request failed: %w: %w", base, err))
	default:
		return domain.NewPermanentError(0, fmt.Errorf("request failed: %w: %w", base, err))
	}
}

func statusAndDetail(err error) (int, string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, apiErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if d := extractDetail(reqErr.Body); d != "" {
			return reqErr.HTTPStatusCode, d
		}
		return reqErr.HTTPStatusCode, string(reqErr.Body)
	}
	return 0, ""
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// extractDetail reads the "detail" field some OpenAI-compatible gateways return instead of "error".
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
