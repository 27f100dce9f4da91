package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"pdfrag/internal/domain"
)

const providerName = "openai"

// Config configures the OpenAI-compatible API client shared by the
// embedding and generation adapters.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func newClient(cfg Config) (*goopenai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", domain.ErrInvalidConfiguration)
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: t}
	return goopenai.NewClientWithConfig(clientCfg), nil
}

// wrapError converts a go-openai failure into a ProviderError carrying the
// HTTP status and the API message when the service returned one.
func wrapError(op string, err error) error {
	pe := &domain.ProviderError{Provider: providerName, Message: op, Err: err}
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.Status = apiErr.HTTPStatusCode
		if apiErr.Message != "" {
			pe.Message = op + ": " + apiErr.Message
		}
	case errors.As(err, &reqErr):
		pe.Status = reqErr.HTTPStatusCode
	}
	return pe
}

// breakerThreshold is the number of consecutive provider failures after which
// calls fail fast for breakerCooldown.
const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerThreshold
		},
		IsSuccessful: countsAsHealthy,
	})
}

// countsAsHealthy keeps caller mistakes and cancellations from tripping the
// breaker: only server errors, throttling and transport failures count.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) && pe.Status >= 400 && pe.Status < 500 && pe.Status != http.StatusTooManyRequests {
		return true
	}
	return false
}

// execute runs fn through the breaker, reporting an open breaker as a
// ProviderError.
func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &domain.ProviderError{Provider: providerName, Message: "too many consecutive failures, backing off", Err: err}
		}
		return zero, err
	}
	return res.(T), nil
}
