package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/atlas-cli/internal/resilience"
)

// apiClient is the shared HTTP plumbing for provider adapters: bearer auth,
// per-provider rate limiting, and transient-error retry. Provider adapters
// own the URL paths and response decoding.
type apiClient struct {
	provider string
	baseURL  string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
}

func newAPIClient(provider, baseURL, apiKey string, rps float64) *apiClient {
	c := &apiClient{
		provider: provider,
		baseURL:  baseURL,
		apiKey:   apiKey,
		http:     &http.Client{},
		retry:    resilience.DefaultRetryConfig(),
		breaker:  resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
	c.retry.OnRetry = resilience.RetryLogger(provider, "fetch")
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
	return c
}

// getJSON fetches path with query params and decodes the JSON body into out.
// Transient failures are retried inside a per-provider circuit breaker; all
// errors come back wrapped as *Error.
func (c *apiClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.doOnce(ctx, path, u, out)
	})
	if err != nil {
		zap.L().Warn("connector: request failed",
			zap.String("provider", c.provider),
			zap.String("path", path),
			zap.Error(err),
		)
		return NewError(c.provider, err)
	}
	return nil
}

func (c *apiClient) doOnce(ctx context.Context, path, u string, out any) error {
	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			httpErr := fmt.Errorf("%s %s: status %d: %s", http.MethodGet, path, resp.StatusCode, body)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(httpErr, resp.StatusCode)
			}
			return httpErr
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return eris.Wrap(err, "decode response")
		}
		return nil
	})
}
