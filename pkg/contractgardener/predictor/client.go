package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/ensemble"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/metrics"
)

// HTTPClient interface allows mocking http.Client in tests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CacheInterface is the prediction cache used by the client
type CacheInterface interface {
	Get(station, model string) (*ensemble.ModelOutput, bool)
	Set(station, model string, output *ensemble.ModelOutput)
}

// Client calls one external predictive model service. It implements
// ensemble.Predictor.
type Client struct {
	model      string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	httpClient HTTPClient
	cache      CacheInterface
}

// ClientOption allows customizing the client
type ClientOption func(*Client)

// WithHTTPClient allows injecting a custom HTTP client
func WithHTTPClient(client HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithCache adds a prediction cache to the client
func WithCache(cache CacheInterface) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// NewClient creates a client for the model served at baseURL
func NewClient(model, baseURL string, cfg config.ModelsConfig, opts ...ClientOption) *Client {
	client := &Client{
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// errNotRetryable marks responses that will not change on retry
var errNotRetryable = errors.New("not retryable")

// Predict fetches a station's peak power prediction with retries. A model
// that has nothing for the station answers with an unavailable output, not
// an error.
func (c *Client) Predict(ctx context.Context, stationID string) (*ensemble.ModelOutput, error) {
	if stationID == "" {
		return nil, fmt.Errorf("station id cannot be empty")
	}

	if c.cache != nil {
		if out, fresh := c.cache.Get(stationID, c.model); fresh {
			klog.V(3).InfoS("Using cached model prediction",
				"model", c.model,
				"station", stationID)
			return out, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		out, err := c.doRequest(ctx, stationID)
		if err == nil {
			metrics.PredictorRequestsTotal.WithLabelValues(c.model, "success").Inc()
			if c.cache != nil {
				c.cache.Set(stationID, c.model, out)
			}
			return out, nil
		}
		metrics.PredictorRequestsTotal.WithLabelValues(c.model, "error").Inc()
		lastErr = err
		if errors.Is(err, errNotRetryable) || attempt == c.maxRetries {
			break
		}

		klog.V(2).InfoS("Model request failed, retrying",
			"model", c.model,
			"station", stationID,
			"attempt", attempt+1,
			"maxRetries", c.maxRetries,
			"error", err)

		timer := time.NewTimer(c.getBackoffDuration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%s model request failed: %w", c.model, lastErr)
}

func (c *Client) doRequest(ctx context.Context, stationID string) (*ensemble.ModelOutput, error) {
	endpoint := fmt.Sprintf("%s/v1/stations/%s/peak-distribution", c.baseURL, url.PathEscape(stationID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w: %w", err, errNotRetryable)
	}
	req.Header.Set("Accept", "application/json")

	klog.V(4).InfoS("Making model request", "model", c.model, "url", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return &ensemble.ModelOutput{Available: false, Error: "model has no prediction for station"}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status code: %d: %w", resp.StatusCode, errNotRetryable)
	}

	var out ensemble.ModelOutput
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

func (c *Client) getBackoffDuration(attempt int) time.Duration {
	backoff := c.retryDelay * time.Duration(1<<uint(attempt))
	maxBackoff := 30 * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	// Jitter (±20%)
	return time.Duration(float64(backoff) * (0.8 + 0.4*float64(time.Now().UnixNano()%100)/100.0))
}

// Model returns the model name this client serves
func (c *Client) Model() string {
	return c.model
}
