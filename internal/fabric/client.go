package fabric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/metrics"
	"github.com/iq-workshop/builder/pkg/circuitbreaker"
	"github.com/iq-workshop/builder/pkg/logger"
)

const (
	defaultLROTimeout  = 5 * time.Minute
	defaultRetryAfter  = 30 * time.Second
	max429Retries      = 5
	defaultPollBackoff = 3 * time.Second
)

// Client talks to the Fabric REST API. It handles the two behaviors every
// endpoint shares: 429 rate limiting with Retry-After, and 202 long-running
// operations polled via the Location header.
type Client struct {
	http         *http.Client
	baseURL      string
	workspaceID  string
	token        string
	lroTimeout   time.Duration
	pollInterval time.Duration
	cb           *circuitbreaker.Breaker
}

type Options struct {
	BaseURL     string
	WorkspaceID string
	Token       string
	LROTimeout  time.Duration
}

func NewClient(opts Options) (*Client, error) {
	if opts.WorkspaceID == "" {
		return nil, fmt.Errorf("FABRIC_WORKSPACE_ID is not set")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("FABRIC_API_TOKEN is not set (az account get-access-token --resource https://api.fabric.microsoft.com)")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.fabric.microsoft.com/v1"
	}
	if opts.LROTimeout <= 0 {
		opts.LROTimeout = defaultLROTimeout
	}

	cb := circuitbreaker.New("fabric", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	logger.Info("Fabric client initialized",
		zap.String("workspace_id", opts.WorkspaceID),
		zap.String("base_url", opts.BaseURL),
	)

	return &Client{
		http:         &http.Client{Timeout: 60 * time.Second},
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		workspaceID:  opts.WorkspaceID,
		token:        opts.Token,
		lroTimeout:   opts.LROTimeout,
		pollInterval: defaultPollBackoff,
		cb:           cb,
	}, nil
}

func (c *Client) workspaceURL(format string, args ...interface{}) string {
	return c.baseURL + "/workspaces/" + c.workspaceID + fmt.Sprintf(format, args...)
}

type response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (r *response) decode(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do sends one request, retrying on 429 per the Retry-After header.
func (c *Client) do(ctx context.Context, method, url string, payload interface{}) (*response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var resp *response
	err := c.cb.Execute(ctx, func() error {
		for attempt := 0; attempt < max429Retries; attempt++ {
			req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to build request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+c.token)
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			httpResp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}

			respBody, err := io.ReadAll(httpResp.Body)
			httpResp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			if httpResp.StatusCode == http.StatusTooManyRequests {
				wait := retryAfter(httpResp.Header)
				logger.Warn("Fabric API rate limited",
					zap.String("url", url),
					zap.Duration("retry_after", wait),
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
				continue
			}

			resp = &response{
				StatusCode: httpResp.StatusCode,
				Headers:    httpResp.Header,
				Body:       respBody,
			}
			return nil
		}
		return fmt.Errorf("still rate limited after %d retries", max429Retries)
	})
	if err != nil {
		return nil, err
	}

	status := "ok"
	if resp.StatusCode >= 400 {
		status = "error"
	}
	metrics.FabricRequestsTotal.WithLabelValues(method, status).Inc()

	return resp, nil
}

func retryAfter(headers http.Header) time.Duration {
	if v := headers.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

type lroResult struct {
	Status           string          `json:"status"`
	ResourceLocation string          `json:"resourceLocation"`
	Error            json.RawMessage `json:"error"`
}

// waitForLRO polls a 202 operation until it reaches a terminal status. On
// success it fetches resourceLocation when present, since that is where the
// created item lives.
func (c *Client) waitForLRO(ctx context.Context, operationURL, operationName string) (*response, error) {
	deadline := time.Now().Add(c.lroTimeout)

	for time.Now().Before(deadline) {
		resp, err := c.do(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusOK {
			var result lroResult
			if err := resp.decode(&result); err != nil {
				return nil, err
			}

			switch strings.ToLower(result.Status) {
			case "succeeded":
				logger.Debug("LRO completed", zap.String("operation", operationName))
				if result.ResourceLocation != "" {
					return c.do(ctx, http.MethodGet, result.ResourceLocation, nil)
				}
				return resp, nil
			case "failed":
				return nil, fmt.Errorf("%s failed: %s", operationName, string(resp.Body))
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return nil, fmt.Errorf("%s timed out after %s", operationName, c.lroTimeout)
}

func apiError(operation string, resp *response) error {
	return fmt.Errorf("%s returned %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(resp.Body)))
}
