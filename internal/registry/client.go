// Package registry talks to the company registry API that reports Simples
// Nacional and MEI enrollment for a CNPJ.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// maxBodySize caps how much of a response body is read
const maxBodySize = 1 << 20

// ErrTimeout marks a request that exceeded the configured timeout
var ErrTimeout = errors.New("registry request timed out")

// Response is a completed HTTP exchange, whatever its status code
type Response struct {
	StatusCode int
	Body       []byte
}

// Success reports whether the status code is 2xx
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client queries the registry over HTTP
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a registry client. Every request is bounded by timeout.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fetch performs one lookup for a normalized CNPJ.
//
// Any HTTP answer is returned as a Response, including 4xx and 5xx. A
// timeout is reported as an error wrapping ErrTimeout; every other error is a
// transport failure.
func (c *Client) Fetch(ctx context.Context, cnpj string) (*Response, error) {
	url := c.baseURL + "/" + cnpj

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cnpj":     cnpj,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Registry responded")

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
