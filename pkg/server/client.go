package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to a running skill API server
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   5 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// APIError is a non-2xx reply from the server
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return e.Kind + ": " + e.Message
	}
	return e.Message
}

// ClearCache drops the server's result cache
func (c *Client) ClearCache(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/cache", nil, nil)
}

// Discover asks the server to rescan its skill directories
func (c *Client) Discover(ctx context.Context) (*DiscoverResponse, error) {
	var resp DiscoverResponse
	if err := c.do(ctx, http.MethodPost, "/api/discover", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Inputs returns the declared input parameters of a skill on the server
func (c *Client) Inputs(ctx context.Context, name string) ([]skilltypes.Parameter, error) {
	var skill struct {
		Inputs []skilltypes.Parameter `json:"inputs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/skills/"+url.PathEscape(name), nil, &skill); err != nil {
		return nil, err
	}
	return skill.Inputs, nil
}

// Execute runs a skill on the server
func (c *Client) Execute(ctx context.Context, name string, inputs, execCtx skilltypes.Values) (skilltypes.Values, error) {
	var resp ExecuteResponse
	req := ExecuteRequest{Inputs: inputs, Context: execCtx}
	if err := c.do(ctx, http.MethodPost, "/api/skills/"+url.PathEscape(name)+"/execute", req, &resp); err != nil {
		return nil, err
	}
	return resp.Outputs, nil
}

// do sends one request. Connection failures are retried, API errors are not.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "failed to create request"))
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return errors.Wrapf(err, "failed to reach %s", c.baseURL)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return errors.Wrap(err, "failed to read response")
			}
			if resp.StatusCode >= 300 {
				apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
				var reply struct {
					Error string `json:"error"`
					Kind  string `json:"kind"`
				}
				if json.Unmarshal(data, &reply) == nil && reply.Error != "" {
					apiErr.Message = reply.Error
					apiErr.Kind = reply.Kind
				}
				return retry.Unrecoverable(apiErr)
			}
			if out == nil || len(data) == 0 {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "failed to decode response"))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}
