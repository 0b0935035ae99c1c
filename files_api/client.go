// Package files_api is a client for an HTTP file store that accepts uploaded
// content along with tags and an indexing flag.
package files_api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InvalidUrlError is returned when the base URL cannot be used.
type InvalidUrlError string

func (e InvalidUrlError) Error() string {
	return fmt.Sprintf("invalid URL: %s", string(e))
}

// HttpError is returned when a request could not be sent or its response read.
type HttpError string

func (e HttpError) Error() string {
	return fmt.Sprintf("HTTP error: %s", string(e))
}

// APIError is returned when the file store answers with success=false or a non-2xx status.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("files API error %s: %s [status=%d, request=%s]", e.Code, e.Message, e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("files API error [status=%d, request=%s]", e.StatusCode, e.RequestID)
}

// Client talks to the files API.
type Client struct {
	baseURL     *url.URL     // Base URL of the API, e.g. https://files.example.com
	token       string       // Bearer token sent with every request
	http_client *http.Client // HTTP client used for API and upload requests
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.http_client = c
	}
}

// NewClient creates a client for the API at baseURL.
// It returns an InvalidUrlError when baseURL is not an absolute http(s) URL.
func NewClient(baseURL string, token string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, InvalidUrlError(err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, InvalidUrlError(fmt.Sprintf("unsupported scheme %q", parsed.Scheme))
	}
	if parsed.Host == "" {
		return nil, InvalidUrlError("missing host")
	}
	c := &Client{
		baseURL:     parsed,
		token:       token,
		http_client: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// buildUrl constructs the URL of an API endpoint relative to the base URL.
func (c *Client) buildUrl(endpoint string, query url.Values) *url.URL {
	reqUrl := *c.baseURL
	reqUrl.Path = strings.TrimSuffix(c.baseURL.Path, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	reqUrl.RawQuery = ""
	if len(query) > 0 {
		reqUrl.RawQuery = query.Encode()
	}
	return &reqUrl
}

// envelope is the common shape of every API response.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// doJSON sends a request with an optional JSON body and decodes the envelope's
// data into out when out is not nil.
func (c *Client) doJSON(ctx context.Context, method string, endpoint string, query url.Values, in any, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildUrl(endpoint, query).String(), body)
	if err != nil {
		return HttpError(err.Error())
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http_client.Do(req)
	if err != nil {
		return HttpError(err.Error())
	}
	return processAPIResponse(res, requestID, out)
}

// processAPIResponse reads the envelope and checks that the call succeeded.
func processAPIResponse(res *http.Response, requestID string, out any) error {
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return HttpError(err.Error())
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return &APIError{StatusCode: res.StatusCode, Message: http.StatusText(res.StatusCode), RequestID: requestID}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !env.Success || res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{
			StatusCode: res.StatusCode,
			Code:       env.Error.Code,
			Message:    env.Error.Message,
			RequestID:  requestID,
		}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
