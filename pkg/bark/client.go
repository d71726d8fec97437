package bark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiPrefix             = "/api/v1"
	defaultRequestTimeout = 15 * time.Second
	maxRawErrorLength     = 200

	messageDaemonUnreachable = "daemon unreachable"
)

// Config carries the daemon connection settings. It is built once at
// process start and injected; the client keeps no global state.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client issues REST calls against a barkd daemon and normalizes every
// outcome into a Result. It never returns transport errors to callers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures a Client instance.
type ClientOption func(*Client)

// WithLogger wires a structured logger for request failures.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client (used by tests).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = httpClient
	}
}

// NewClient validates the configuration and wires a Client.
func NewClient(cfg Config, options ...ClientOption) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: base url is empty", ErrInvalidClientConfig)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

// Result is the normalized outcome of a daemon call. Failure is a
// value, not an error: callers branch on Success and surface Message.
type Result struct {
	Success bool
	Message string
	Data    json.RawMessage
	Status  int
}

func failure(status int, message string) Result {
	return Result{Success: false, Message: message, Status: status}
}

func (client *Client) get(ctx context.Context, path string) Result {
	return client.do(ctx, http.MethodGet, path, nil)
}

func (client *Client) post(ctx context.Context, path string, body any) Result {
	return client.do(ctx, http.MethodPost, path, body)
}

// do performs one daemon request with no HTTP-level caching. The
// response body is read as text first so non-JSON error bodies still
// produce a usable message.
func (client *Client) do(ctx context.Context, method string, path string, body any) Result {
	url := client.baseURL + apiPrefix + path

	var requestBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return failure(0, fmt.Sprintf("encode request: %v", err))
		}
		requestBody = bytes.NewReader(encoded)
	} else {
		requestBody = bytes.NewReader(nil)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, requestBody)
	if err != nil {
		return failure(0, fmt.Sprintf("build request: %v", err))
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Cache-Control", "no-store")

	response, err := client.httpClient.Do(request)
	if err != nil {
		client.logger.Warn("daemon request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return failure(0, messageDaemonUnreachable)
	}
	defer response.Body.Close()

	rawBody, err := readBody(response)
	if err != nil {
		client.logger.Warn("daemon response unreadable",
			zap.String("path", path), zap.Error(err))
		return failure(response.StatusCode, messageDaemonUnreachable)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		message := extractErrorMessage(rawBody, response.StatusCode)
		client.logger.Warn("daemon returned error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", response.StatusCode),
			zap.String("message", message))
		return failure(response.StatusCode, message)
	}

	var data json.RawMessage
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody != "" && json.Valid([]byte(trimmedBody)) {
		data = json.RawMessage(trimmedBody)
	}
	return Result{Success: true, Data: data, Status: response.StatusCode}
}

func readBody(response *http.Response) ([]byte, error) {
	var buffer bytes.Buffer
	if _, err := buffer.ReadFrom(response.Body); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// extractErrorMessage prefers body.message, then body.error, then the
// raw text when it is short, and falls back to a generic status line.
func extractErrorMessage(rawBody []byte, status int) string {
	trimmed := strings.TrimSpace(string(rawBody))
	if trimmed != "" {
		var parsed map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			if message, ok := stringField(parsed, "message"); ok {
				return message
			}
			if message, ok := stringField(parsed, "error"); ok {
				return message
			}
		}
		if len(trimmed) <= maxRawErrorLength {
			return trimmed
		}
	}
	return fmt.Sprintf("request failed: %d", status)
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	if strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}
