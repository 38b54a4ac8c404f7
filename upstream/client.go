package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hutchstack/bunny-go/rquest"
)

var (
	// ErrAuthFailure signals the task API rejected our credentials. It is
	// terminal: retrying the same credentials cannot succeed.
	ErrAuthFailure = errors.New("upstream: task api rejected credentials")

	// ErrInsecureEndpoint signals a plain-http base URL while HTTPS
	// enforcement is on.
	ErrInsecureEndpoint = errors.New("upstream: task api endpoint is not https")
)

// StatusError reports an unexpected HTTP status from the task API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: task api returned %d: %s", e.Code, e.Body)
}

// Retryable reports whether err is worth another round-trip: transport
// failures and 5xx responses are, everything else is not.
func Retryable(err error) bool {
	if err == nil || IsPermanent(err) || errors.Is(err, ErrAuthFailure) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 && se.Code < 600
	}
	return true
}

// ClientConfig carries everything needed to reach one task API.
type ClientConfig struct {
	BaseURL      string
	Username     string
	Password     string
	CollectionID string
	EnforceHTTPS bool
	Timeout      time.Duration
}

// Client talks to the RQuest task API over HTTP basic auth.
type Client struct {
	base       *url.URL
	username   string
	password   string
	collection string
	http       *http.Client
	log        *zap.Logger
}

// NewClient validates the endpoint and builds a client. A non-https base URL
// is rejected when cfg.EnforceHTTPS is set.
func NewClient(cfg ClientConfig, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("upstream: parse base url: %w", err)
	}
	if cfg.EnforceHTTPS && base.Scheme != "https" {
		return nil, ErrInsecureEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:       base,
		username:   cfg.Username,
		password:   cfg.Password,
		collection: cfg.CollectionID,
		http:       &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// Collection returns the collection ID the client polls for.
func (c *Client) Collection() string { return c.collection }

// Poll asks the task API for the next queued task. A 204 means the queue is
// empty and returns (nil, nil). A 200 body is decoded into a Task.
func (c *Client) Poll(ctx context.Context) (*rquest.Task, error) {
	endpoint := fmt.Sprintf("%s/task/nextjob/%s", c.base, url.PathEscape(c.collection))
	body, status, err := c.roundTrip(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		task, err := rquest.DecodeTask(body)
		if err != nil {
			// A malformed payload will stay malformed; do not retry.
			return nil, Permanent(fmt.Errorf("upstream: decode task: %w", err))
		}
		return task, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, c.statusError(status, body)
	}
}

// Submit posts a completed result under the task's UUID and collection.
func (c *Client) Submit(ctx context.Context, result rquest.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return Permanent(fmt.Errorf("upstream: encode result: %w", err))
	}
	endpoint := fmt.Sprintf("%s/task/result/%s/%s",
		c.base, url.PathEscape(result.UUID), url.PathEscape(result.CollectionID))
	body, status, err := c.roundTrip(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return err
	}
	if status >= 200 && status < 300 {
		return nil
	}
	return c.statusError(status, body)
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, Permanent(err)
	}
	req.SetBasicAuth(c.username, c.password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("upstream: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("upstream: read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) statusError(status int, body []byte) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return ErrAuthFailure
	}
	se := &StatusError{Code: status, Body: strings.TrimSpace(string(body))}
	if status >= 500 {
		return se
	}
	return Permanent(se)
}
