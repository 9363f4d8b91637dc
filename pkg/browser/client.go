// Package browser is an HTTP client for the Playwright driver sidecar. The
// sidecar owns the real browser; this package exposes the handful of page
// operations the extraction pipeline needs through a session API.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for a locally running driver sidecar.
const defaultBaseURL = "http://localhost:3000"

// Client opens driver sessions.
type Client interface {
	OpenSession(ctx context.Context, opts OpenOptions) (Session, error)
}

// Session is one live browser page on the driver.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Exists(ctx context.Context, selector string) (bool, error)
	Count(ctx context.Context, selector string) (int, error)
	Click(ctx context.Context, selector string) error
	ClickNth(ctx context.Context, selector string, n int) error
	Fill(ctx context.Context, selector, text string) error
	// Type sends text through the keyboard to whatever has focus.
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, selector, key string) error
	InnerText(ctx context.Context, selector string) (string, error)
	Close(ctx context.Context) error
}

// OpenOptions configures a new driver session.
type OpenOptions struct {
	Headless bool `json:"headless"`
}

// APIError is returned when the driver responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("browser: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default driver URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new driver client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		// No overall client timeout: wait_for_login legitimately blocks for
		// minutes while a human signs in. Per-call deadlines come from ctx.
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type openSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
}

func (c *httpClient) OpenSession(ctx context.Context, opts OpenOptions) (Session, error) {
	var resp openSessionResponse
	if err := c.post(ctx, "/session", opts, &resp); err != nil {
		return nil, eris.Wrap(err, "browser: open session")
	}
	if !resp.Success {
		return nil, eris.Errorf("browser: open session: %s", resp.Error)
	}
	return &session{client: c, id: resp.SessionID}, nil
}

// session implements Session over the driver's per-session endpoints.
type session struct {
	client *httpClient
	id     string
}

type commandRequest struct {
	URL       string `json:"url,omitempty"`
	Selector  string `json:"selector,omitempty"`
	Index     *int   `json:"index,omitempty"`
	Text      string `json:"text,omitempty"`
	Key       string `json:"key,omitempty"`
	TimeoutMS int64  `json:"timeoutMs,omitempty"`
}

type commandResponse struct {
	Success bool   `json:"success"`
	Found   bool   `json:"found"`
	Count   int    `json:"count"`
	Text    string `json:"text"`
	Error   string `json:"error"`
}

func (s *session) Navigate(ctx context.Context, url string) error {
	_, err := s.command(ctx, "navigate", commandRequest{URL: url})
	return err
}

func (s *session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := s.command(ctx, "wait", commandRequest{Selector: selector, TimeoutMS: timeout.Milliseconds()})
	return err
}

func (s *session) Exists(ctx context.Context, selector string) (bool, error) {
	resp, err := s.command(ctx, "query", commandRequest{Selector: selector})
	if err != nil {
		return false, err
	}
	return resp.Found, nil
}

func (s *session) Count(ctx context.Context, selector string) (int, error) {
	resp, err := s.command(ctx, "query", commandRequest{Selector: selector})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (s *session) Click(ctx context.Context, selector string) error {
	_, err := s.command(ctx, "click", commandRequest{Selector: selector})
	return err
}

func (s *session) ClickNth(ctx context.Context, selector string, n int) error {
	_, err := s.command(ctx, "click", commandRequest{Selector: selector, Index: &n})
	return err
}

func (s *session) Fill(ctx context.Context, selector, text string) error {
	_, err := s.command(ctx, "fill", commandRequest{Selector: selector, Text: text})
	return err
}

func (s *session) Type(ctx context.Context, text string) error {
	_, err := s.command(ctx, "type", commandRequest{Text: text})
	return err
}

func (s *session) Press(ctx context.Context, selector, key string) error {
	_, err := s.command(ctx, "press", commandRequest{Selector: selector, Key: key})
	return err
}

func (s *session) InnerText(ctx context.Context, selector string) (string, error) {
	resp, err := s.command(ctx, "text", commandRequest{Selector: selector})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (s *session) Close(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.client.baseURL+"/session/"+s.id, nil)
	if err != nil {
		return eris.Wrap(err, "browser: close session")
	}
	var resp commandResponse
	return s.client.do(req, &resp)
}

func (s *session) command(ctx context.Context, action string, body commandRequest) (*commandResponse, error) {
	var resp commandResponse
	path := fmt.Sprintf("/session/%s/%s", s.id, action)
	if err := s.client.post(ctx, path, body, &resp); err != nil {
		return nil, eris.Wrapf(err, "browser: %s", action)
	}
	if !resp.Success {
		return nil, eris.Errorf("browser: %s: %s", action, resp.Error)
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrap(err, "unmarshal response")
		}
	}
	return nil
}
