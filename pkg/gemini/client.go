// Package gemini wraps the Gemini API behind the single text-generation
// operation the extraction pipeline uses.
package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// DefaultModel is the extraction model. Gemma 3 27B is served through the
// Gemini API and is strong enough for structured extraction at low cost.
const DefaultModel = "gemma-3-27b-it"

// Client defines the text generation operation.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// Option configures the client.
type Option func(*client)

// WithModel overrides the default model name.
func WithModel(name string) Option {
	return func(c *client) {
		if name != "" {
			c.model = name
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *client) {
		c.temperature = &t
	}
}

// WithMaxOutputTokens caps response length.
func WithMaxOutputTokens(n int32) Option {
	return func(c *client) {
		c.maxOutputTokens = &n
	}
}

// WithRateLimit gates Generate calls at r requests per second.
func WithRateLimit(r float64, burst int) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

type client struct {
	genai           *genai.Client
	model           string
	temperature     *float32
	maxOutputTokens *int32
	limiter         *rate.Limiter
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}

	c := &client{
		genai: gc,
		model: DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "gemini: rate limit wait")
		}
	}

	m := c.genai.GenerativeModel(c.model)
	if c.temperature != nil {
		m.SetTemperature(*c.temperature)
	}
	if c.maxOutputTokens != nil {
		m.SetMaxOutputTokens(*c.maxOutputTokens)
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", eris.Wrap(err, "gemini: generate content")
	}

	text := responseText(resp)
	if text == "" {
		return "", eris.New("gemini: no content generated")
	}
	return text, nil
}

func (c *client) Close() error {
	return c.genai.Close()
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
