// Package gemini adapts the Gemini generateContent API (google.golang.org/genai)
// to the request and response shapes the chat service builds.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/"
	apiVersion     = "v1beta"
)

// ErrNoAPIKey is returned by GenerateContent when the client was built without a key.
var ErrNoAPIKey = errors.New("gemini: api key is not configured")

type Blob struct {
	MimeType string
	Data     []byte
}

type Part struct {
	Text       string
	InlineData *Blob
}

type Content struct {
	Role  string
	Parts []Part
}

type GenerationConfig struct {
	Temperature     float64
	MaxOutputTokens int
}

type Request struct {
	SystemInstruction *Content
	Contents          []Content
	GenerationConfig  GenerationConfig
}

type Candidate struct {
	Content      Content
	FinishReason string
}

type Response struct {
	Candidates []Candidate
}

// APIError is a non-2xx answer from the API, kept for server-side diagnostics.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: status %d %s: %s", e.StatusCode, e.Status, e.Body)
}

type settings struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*settings)

// WithHTTPClient replaces the default client, e.g. in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

func WithBaseURL(u string) Option {
	return func(s *settings) {
		if u = strings.TrimSpace(u); u != "" {
			s.baseURL = strings.TrimRight(u, "/") + "/"
		}
	}
}

type Client struct {
	models *genai.Models
	model  string
}

// New builds a client. timeout bounds every call, including reading the body.
// An empty apiKey yields a client whose calls fail with ErrNoAPIKey, so a
// development server can start without LLM credentials.
func New(ctx context.Context, apiKey, model string, timeout time.Duration, opts ...Option) (*Client, error) {
	s := &settings{baseURL: DefaultBaseURL, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(s)
	}

	c := &Client{model: model}
	if apiKey == "" {
		return c, nil
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    s.baseURL,
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	c.models = gc.Models
	return c, nil
}

func (c *Client) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	if c.models == nil {
		return nil, ErrNoAPIKey
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.GenerationConfig.Temperature)),
		MaxOutputTokens: int32(req.GenerationConfig.MaxOutputTokens),
	}
	if req.SystemInstruction != nil {
		cfg.SystemInstruction = toContent(*req.SystemInstruction)
	}
	contents := make([]*genai.Content, 0, len(req.Contents))
	for _, ct := range req.Contents {
		contents = append(contents, toContent(ct))
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.Code, Status: apiErr.Status, Body: apiErr.Message}
		}
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	return fromResponse(resp), nil
}

func toContent(c Content) *genai.Content {
	out := &genai.Content{Role: c.Role}
	for _, p := range c.Parts {
		if p.InlineData != nil {
			out.Parts = append(out.Parts, &genai.Part{InlineData: &genai.Blob{
				MIMEType: p.InlineData.MimeType,
				Data:     p.InlineData.Data,
			}})
			continue
		}
		out.Parts = append(out.Parts, &genai.Part{Text: p.Text})
	}
	return out
}

func fromResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		c := Candidate{FinishReason: string(cand.FinishReason)}
		if cand.Content != nil {
			c.Content.Role = cand.Content.Role
			for _, p := range cand.Content.Parts {
				if p == nil {
					continue
				}
				part := Part{Text: p.Text}
				if p.InlineData != nil {
					part.InlineData = &Blob{MimeType: p.InlineData.MIMEType, Data: p.InlineData.Data}
				}
				c.Content.Parts = append(c.Content.Parts, part)
			}
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out
}
