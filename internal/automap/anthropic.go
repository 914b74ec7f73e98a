package automap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	pdferrors "github.com/a3tai/mcp-pdf-automap/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-automap/internal/schema"
)

const (
	DefaultEndpoint   = "https://api.anthropic.com/v1/messages"
	DefaultModel      = "claude-sonnet-4-20250514"
	DefaultMaxTokens  = 8000
	anthropicVersion  = "2023-06-01"
	maxErrorBodyBytes = 64 << 10
)

// HTTPDoer is the subset of *http.Client the remote mapper needs
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteMapper asks the Anthropic messages API to produce the field mapping
type RemoteMapper struct {
	apiKey     string
	endpoint   string
	model      string
	maxTokens  int
	httpClient HTTPDoer
	debugMode  bool
}

// RemoteOption configures a RemoteMapper
type RemoteOption func(*RemoteMapper)

// WithModel overrides the model identifier
func WithModel(model string) RemoteOption {
	return func(m *RemoteMapper) {
		if model != "" {
			m.model = model
		}
	}
}

// WithMaxTokens overrides the response token budget
func WithMaxTokens(n int) RemoteOption {
	return func(m *RemoteMapper) {
		if n > 0 {
			m.maxTokens = n
		}
	}
}

// WithEndpoint points the mapper at a different messages URL
func WithEndpoint(url string) RemoteOption {
	return func(m *RemoteMapper) {
		if url != "" {
			m.endpoint = url
		}
	}
}

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(c HTTPDoer) RemoteOption {
	return func(m *RemoteMapper) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithDebug enables request logging
func WithDebug(debug bool) RemoteOption {
	return func(m *RemoteMapper) {
		m.debugMode = debug
	}
}

// NewRemoteMapper creates a mapper that authenticates with apiKey
func NewRemoteMapper(apiKey string, opts ...RemoteOption) *RemoteMapper {
	m := &RemoteMapper{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		model:      DefaultModel,
		maxTokens:  DefaultMaxTokens,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// MapFields sends one request for the whole field list. There is no retry and no timeout beyond
// what ctx carries.
func (m *RemoteMapper) MapFields(ctx context.Context, fields []extraction.FieldInfo, dataSchema []schema.EmployeeDataField) (*Result, error) {
	prompt, err := BuildPrompt(fields, dataSchema)
	if err != nil {
		return nil, err
	}

	text, err := m.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	resp, err := ParseMappingResponse(text)
	if err != nil {
		return nil, err
	}

	if m.debugMode {
		log.Printf("[automap] received %d mappings, %d unmapped, %d warnings",
			len(resp.Mappings), len(resp.UnmappedPDFFields), len(resp.Warnings))
	}

	result, err := ConvertMappings(fields, resp)
	if err != nil {
		return nil, err
	}
	reportTruncated(result, fields)
	return result, nil
}

func (m *RemoteMapper) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(messageRequest{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	if m.debugMode {
		log.Printf("[automap] POST %s model=%s prompt=%d bytes", m.endpoint, m.model, len(prompt))
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", pdferrors.WrapError(pdferrors.ErrorTypeUpstream, "mapping service request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", pdferrors.Upstream(resp.StatusCode, string(body))
	}

	var decoded messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", pdferrors.WrapError(pdferrors.ErrorTypeParse, "mapping service returned malformed JSON", err)
	}
	if len(decoded.Content) == 0 {
		return "", pdferrors.NewPipelineError(pdferrors.ErrorTypeParse, "mapping service returned no content")
	}
	return decoded.Content[0].Text, nil
}
