package providers

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

	"github.com/ibeckermayer/xblueprint/internal/config"
)

// DefaultGeminiBaseURL is the public Generative Language endpoint
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiCaller calls the Gemini generateContent REST endpoint directly,
// so the API version can be chosen per call.
type GeminiCaller struct {
	apiKey  string
	baseURL string
	params  Params
	client  *http.Client
}

// NewGeminiCaller creates a caller. Timeouts come from the call context.
func NewGeminiCaller(apiKey, baseURL string, params Params, client *http.Client) *GeminiCaller {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &GeminiCaller{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		params:  params,
		client:  client,
	}
}

func (g *GeminiCaller) Name() string { return config.ProviderGemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Call posts the prompt to {base}/{version}/models/{model}:generateContent
func (g *GeminiCaller) Call(ctx context.Context, req Request) (string, error) {
	if g.apiKey == "" {
		return "", ErrMissingKey
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.params.Temperature,
			TopP:            g.params.TopP,
			MaxOutputTokens: g.params.MaxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent?%s",
		g.baseURL, url.PathEscape(req.Version), url.PathEscape(req.Model),
		url.Values{"key": {g.apiKey}}.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// url.Error carries the key in the query string
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("failed to call Gemini API: %w", ctxErr)
		}
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return "", fmt.Errorf("failed to call Gemini API: %w", uerr.Err)
		}
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed geminiResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		se := &StatusError{Provider: g.Name(), StatusCode: resp.StatusCode}
		if parsed.Error != nil {
			se.Message = parsed.Error.Message
			if resp.StatusCode == http.StatusOK && parsed.Error.Code != 0 {
				se.StatusCode = parsed.Error.Code
			}
		}
		return "", se
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to parse Gemini response: %w", decodeErr)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 ||
		parsed.Candidates[0].Content.Parts[0].Text == "" {
		return "", ErrEmptyResponse
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
