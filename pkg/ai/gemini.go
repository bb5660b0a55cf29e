package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient is a thin chat-completion client over the Gemini
// generateContent HTTP API. The model id is chosen per call so the same
// client serves the primary/fallback pair and the vision variant.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
}

// NewGeminiClientWithBaseURL is used by tests to point the client at a
// local server.
func NewGeminiClientWithBaseURL(apiKey, baseURL string) *GeminiClient {
	c := NewGeminiClient(apiKey)
	c.baseURL = baseURL
	return c
}

// InlineImage is an image part for the vision variant.
type InlineImage struct {
	MimeType string
	Data     []byte
}

// Generate sends a system prompt plus user content to the given model and
// returns the raw text of the first candidate.
func (g *GeminiClient) Generate(ctx context.Context, model, systemPrompt, userText string, image *InlineImage) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, g.apiKey)

	parts := []map[string]interface{}{}
	if userText != "" {
		parts = append(parts, map[string]interface{}{"text": userText})
	}
	if image != nil {
		parts = append(parts, map[string]interface{}{
			"inline_data": map[string]string{
				"mime_type": image.MimeType,
				"data":      base64.StdEncoding.EncodeToString(image.Data),
			},
		})
	}

	payload := map[string]interface{}{
		"system_instruction": map[string]interface{}{
			"parts": []map[string]string{{"text": systemPrompt}},
		},
		"contents": []map[string]interface{}{
			{"parts": parts},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (%s): %s", model, string(respBody))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content (%s)", model)
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}
