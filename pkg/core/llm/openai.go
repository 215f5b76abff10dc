package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	openAIEndpoint = "https://api.openai.com/v1/chat/completions"
	openAITimeout  = 30 * time.Second
	openAIRetries  = 2
	retryBackoff   = 2 * time.Second
)

// OpenAIProvider calls the OpenAI chat-completions API. The verifier's
// default model is gpt-4o with low temperature for conservative judgments.
type OpenAIProvider struct {
	APIKey string // falls back to OPENAI_API_KEY when empty
	Model  string // defaults to "gpt-4o"
}

var _ Provider = (*OpenAIProvider)(nil)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateResponse sends one prompt and returns the completion text.
// Transient failures (transport error, 429, 5xx) are retried a capped number
// of times with a fixed backoff.
func (p *OpenAIProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := p.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if val, ok := options["api_key"].(string); ok && val != "" {
		apiKey = val
	}
	if apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY_MISSING: no API key configured")
	}

	model := p.Model
	if model == "" {
		model = "gpt-4o"
	}
	if val, ok := options["model"].(string); ok && val != "" {
		model = val
	}

	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   1000,
	}

	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("OPENAI_MARSHAL_ERROR: %v", err)
	}

	client := &http.Client{Timeout: openAITimeout}

	var lastErr error
	for attempt := 0; attempt <= openAIRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIEndpoint, bytes.NewReader(jsonBytes))
		if err != nil {
			return "", fmt.Errorf("OPENAI_REQ_CREATE_ERROR: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)

		res, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("OPENAI_API_CALL_ERROR: %v", err)
			continue
		}

		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("OPENAI_READ_BODY_ERROR: %v", err)
			continue
		}

		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			lastErr = fmt.Errorf("OPENAI_API_ERROR: status=%d body=%s", res.StatusCode, string(body))
			continue
		}
		if res.StatusCode != http.StatusOK {
			return "", fmt.Errorf("OPENAI_API_ERROR: status=%d body=%s", res.StatusCode, string(body))
		}

		var response chatResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return "", fmt.Errorf("OPENAI_UNMARSHAL_ERROR: %v", err)
		}
		if len(response.Choices) == 0 {
			return "", fmt.Errorf("OPENAI_NO_CHOICES: %s", string(body))
		}
		return response.Choices[0].Message.Content, nil
	}

	return "", lastErr
}
