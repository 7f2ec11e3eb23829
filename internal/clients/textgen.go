// internal/clients/textgen.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"querydesk/internal/common/logger"
)

var (
	ErrTextGenTimeout = errors.New("TEXTGEN_TIMEOUT")
	ErrTextGenFailed  = errors.New("TEXTGEN_FAILED")
)

// TextGenClient calls the GenAI text-generation service.
type TextGenClient struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	timeout    time.Duration
	maxRetries int
	logger     logger.Logger
}

type textGenRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type textGenResponse struct {
	Text string `json:"text"`
}

func NewTextGenClient(baseURL, apiKey, model string, timeout time.Duration, maxRetries int, log logger.Logger) *TextGenClient {
	if log == nil {
		log = logger.Nop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &TextGenClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			// Rely only on per-request context deadlines.
		},
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     log.WithFields(map[string]interface{}{"client": "textgen"}),
	}
}

func (c *TextGenClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, _ := json.Marshal(textGenRequest{
		Prompt:      prompt,
		Model:       c.model,
		MaxTokens:   1024,
		Temperature: 0.2,
	})

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ErrTextGenTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ai/generate", bytes.NewBuffer(body))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrTextGenFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ErrTextGenTimeout
			}
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}

		var parsed textGenResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("decode error: %v", err)
			continue
		}

		if strings.TrimSpace(parsed.Text) == "" {
			return "", fmt.Errorf("%w: empty completion", ErrTextGenFailed)
		}
		return parsed.Text, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return "", ErrTextGenTimeout
	}
	return "", fmt.Errorf("%w: %v", ErrTextGenFailed, lastErr)
}
