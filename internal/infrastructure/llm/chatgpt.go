package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"NewsScanner/internal/config"
	"NewsScanner/internal/ports"
)

// ChatGPTClient implements ports.LabelModel backed by OpenAI-compatible APIs.
// The model is asked for a JSON object mapping each candidate label to a probability.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

var _ ports.LabelModel = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig, mlCfg config.MLConfig) (*ChatGPTClient, error) {
	if cfg.APIKey == "" || cfg.Endpoint == "" || cfg.Model == "" {
		return nil, errors.New("chatgpt client misconfigured")
	}

	timeout := mlCfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if mlCfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(mlCfg.RequestsPerSecond), 1)
	}

	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      limiter,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify asks the chat model for a label distribution of the headline.
func (c *ChatGPTClient) Classify(ctx context.Context, text string, labels []string) (ports.Distribution, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	userPrompt, err := json.Marshal(map[string]any{"headline": text, "labels": labels})
	if err != nil {
		return nil, fmt.Errorf("marshal prompt: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"model":           c.model,
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: string(userPrompt)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify headline: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("chatgpt returned no choices")
	}

	return parseDistribution(parsed.Choices[0].Message.Content, labels)
}

// parseDistribution keeps candidate labels only; the scoring engine renormalizes.
func parseDistribution(content string, labels []string) (ports.Distribution, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw map[string]float64
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, fmt.Errorf("parse label scores: %w", err)
	}

	dist := make(ports.Distribution, len(labels))
	for _, label := range labels {
		if p, ok := raw[label]; ok {
			dist[label] = p
		}
	}
	if len(dist) == 0 {
		return nil, errors.New("chatgpt scored none of the candidate labels")
	}
	return dist, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You classify news headlines. Reply with a JSON object mapping each label to a probability."
	}
	return prompt
}
