package generate

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
)

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("generation API key not configured")
	// ErrEmptyReply is returned when the API answered without any text.
	ErrEmptyReply = errors.New("no text content in response")
)

// APIError is returned for non-200 answers and error payloads from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return "API error: " + e.Message
}

// Message is one chat turn sent to the API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator performs text generation via an OpenAI-compatible API.
type Generator struct {
	baseURL     string
	apiKey      string
	model       string
	apiType     string // "responses" or "chat_completions"
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewGenerator creates a generator. A zero timeout selects 30 seconds.
func NewGenerator(baseURL, apiKey, model, apiType string, maxTokens int, temperature float64, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		apiType:     apiType,
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// Complete sends a one-shot request with no prior turns.
func (g *Generator) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return g.send(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	})
}

// Converse sends the request together with the conversation's prior turns.
// On success the user message and the reply are appended to conv.
func (g *Generator) Converse(ctx context.Context, conv *Conversation, systemPrompt, userMessage string) (string, error) {
	history := conv.Messages()
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: userMessage})

	reply, err := g.send(ctx, messages)
	if err != nil {
		return "", err
	}
	conv.Append(userMessage, reply)
	return reply, nil
}

func (g *Generator) send(ctx context.Context, messages []Message) (string, error) {
	if g.apiKey == "" {
		return "", ErrNotConfigured
	}
	var (
		text string
		err  error
	)
	if g.apiType == "chat_completions" {
		text, err = g.generateChatCompletions(ctx, messages)
	} else {
		text, err = g.generateResponses(ctx, messages)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// --- Responses API ---

type responsesRequest struct {
	Model       string    `json:"model"`
	Input       []Message `json:"input"`
	MaxTokens   int       `json:"max_output_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type responsesResponse struct {
	Output []responsesOutput `json:"output"`
	Error  *apiError         `json:"error,omitempty"`
}

type responsesOutput struct {
	Type    string             `json:"type"`
	Content []responsesContent `json:"content,omitempty"`
}

type responsesContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (g *Generator) generateResponses(ctx context.Context, messages []Message) (string, error) {
	reqBody := responsesRequest{
		Model:       g.model,
		Input:       messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	body, err := g.post(ctx, "/responses", reqBody)
	if err != nil {
		return "", err
	}

	var result responsesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}

	if result.Error != nil {
		return "", &APIError{Message: result.Error.Message}
	}

	for _, out := range result.Output {
		if out.Type == "message" {
			for _, c := range out.Content {
				if c.Type == "output_text" {
					return c.Text, nil
				}
			}
		}
	}

	return "", ErrEmptyReply
}

// --- Chat Completions API ---

type chatCompletionsRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatCompletionsResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message Message `json:"message"`
}

func (g *Generator) generateChatCompletions(ctx context.Context, messages []Message) (string, error) {
	reqBody := chatCompletionsRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	body, err := g.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var result chatCompletionsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}

	if result.Error != nil {
		return "", &APIError{Message: result.Error.Message}
	}

	if len(result.Choices) == 0 {
		return "", ErrEmptyReply
	}

	return result.Choices[0].Message.Content, nil
}

// post sends a JSON body and returns the raw response body of a 200 answer.
func (g *Generator) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return body, nil
}
