package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient is a Runtime backed by the go-openai SDK. It shares the
// retry policy and error taxonomy of Client.
type OpenAIClient struct {
	client *openai.Client
	apiKey string
	policy retryPolicy
}

// NewOpenAIClient builds an OpenAI runtime. An empty baseURL uses the SDK default.
func NewOpenAIClient(apiKey, baseURL string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OpenAIClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: httpTimeout}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		apiKey: apiKey,
		policy: retryPolicy{attempts: max(retryMax, 1), base: baseDelay, max: maxDelay},
	}
}

// Generate maps req onto a chat completion call.
func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := validateRequest(c.apiKey, req); err != nil {
		return nil, err
	}
	creq := openai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	for _, m := range req.Messages {
		creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == ResponseFormatJSON.Type {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	var resp openai.ChatCompletionResponse
	err := c.policy.run(ctx, func() (time.Duration, error) {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, creq)
		if err == nil {
			return 0, nil
		}
		mapped := mapOpenAIError(err)
		var pe *ProviderError
		if errors.As(mapped, &pe) && pe.Retryable() {
			return pe.RetryAfter, mapped
		}
		return -1, mapped
	})
	if err != nil {
		return nil, err
	}

	out := &GenerateResponse{
		ID:        resp.ID,
		Model:     resp.Model,
		RequestID: resp.Header().Get("X-Request-Id"),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{Message: Message{Role: ch.Message.Role, Content: ch.Message.Content}})
	}
	return out, nil
}

// mapOpenAIError converts SDK errors into the package taxonomy.
func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		if code, ok := apiErr.Code.(string); ok {
			e.Code = code
		}
		return classifyAPIError(e, nil)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		e := &APIError{StatusCode: reqErr.HTTPStatusCode}
		if reqErr.Err != nil {
			e.Message = reqErr.Err.Error()
		}
		return classifyAPIError(e, nil)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return unreachable("", fmt.Errorf("chat completion: %w", err))
}
