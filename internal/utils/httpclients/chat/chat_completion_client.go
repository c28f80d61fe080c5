package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"jan-server/services/session-api/internal/utils/platformerrors"
)

// ChatCompletionClient speaks the OpenAI-compatible /chat/completions protocol.
type ChatCompletionClient struct {
	client  *resty.Client
	baseURL string
	name    string
}

func NewChatCompletionClient(client *resty.Client, name, baseURL string) *ChatCompletionClient {
	return &ChatCompletionClient{
		client:  client,
		baseURL: normalizeBaseURL(baseURL),
		name:    name,
	}
}

func (c *ChatCompletionClient) CreateChatCompletion(ctx context.Context, apiKey string, request openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	var respBody openai.ChatCompletionResponse
	var errBody openai.ErrorResponse
	resp, err := c.prepareRequest(ctx, apiKey).
		SetBody(request).
		SetResult(&respBody).
		SetError(&errBody).
		Post(c.endpoint("/chat/completions"))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, fmt.Sprintf("%s: request failed", c.name), err, "56c0e8cf-b92b-4af4-825a-9b41875c8eae")
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, &errBody)
	}
	return &respBody, nil
}

func (c *ChatCompletionClient) prepareRequest(ctx context.Context, apiKey string) *resty.Request {
	req := c.client.R().SetContext(ctx)
	req.SetHeader("Content-Type", "application/json")
	if strings.TrimSpace(apiKey) != "" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	}
	if requestID := platformerrors.RequestIDFromContext(ctx); requestID != "" {
		req.SetHeader("X-Request-Id", requestID)
	}
	return req
}

func (c *ChatCompletionClient) endpoint(path string) string {
	if c.baseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

// errorFromResponse keeps the provider's own message when it sent one.
func (c *ChatCompletionClient) errorFromResponse(ctx context.Context, resp *resty.Response, body *openai.ErrorResponse) error {
	detail := ""
	if body != nil && body.Error != nil && body.Error.Message != "" {
		detail = body.Error.Message
	} else {
		detail = strings.TrimSpace(resp.String())
	}
	message := fmt.Sprintf("%s: provider returned status %d", c.name, resp.StatusCode())
	if detail != "" {
		message = fmt.Sprintf("%s: %s", message, detail)
	}
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, message, nil, "e8d9705b-f341-4e21-b784-cd1fe41dadbb", map[string]any{
		"status": resp.StatusCode(),
	})
}

func normalizeBaseURL(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
