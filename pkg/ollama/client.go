package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/menta2k/calorie-analyzer/pkg/types"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "llava"
)

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL, model string, logger *zap.Logger) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Parse the provided URL
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs a scheme and host", ollamaURL)
	}

	// Create base URL from the provided URL (removing path like /api/chat)
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	// Create client with the specified URL, ignoring environment
	client := api.NewClient(baseURL, http.DefaultClient)

	return &Client{client: client, model: model, logger: logger}, nil
}

// Model returns the configured model name
func (c *Client) Model() string { return c.model }

// GenerateContent sends one non-streaming chat request carrying the image and
// returns the assistant message
func (c *Client) GenerateContent(ctx context.Context, req types.AnalysisRequest) (string, error) {
	// Local vision models on CPU can take minutes
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	streamFalse := false
	chatReq := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: req.Prompt,
				Images:  []api.ImageData{api.ImageData(req.Payload.Bytes())},
			},
		},
		Stream:  &streamFalse,
		Options: modelOptions(c.model),
	}

	c.logger.Debug("sending ollama chat request",
		zap.String("request_id", req.ID),
		zap.String("model", c.model),
		zap.Int("payload_bytes", req.Payload.Size()))

	// an assistant message with empty content is still an answer for the parser
	var responseContent string
	var hasMessage bool
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		if resp.Message.Role != "" || resp.Message.Content != "" {
			hasMessage = true
		}
		responseContent += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", classifyError(err)
	}

	if !hasMessage {
		return "", &types.MalformedResponseError{Detail: "no message in ollama response"}
	}
	return responseContent, nil
}

// modelOptions tunes sampling for models that are known to ramble
func modelOptions(model string) map[string]any {
	options := map[string]any{}
	modelLower := strings.ToLower(model)
	if strings.Contains(modelLower, "minicpm-v4") ||
		strings.Contains(modelLower, "minicpm-v-4") ||
		strings.Contains(modelLower, "minicpmv4") {
		options["temperature"] = 0.7
		options["top_p"] = 0.8
		options["num_ctx"] = 4096
	}
	return options
}

func classifyError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &types.NetworkError{
			StatusCode: statusErr.StatusCode,
			Status:     http.StatusText(statusErr.StatusCode),
			Message:    statusErr.ErrorMessage,
			Err:        err,
		}
	}
	return &types.NetworkError{Err: fmt.Errorf("ollama chat error: %w", err)}
}
