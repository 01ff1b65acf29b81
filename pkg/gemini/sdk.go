package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/menta2k/calorie-analyzer/pkg/readiness"
	"github.com/menta2k/calorie-analyzer/pkg/types"
)

// SDKClient performs the same generateContent call through the official Go SDK
type SDKClient struct {
	model      string
	credential readiness.CredentialSource
	options    []option.ClientOption
	logger     *zap.Logger
}

// NewSDKClient creates an SDK-backed client. Extra options (endpoint, HTTP
// client) are passed to genai.NewClient on every call.
func NewSDKClient(credential readiness.CredentialSource, model string, logger *zap.Logger, opts ...option.ClientOption) *SDKClient {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SDKClient{model: model, credential: credential, options: opts, logger: logger}
}

// Model returns the configured model name
func (c *SDKClient) Model() string { return c.model }

// GenerateContent returns the text of the first part of the first candidate
func (c *SDKClient) GenerateContent(ctx context.Context, req types.AnalysisRequest) (string, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(c.credential.Credential())}, c.options...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(c.model)

	format := strings.TrimPrefix(req.Payload.MIMEType(), "image/")
	c.logger.Debug("sending SDK generateContent request",
		zap.String("request_id", req.ID),
		zap.String("model", c.model),
		zap.Int("payload_bytes", req.Payload.Size()))

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt), genai.ImageData(format, req.Payload.Bytes()))
	if err != nil {
		return "", classifySDKError(err)
	}
	return firstText(resp)
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &types.MalformedResponseError{Detail: "no candidates"}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &types.MalformedResponseError{Detail: "candidate has no content"}
	}
	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}
	return "", &types.MalformedResponseError{
		Detail: fmt.Sprintf("first part is %T, not text", candidate.Content.Parts[0]),
	}
}

// classifySDKError maps SDK failures onto NetworkError. Blocked prompts are
// successful calls without usable text.
func classifySDKError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &types.MalformedResponseError{Detail: "response blocked", Err: err}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &types.NetworkError{
			StatusCode: gerr.Code,
			Status:     http.StatusText(gerr.Code),
			Message:    gerr.Message,
			Err:        err,
		}
	}

	var aerr *apierror.APIError
	if errors.As(err, &aerr) && aerr.HTTPCode() > 0 {
		return &types.NetworkError{
			StatusCode: aerr.HTTPCode(),
			Status:     http.StatusText(aerr.HTTPCode()),
			Err:        err,
		}
	}

	return &types.NetworkError{Err: err}
}
