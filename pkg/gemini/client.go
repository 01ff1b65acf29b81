// Package gemini talks to the Google Gemini generateContent endpoint.
package gemini

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
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/calorie-analyzer/pkg/readiness"
	"github.com/menta2k/calorie-analyzer/pkg/types"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash"
	DefaultTimeout = 60 * time.Second

	// maximum error body read for message extraction
	maxErrorBody = 64 * 1024
)

// Config configures the REST client
type Config struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client calls generateContent over plain HTTPS with the credential as the
// key query parameter
type Client struct {
	baseURL    string
	model      string
	credential readiness.CredentialSource
	httpClient *http.Client
	logger     *zap.Logger
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewClient creates a REST client. The credential is read at call time, so a
// key that arrives after construction is still used.
func NewClient(credential readiness.CredentialSource, config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		model:      config.Model,
		credential: credential,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
}

// Model returns the model name used in the endpoint path
func (c *Client) Model() string { return c.model }

// GenerateContent sends the prompt and image in a single request and returns
// candidates[0].content.parts[0].text
func (c *Client) GenerateContent(ctx context.Context, req types.AnalysisRequest) (string, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.credential.Credential()))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending generateContent request",
		zap.String("request_id", req.ID),
		zap.String("model", c.model),
		zap.Int("payload_bytes", req.Payload.Size()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &types.NetworkError{Err: redactURLError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		netErr := &types.NetworkError{
			StatusCode: resp.StatusCode,
			Status:     statusPhrase(resp),
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr errorResponse
		if json.Unmarshal(raw, &apiErr) == nil {
			netErr.Message = apiErr.Error.Message
		}
		c.logger.Warn("generateContent returned error status",
			zap.String("request_id", req.ID),
			zap.Int("status", resp.StatusCode),
			zap.String("message", netErr.Message))
		return "", netErr
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &types.MalformedResponseError{Detail: "response body is not JSON", Err: err}
	}
	return extractText(out)
}

func buildRequest(req types.AnalysisRequest) generateRequest {
	return generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: req.Prompt},
				{InlineData: &inlineData{
					MimeType: req.Payload.MIMEType(),
					Data:     req.Payload.Base64(),
				}},
			},
		}},
	}
}

func extractText(out generateResponse) (string, error) {
	switch {
	case len(out.Candidates) == 0:
		return "", &types.MalformedResponseError{Detail: "no candidates"}
	case out.Candidates[0].Content == nil:
		return "", &types.MalformedResponseError{Detail: "candidate has no content"}
	case len(out.Candidates[0].Content.Parts) == 0:
		return "", &types.MalformedResponseError{Detail: "content has no parts"}
	case out.Candidates[0].Content.Parts[0].Text == nil:
		return "", &types.MalformedResponseError{Detail: "first part has no text"}
	}
	return *out.Candidates[0].Content.Parts[0].Text, nil
}

// statusPhrase strips the numeric prefix net/http puts on resp.Status
func statusPhrase(resp *http.Response) string {
	status := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
	if status == "" {
		return http.StatusText(resp.StatusCode)
	}
	return status
}

// redactURLError drops the request URL, which carries the key, from transport errors
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
