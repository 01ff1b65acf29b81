package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/menta2k/calorie-analyzer/pkg/readiness"
	"github.com/menta2k/calorie-analyzer/pkg/types"
)

const testKey = "test-key-123"

func testRequest() types.AnalysisRequest {
	return types.AnalysisRequest{
		ID:      "req-1",
		Prompt:  "describe this meal",
		Payload: types.NewImagePayload([]byte{0xff, 0xd8, 0xff, 0xd9}, "image/jpeg", 1, 1),
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewClient(readiness.StaticCredential(testKey), Config{BaseURL: server.URL}), &calls
}

func TestGenerateContentRequestShape(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, testKey, r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Contents []struct {
				Parts []map[string]json.RawMessage `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 1)
		require.Len(t, body.Contents[0].Parts, 2)

		var text string
		require.NoError(t, json.Unmarshal(body.Contents[0].Parts[0]["text"], &text))
		assert.Equal(t, "describe this meal", text)

		var inline inlineData
		require.NoError(t, json.Unmarshal(body.Contents[0].Parts[1]["inline_data"], &inline))
		assert.Equal(t, "image/jpeg", inline.MimeType)
		assert.Equal(t, testRequest().Payload.Base64(), inline.Data)

		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"{\"totalCalories\":10}"}]}}]}`)
	})

	text, err := client.GenerateContent(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"totalCalories":10}`, text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateContentErrorStatus(t *testing.T) {
	tests := []struct {
		code    int
		body    string
		message string
	}{
		{http.StatusForbidden, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`, "API key not valid"},
		{http.StatusInternalServerError, `upstream exploded`, ""},
		{http.StatusTooManyRequests, ``, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				io.WriteString(w, tt.body)
			})

			_, err := client.GenerateContent(context.Background(), testRequest())
			var netErr *types.NetworkError
			require.True(t, errors.As(err, &netErr), "got %v", err)
			assert.Equal(t, tt.code, netErr.StatusCode)
			assert.Equal(t, http.StatusText(tt.code), netErr.Status)
			assert.Equal(t, tt.message, netErr.Message)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestGenerateContentMalformed(t *testing.T) {
	bodies := map[string]string{
		"not json":          `<html>oops</html>`,
		"no candidates":     `{}`,
		"empty list":        `{"candidates":[]}`,
		"no content":        `{"candidates":[{"finishReason":"STOP"}]}`,
		"no parts":          `{"candidates":[{"content":{"parts":[]}}]}`,
		"part without text": `{"candidates":[{"content":{"parts":[{"inline_data":{}}]}}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			})
			_, err := client.GenerateContent(context.Background(), testRequest())
			var malformed *types.MalformedResponseError
			assert.True(t, errors.As(err, &malformed), "got %v", err)
		})
	}
}

func TestGenerateContentEmptyTextIsExtractable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`)
	})
	text, err := client.GenerateContent(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestGenerateContentTransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewClient(readiness.StaticCredential(testKey), Config{BaseURL: baseURL})
	_, err := client.GenerateContent(context.Background(), testRequest())

	var netErr *types.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Zero(t, netErr.StatusCode)
	assert.False(t, strings.Contains(err.Error(), testKey), "error leaks key: %v", err)
}

func TestGenerateContentReadsCredentialPerCall(t *testing.T) {
	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.URL.Query().Get("key"))
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer server.Close()

	signal := readiness.NewSignal()
	client := NewClient(signal, Config{BaseURL: server.URL + "/", Model: "gemini-pro-vision"})
	assert.Equal(t, "gemini-pro-vision", client.Model())

	signal.Resolve("late-key")
	_, err := client.GenerateContent(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"late-key"}, keys)
}

func TestClassifySDKError(t *testing.T) {
	var netErr *types.NetworkError

	err := classifySDKError(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 400, Message: "API key not valid"}))
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, 400, netErr.StatusCode)
	assert.Equal(t, "Bad Request", netErr.Status)
	assert.Equal(t, "API key not valid", netErr.Message)

	err = classifySDKError(errors.New("dial tcp: connection refused"))
	require.True(t, errors.As(err, &netErr))
	assert.Zero(t, netErr.StatusCode)

	var malformed *types.MalformedResponseError
	err = classifySDKError(&genai.BlockedError{})
	assert.True(t, errors.As(err, &malformed))
}

func TestFirstText(t *testing.T) {
	text, err := firstText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text("hello")}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	var malformed *types.MalformedResponseError
	_, err = firstText(nil)
	assert.True(t, errors.As(err, &malformed))

	_, err = firstText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})
	assert.True(t, errors.As(err, &malformed))

	_, err = firstText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}},
	})
	assert.True(t, errors.As(err, &malformed))
}
