// Package analysis runs one food-photo analysis: readiness wait, a single
// model call, and parsing of the model's answer.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menta2k/calorie-analyzer/pkg/client"
	"github.com/menta2k/calorie-analyzer/pkg/parser"
	"github.com/menta2k/calorie-analyzer/pkg/readiness"
	"github.com/menta2k/calorie-analyzer/pkg/types"
)

// Config configures an Analyzer. A nil Gate skips the readiness wait, for
// backends that need no credential.
type Config struct {
	Gate   readiness.Waiter
	Prompt string
	Logger *zap.Logger
}

// Analyzer sends a normalized image to a vision backend and turns the answer
// into an AnalysisResult
type Analyzer struct {
	client client.VisionClient
	gate   readiness.Waiter
	parser *parser.Parser
	prompt string
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer over the given backend
func NewAnalyzer(c client.VisionClient, config Config) *Analyzer {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Analyzer{
		client: c,
		gate:   config.Gate,
		parser: parser.New(config.Logger),
		prompt: config.Prompt,
		logger: config.Logger,
	}
}

// Analyze performs one analysis attempt. Errors are *types.NoImageError,
// *types.ConfigurationError, *types.NetworkError or
// *types.MalformedResponseError. An unparseable model answer is not an error:
// it yields the fallback result.
func (a *Analyzer) Analyze(ctx context.Context, payload types.ImagePayload) (types.AnalysisResult, error) {
	if payload.IsEmpty() {
		return types.AnalysisResult{}, &types.NoImageError{}
	}

	if a.gate != nil && !a.gate.Wait(ctx) {
		return types.AnalysisResult{}, &types.ConfigurationError{Detail: "credential missing or placeholder after readiness wait"}
	}

	req := types.AnalysisRequest{
		ID:      uuid.NewString(),
		Prompt:  a.prompt,
		Payload: payload,
	}
	logger := a.logger.With(zap.String("request_id", req.ID))
	logger.Info("starting analysis",
		zap.Int("payload_bytes", payload.Size()),
		zap.Int("width", payload.Width()),
		zap.Int("height", payload.Height()))

	start := time.Now()
	text, err := a.client.GenerateContent(ctx, req)
	if err != nil {
		logger.Error("analysis request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return types.AnalysisResult{}, err
	}

	result := a.parser.Parse(text)
	logger.Info("analysis complete",
		zap.Stringer("source", result.Source),
		zap.Int("foods", len(result.Foods)),
		zap.Float64("total_calories", result.TotalCalories),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}
