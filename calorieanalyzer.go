// Package calorieanalyzer estimates the calories in a food photo with a
// vision-language model.
//
// A photo is scaled down to at most 800x600 and re-encoded as JPEG, the
// analysis waits briefly for an API key to become available, and a single
// request asks the model for the foods it sees, their calories, the
// calculation steps and the exercise needed to burn them. Answers the model
// gets wrong are replaced with a fixed generic estimate instead of failing.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//		"os"
//
//		calorieanalyzer "github.com/menta2k/calorie-analyzer"
//		"github.com/menta2k/calorie-analyzer/pkg/readiness"
//	)
//
//	func main() {
//		ca := calorieanalyzer.New(readiness.StaticCredential(os.Getenv("GEMINI_API_KEY")))
//
//		result, err := ca.AnalyzeFile(context.Background(), "lunch.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		fmt.Print(calorieanalyzer.SerializeForClipboard(result))
//	}
//
// The package is a thin facade over:
//
// 1. Normalizer (pkg/processing): validation, scaling and JPEG encoding
// 2. Readiness (pkg/readiness): bounded wait for the API key
// 3. Analysis (pkg/analysis, pkg/gemini, pkg/ollama, pkg/llamacpp): the model call
// 4. Parser (pkg/parser): model answer to result, with the generic fallback
// 5. Session and presenter (pkg/session, pkg/presenter): UI state and text output
package calorieanalyzer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/menta2k/calorie-analyzer/pkg/analysis"
	"github.com/menta2k/calorie-analyzer/pkg/client"
	"github.com/menta2k/calorie-analyzer/pkg/gemini"
	"github.com/menta2k/calorie-analyzer/pkg/presenter"
	"github.com/menta2k/calorie-analyzer/pkg/processing"
	"github.com/menta2k/calorie-analyzer/pkg/readiness"
	"github.com/menta2k/calorie-analyzer/pkg/session"
	"github.com/menta2k/calorie-analyzer/pkg/types"
)

// Version of the calorie analyzer library
const Version = "1.0.0"

// Options configures NewWithClient. Zero values select the defaults; a nil
// Gate means the backend needs no credential.
type Options struct {
	Normalizer processing.Config
	Gate       readiness.Waiter
	Prompt     string
	Logger     *zap.Logger
}

// CalorieAnalyzer provides a high-level interface for food photo analysis
type CalorieAnalyzer struct {
	normalizer *processing.Normalizer
	analyzer   *analysis.Analyzer
	gate       readiness.Waiter
	logger     *zap.Logger
}

// New creates an analyzer backed by the Gemini REST API with default bounds.
// The credential is polled for up to 3 seconds before each analysis.
func New(credential readiness.CredentialSource) *CalorieAnalyzer {
	return NewWithClient(gemini.NewClient(credential, gemini.Config{}), Options{
		Gate: readiness.New(credential),
	})
}

// NewWithClient creates an analyzer over any vision backend
func NewWithClient(c client.VisionClient, opts Options) *CalorieAnalyzer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &CalorieAnalyzer{
		normalizer: processing.NewNormalizerWithConfig(opts.Normalizer, opts.Logger),
		analyzer: analysis.NewAnalyzer(c, analysis.Config{
			Gate:   opts.Gate,
			Prompt: opts.Prompt,
			Logger: opts.Logger,
		}),
		gate:   opts.Gate,
		logger: opts.Logger,
	}
}

// LoadSource reads an image from a path, an http(s) URL or a data: URI
func (ca *CalorieAnalyzer) LoadSource(ctx context.Context, ref string) (processing.Source, error) {
	return ca.normalizer.LoadSourceSmart(ctx, ref)
}

// NormalizeImage validates and compresses a source image into the payload
// sent to the model
func (ca *CalorieAnalyzer) NormalizeImage(src processing.Source) (types.ImagePayload, error) {
	return ca.normalizer.Normalize(src)
}

// WaitForCredential reports whether the API key is usable within the bounded
// wait. It is always true for backends without a credential.
func (ca *CalorieAnalyzer) WaitForCredential(ctx context.Context) bool {
	if ca.gate == nil {
		return true
	}
	return ca.gate.Wait(ctx)
}

// Analyze performs one analysis of an already normalized payload
func (ca *CalorieAnalyzer) Analyze(ctx context.Context, payload types.ImagePayload) (types.AnalysisResult, error) {
	return ca.analyzer.Analyze(ctx, payload)
}

// AnalyzeFile is a convenience function that loads, normalizes and analyzes
// an image
func (ca *CalorieAnalyzer) AnalyzeFile(ctx context.Context, ref string) (types.AnalysisResult, error) {
	src, err := ca.LoadSource(ctx, ref)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("failed to load image: %w", err)
	}

	payload, err := ca.NormalizeImage(src)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("image validation failed: %w", err)
	}

	return ca.Analyze(ctx, payload)
}

// NewSession returns an idle session bound to this analyzer
func (ca *CalorieAnalyzer) NewSession() *session.Session {
	return session.New(ca.analyzer, ca.logger)
}

// SerializeForClipboard renders the plain-text export of a result
func SerializeForClipboard(result types.AnalysisResult) string {
	return presenter.ClipboardText(result)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
