package cli

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/menta2k/calorie-analyzer/internal/config"
	"github.com/menta2k/calorie-analyzer/pkg/analysis"
	"github.com/menta2k/calorie-analyzer/pkg/client"
	"github.com/menta2k/calorie-analyzer/pkg/gemini"
	"github.com/menta2k/calorie-analyzer/pkg/llamacpp"
	"github.com/menta2k/calorie-analyzer/pkg/ollama"
	"github.com/menta2k/calorie-analyzer/pkg/readiness"
)

// newVisionClient builds the backend named by cfg.Provider
func newVisionClient(cfg *config.Config, credential readiness.CredentialSource, logger *zap.Logger) (client.VisionClient, error) {
	p := cfg.Provider
	switch p.Name {
	case config.ProviderGemini:
		return gemini.NewClient(credential, gemini.Config{
			BaseURL:    p.URL,
			Model:      p.Model,
			HTTPClient: &http.Client{Timeout: cfg.Timeout()},
			Logger:     logger,
		}), nil
	case config.ProviderGeminiSDK:
		var opts []option.ClientOption
		if p.URL != "" {
			opts = append(opts, option.WithEndpoint(p.URL))
		}
		return gemini.NewSDKClient(credential, p.Model, logger, opts...), nil
	case config.ProviderOllama:
		c, err := ollama.NewClient(p.URL, p.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case config.ProviderLlamaCpp:
		c, err := llamacpp.NewClient(p.URL, p.Model, credential, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (use %s, %s, %s or %s)", p.Name,
			config.ProviderGemini, config.ProviderGeminiSDK, config.ProviderOllama, config.ProviderLlamaCpp)
	}
}

// newAnalyzer wires the backend, the credential gate and the prompt. Only the
// Gemini providers wait for a key.
func (a *app) newAnalyzer() (*analysis.Analyzer, error) {
	vc, err := newVisionClient(a.cfg, a.signal, a.logger)
	if err != nil {
		return nil, err
	}

	var gate readiness.Waiter
	if a.cfg.NeedsCredential() {
		r := a.cfg.ReadinessSettings()
		gate = a.signal.Waiter(r.Interval * time.Duration(r.MaxAttempts))
	}

	return analysis.NewAnalyzer(vc, analysis.Config{
		Gate:   gate,
		Prompt: a.cfg.Prompt,
		Logger: a.logger,
	}), nil
}
