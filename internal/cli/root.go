// Package cli implements the calorie-analyzer command line
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menta2k/calorie-analyzer/internal/config"
	"github.com/menta2k/calorie-analyzer/internal/logging"
	"github.com/menta2k/calorie-analyzer/pkg/presenter"
	"github.com/menta2k/calorie-analyzer/pkg/readiness"
)

// app is the state shared by all subcommands once the root pre-run has loaded
// the configuration
type app struct {
	configPath string
	debug      bool

	cfg    *config.Config
	loaded bool
	logger *zap.Logger
	signal *readiness.Signal
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "calorie-analyzer",
		Short: "Estimate the calories in a food photo with a vision model",
		Long: `Calorie Analyzer sends a food photo to a vision-language model and prints the
recognized foods, an estimated calorie total, how it was calculated, and how much
exercise burns it off.

The default backend is the Gemini API (set GEMINI_API_KEY or provider.api_key).
Local models are supported through Ollama and llama.cpp servers.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.config/calorie-analyzer/config.yaml)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "verbose logging and diagnostics in error messages")

	cmd.AddCommand(newAnalyzeCmd(a))
	cmd.AddCommand(newNormalizeCmd(a))
	cmd.AddCommand(newConfigCmd(a))

	return cmd
}

// load reads the config file, .env and environment, then resolves the
// credential signal the analysis gate waits on
func (a *app) load() error {
	cfg, loaded, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.loaded = loaded
	a.logger = logging.New(cfg.Debug)
	a.signal = readiness.NewSignal()
	a.signal.Resolve(cfg.Provider.APIKey)

	a.logger.Debug("configuration loaded",
		zap.Bool("config_loaded", loaded),
		zap.String("config_path", a.resolvedConfigPath()),
		zap.String("provider", cfg.Provider.Name),
		zap.Bool("credential_present", readiness.IsUsable(cfg.Provider.APIKey)))
	return nil
}

func (a *app) resolvedConfigPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.GetConfigPath()
}

// useProvider switches the loaded configuration to another backend. Provider
// settings from the file are dropped, except that the key and model carry
// over between the two Gemini providers. Environment overrides for the new
// provider are applied again.
func (a *app) useProvider(name string) error {
	if name == "" || name == a.cfg.Provider.Name {
		return nil
	}

	prev := a.cfg.Provider
	a.cfg.Provider = config.ProviderConfig{
		Name:           name,
		APIKey:         readiness.PlaceholderCredential,
		TimeoutSeconds: prev.TimeoutSeconds,
	}
	if isGemini(prev.Name) && isGemini(name) {
		a.cfg.Provider.APIKey = prev.APIKey
		a.cfg.Provider.Model = prev.Model
	}
	a.cfg.ApplyProviderEnv()
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.signal = readiness.NewSignal()
	a.signal.Resolve(a.cfg.Provider.APIKey)
	return nil
}

func (a *app) diagnostics() presenter.Diagnostics {
	return presenter.Diagnostics{
		Debug:             a.cfg.Debug,
		CredentialPresent: readiness.IsUsable(a.cfg.Provider.APIKey),
		ConfigLoaded:      a.loaded,
		ConfigPath:        a.resolvedConfigPath(),
		DeviceClass:       presenter.DeviceClass(),
	}
}

func isGemini(provider string) bool {
	return provider == config.ProviderGemini || provider == config.ProviderGeminiSDK
}
