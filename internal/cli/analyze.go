package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menta2k/calorie-analyzer/pkg/presenter"
	"github.com/menta2k/calorie-analyzer/pkg/processing"
	"github.com/menta2k/calorie-analyzer/pkg/session"
	"github.com/menta2k/calorie-analyzer/pkg/types"
)

// writeClipboard is replaced in tests
var writeClipboard = func(text string) error {
	if clipboard.Unsupported {
		return errors.New("no clipboard utility available")
	}
	return clipboard.WriteAll(text)
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var jsonOutput bool
	var copyResult bool
	var provider string
	var model string

	cmd := &cobra.Command{
		Use:   "analyze <image|url|data-uri>",
		Short: "Estimate the calories in a food photo",
		Long: `Analyze loads a food photo from disk, an http(s) URL or a data: URI, scales it down to at
most 800x600 JPEG, and asks the configured vision model for the foods it sees,
their calories, and the exercise needed to burn them.

If the model's answer cannot be read, a generic 300 kcal estimate is shown and
labelled as such.`,
		Example: `  # Analyze a photo with Gemini (GEMINI_API_KEY from the environment or .env)
  calorie-analyzer analyze lunch.jpg

  # Use a local llama.cpp server and print JSON
  calorie-analyzer analyze lunch.jpg --provider llamacpp --json

  # Copy the summary to the clipboard
  calorie-analyzer analyze https://example.com/bibimbap.png --copy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.useProvider(provider); err != nil {
				return err
			}
			if model != "" {
				a.cfg.Provider.Model = model
			}
			return a.runAnalyze(cmd, args[0], jsonOutput, copyResult)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&copyResult, "copy", false, "copy the result summary to the clipboard")
	cmd.Flags().StringVar(&provider, "provider", "", "vision backend: gemini, gemini-sdk, ollama or llamacpp (defaults to the config)")
	cmd.Flags().StringVar(&model, "model", "", "model name (defaults to the provider's default)")

	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, ref string, jsonOutput, copyResult bool) error {
	ctx := cmd.Context()

	analyzer, err := a.newAnalyzer()
	if err != nil {
		return err
	}

	sess := session.New(analyzer, a.logger)
	onChange := func(s session.Snapshot) {
		a.logger.Debug("session state changed",
			zap.Stringer("state", s.State),
			zap.Uint64("generation", s.Generation))
	}
	if err := sess.Subscribe(onChange); err != nil {
		return err
	}
	defer func() { _ = sess.Unsubscribe(onChange) }()

	normalizer := processing.NewNormalizerWithConfig(a.cfg.NormalizerSettings(), a.logger)
	src, err := normalizer.LoadSourceSmart(ctx, ref)
	if err != nil {
		return err
	}

	payload, err := normalizer.Normalize(src)
	if err != nil {
		sess.Fail(err)
		return a.failure(err)
	}
	if err := sess.Stage(payload); err != nil {
		return a.failure(err)
	}

	if !jsonOutput {
		fmt.Fprintln(cmd.ErrOrStderr(), "🔍 AI가 음식을 분석하고 있습니다...")
	}

	result, err := sess.Analyze(ctx)
	if err != nil {
		return a.failure(err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		err = presenter.RenderJSON(out, result)
	} else {
		err = presenter.Render(out, result)
	}
	if err != nil {
		return err
	}

	if copyResult {
		copyToClipboard(cmd.ErrOrStderr(), result, a.logger)
	}
	return nil
}

// failure turns an analysis error into the user-facing message
func (a *app) failure(err error) error {
	a.logger.Debug("analysis failed", zap.Error(err))
	return errors.New(presenter.ErrorMessage(err, a.diagnostics()))
}

// copyToClipboard writes the summary to the system clipboard, printing it
// instead when no clipboard is available
func copyToClipboard(w io.Writer, result types.AnalysisResult, logger *zap.Logger) {
	text := presenter.ClipboardText(result)
	if err := writeClipboard(text); err != nil {
		logger.Warn("clipboard copy failed", zap.Error(err))
		fmt.Fprintln(w, presenter.MsgCopyFailed)
		fmt.Fprint(w, text)
		return
	}
	fmt.Fprintln(w, presenter.MsgCopied)
}
