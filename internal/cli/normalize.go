package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/menta2k/calorie-analyzer/internal/utils"
	"github.com/menta2k/calorie-analyzer/pkg/processing"
)

func newNormalizeCmd(a *app) *cobra.Command {
	var output string
	var printDataURI bool

	cmd := &cobra.Command{
		Use:   "normalize <image|url>",
		Short: "Show the image exactly as it would be sent to the model",
		Long: `Normalize validates and compresses an image the same way analyze does, without
calling any model. Use it to check size limits or to inspect the JPEG payload.`,
		Example: `  calorie-analyzer normalize dinner.jpg -o payload.jpg
  calorie-analyzer normalize dinner.png --data-uri`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			normalizer := processing.NewNormalizerWithConfig(a.cfg.NormalizerSettings(), a.logger)
			src, err := normalizer.LoadSourceSmart(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			payload, err := normalizer.Normalize(src)
			if err != nil {
				return a.failure(err)
			}

			out := cmd.OutOrStdout()
			if printDataURI {
				fmt.Fprintln(out, payload.DataURI())
				return nil
			}

			fmt.Fprintf(out, "source:  %s (%s, %s)\n", src.Name, src.MIMEType, utils.FormatFileSize(src.Size()))
			fmt.Fprintf(out, "payload: %dx%d %s, %s\n", payload.Width(), payload.Height(), payload.MIMEType(), utils.FormatFileSize(int64(payload.Size())))

			if output != "" {
				if err := os.WriteFile(output, payload.Bytes(), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				fmt.Fprintf(out, "wrote %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the JPEG payload to this file")
	cmd.Flags().BoolVar(&printDataURI, "data-uri", false, "print the payload as a data URI")

	return cmd
}
