// Command analyze runs one transcript through the analysis pipeline and
// prints the result as JSON.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"meeting-insights-go/internal/app"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/export"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/processor"
)

type options struct {
	maxChunkSize int
	mock         bool
	xlsx         string
	directory    string
	url          string
}

func newRootCmd(cfg config.Config) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Extract summary, decisions and tasks from a meeting transcript",
		Long: `Analyze reads a transcript from file (or stdin when no file is given),
sends it through the extraction pipeline and prints the analysis as JSON.

Use --url to download the transcript instead and --xlsx to also write the
task list as a spreadsheet.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.maxChunkSize > 0 {
				cfg.Pipeline.MaxChunkSize = opts.maxChunkSize
			}
			if opts.mock {
				cfg.Oracle.UseMock = true
			}
			if opts.directory != "" {
				cfg.Directory.Path = opts.directory
			}

			req := processor.Request{TranscriptURL: opts.url}
			if opts.url != "" && len(args) > 0 {
				return fmt.Errorf("pass either a file or --url, not both")
			}
			if opts.url == "" {
				text, err := readInput(cmd.InOrStdin(), args)
				if err != nil {
					return err
				}
				req.Text = text
			}

			log := logger.New(cfg.Logging.Level, cfg.Logging.Environment)
			log.Logger.SetOutput(cmd.ErrOrStderr())

			a, err := app.Build(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.Analyze(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			if opts.xlsx != "" {
				if err := writeXLSX(opts.xlsx, res); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().IntVar(&opts.maxChunkSize, "max-chunk-size", 0, "split transcripts longer than this many characters")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "use the offline mock oracle")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "also write the tasks to this .xlsx file")
	cmd.Flags().StringVar(&opts.directory, "directory", "", "team roster workbook used to resolve owners")
	cmd.Flags().StringVar(&opts.url, "url", "", "download the transcript from this URL")
	return cmd
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(b), nil
}

func writeXLSX(path string, res processor.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteTasks(f, res.Record); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
