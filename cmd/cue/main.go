// Command cue listens to a technical interview, picks out the questions and
// drafts answers for them.
//
// Usage:
//
//	cue serve                      run the service (HTTP API, NATS, persistence)
//	cue listen [--file x.wav]      transcribe stdin or a WAV file in the terminal
//	cue ask "question"             answer one question
//	cue analyze "text"             print the question analysis as JSON
//
// Configuration comes from the environment, an optional .env file and the
// YAML file named by CUE_CONFIG.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "cue",
		Short:         "Live interview question assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(newServeCmd(), newListenCmd(), newAskCmd(), newAnalyzeCmd())
	return root
}

// setupLogging installs the default JSON logger. Terminal commands log to
// stderr so their stdout stays readable.
func setupLogging(level string, out io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
