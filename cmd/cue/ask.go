package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/config"
	"github.com/MikeSquared-Agency/cue/internal/llm"
	"github.com/MikeSquared-Agency/cue/internal/pipeline"
)

func newAskCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question, technical or not",
		Long: `Answer one question synchronously with the configured answer backend.

Examples:
  cue ask "How would you implement a debounce function in JavaScript?"
  CUE_ANSWER_BACKEND=mock cue ask --json "What is a React hook?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func runAsk(ctx context.Context, out io.Writer, question string, asJSON bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel, os.Stderr)
	if err := cfg.ValidateAnswer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	gen, err := llm.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create answer backend: %w", err)
	}
	pipe, err := pipeline.New(pipeline.Components{Generator: gen}, nil, logger, pipelineOptions(cfg))
	if err != nil {
		return err
	}

	res, askErr := pipe.Ask(ctx, question)
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		newPrinter(out, false).printAnswer(res)
	}
	if askErr != nil {
		return fmt.Errorf("generate answer: %w", askErr)
	}
	return nil
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <text>",
		Short: "Classify text the way a finalized transcript is classified, as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := analyzer.New().Analyze(strings.Join(args, " "))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a)
		},
	}
}
