package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/cue/internal/audio"
	"github.com/MikeSquared-Agency/cue/internal/config"
	"github.com/MikeSquared-Agency/cue/internal/pipeline"
	"github.com/MikeSquared-Agency/cue/internal/store"
)

type listenOptions struct {
	file        string
	rate        int
	realtime    bool
	realtimeSet bool
	partials    bool
}

func newListenCmd() *cobra.Command {
	var opts listenOptions

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Transcribe audio from stdin or a WAV file and answer the questions in it",
		Long: `Transcribe audio and answer the technical questions in it.

Without --file, raw little-endian PCM16 mono audio is read from stdin at
--rate. Input at other rates is resampled to 16 kHz.

Examples:
  arecord -q -f S16_LE -r 16000 -c 1 -t raw | cue listen
  cue listen --file interview.wav --realtime`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.realtimeSet = cmd.Flags().Changed("realtime")
			return runListen(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read a WAV file instead of stdin")
	cmd.Flags().IntVar(&opts.rate, "rate", audio.SampleRate, "sample rate of stdin audio")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", false, "pace file input at its natural rate (default from CUE_REALTIME)")
	cmd.Flags().BoolVar(&opts.partials, "partials", false, "print partial transcripts")
	return cmd
}

func runListen(ctx context.Context, out io.Writer, opts listenOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel, os.Stderr)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !opts.realtimeSet {
		opts.realtime = cfg.Realtime
	}

	src, err := openSource(opts)
	if err != nil {
		return err
	}

	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	pipe, err := pipeline.New(comps, nil, logger, pipelineOptions(cfg))
	if err != nil {
		return err
	}
	pipe.AddObserver(newPrinter(out, opts.partials))

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
		pipe.AddObserver(store.NewRecorder(repo, logger))
	}

	// Answers outlive the capture so the last question still gets one when
	// the input ends on its own.
	runCtx, stopRun := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() {
		runDone <- pipe.Run(runCtx)
	}()

	listenCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = pipe.Listen(listenCtx, src)
	if listenCtx.Err() == nil {
		pipe.WaitAnswers()
	}
	stopRun()
	<-runDone
	return err
}

func openSource(opts listenOptions) (audio.Source, error) {
	if opts.file == "" {
		return audio.NewPCMSource(os.Stdin, opts.rate), nil
	}
	wav, err := audio.OpenWAV(opts.file)
	if err != nil {
		return nil, err
	}
	if opts.realtime {
		return audio.NewPacedSource(wav), nil
	}
	return wav, nil
}
