package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/cue/internal/api"
	"github.com/MikeSquared-Agency/cue/internal/config"
	"github.com/MikeSquared-Agency/cue/internal/hermes"
	"github.com/MikeSquared-Agency/cue/internal/metrics"
	"github.com/MikeSquared-Agency/cue/internal/pipeline"
	"github.com/MikeSquared-Agency/cue/internal/slack"
	"github.com/MikeSquared-Agency/cue/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the service: HTTP API, websocket audio ingest, NATS and persistence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel, os.Stdout)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("cue starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	m := metrics.New()
	pipe, err := pipeline.New(comps, m, logger, pipelineOptions(cfg))
	if err != nil {
		return err
	}

	hub := api.NewHub(logger)
	pipe.AddObserver(hub)

	// Persistence (optional)
	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
		pipe.AddObserver(store.NewRecorder(repo, logger))
	} else {
		logger.Warn("no DATABASE_URL or CUE_DATA_DIR, exchanges will not be persisted")
	}

	// NATS/Hermes (optional)
	if cfg.NatsURL != "" {
		hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer hermesClient.Close()
		logger.Info("NATS connected", "url", cfg.NatsURL)

		pipe.AddObserver(hermes.NewPublisher(hermesClient, logger))
		if err := hermes.SubscribeControl(hermesClient, pipe, logger); err != nil {
			return fmt.Errorf("subscribe control subjects: %w", err)
		}
		if err := hermesClient.Publish(hermes.SubjectAgentRegistered, map[string]any{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"port":       cfg.Port,
			"session_id": pipe.SessionID(),
		}); err != nil {
			logger.Warn("failed to publish registration", "error", err)
		}
	}

	// Slack mirror (optional)
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		poster := slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)
		pipe.AddObserver(poster)
		defer poster.Wait()
		logger.Info("slack poster ready", "channel", cfg.SlackChannel)
	}

	srv := api.NewServer(cfg.Port, cfg.APIToken, api.Deps{
		Session:   pipe,
		Exchanges: repo,
		Hub:       hub,
		Metrics:   m.Handler(),
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipe.Run(gctx)
	})
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig.String())
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	logger.Info("cue ready", "port", cfg.Port, "session_id", pipe.SessionID())
	err = g.Wait()
	logger.Info("cue stopped")
	return err
}
