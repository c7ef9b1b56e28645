package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/cue/internal/config"
	"github.com/MikeSquared-Agency/cue/internal/llm"
	"github.com/MikeSquared-Agency/cue/internal/pipeline"
	"github.com/MikeSquared-Agency/cue/internal/store"
	"github.com/MikeSquared-Agency/cue/internal/transcription"
)

func buildComponents(ctx context.Context, cfg config.Config, logger *slog.Logger) (pipeline.Components, error) {
	gen, err := llm.New(ctx, cfg)
	if err != nil {
		return pipeline.Components{}, fmt.Errorf("create answer backend: %w", err)
	}
	comps := pipeline.Components{Generator: gen}

	switch cfg.TranscribeBackend {
	case config.BackendOpenAI:
		comps.Accurate = transcription.NewOpenAITranscriber(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TranscribeModel, cfg.TranscribeLanguage)
	case config.BackendHTTP:
		comps.Accurate = transcription.NewHTTPTranscriber(cfg.TranscribeURL, cfg.TranscribeToken, cfg.TranscribeModel, cfg.TranscribeLanguage, cfg.TranscribeTimeout)
	case config.BackendNone:
	default:
		return pipeline.Components{}, fmt.Errorf("unknown transcription backend %q", cfg.TranscribeBackend)
	}
	if cfg.StreamURL != "" {
		comps.Fast = transcription.NewWSRecognizer(cfg.StreamURL, cfg.TranscribeToken, logger)
	}

	logger.Info("backends ready",
		"answer_backend", cfg.AnswerBackend,
		"transcribe_backend", cfg.TranscribeBackend,
		"fast_path", comps.Fast != nil,
	)
	return comps, nil
}

func pipelineOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		SilenceTimeout:    cfg.SilenceTimeout,
		AccurateTimeout:   cfg.TranscribeTimeout,
		AnswerTimeout:     cfg.AnswerTimeout,
		Workers:           cfg.TranscribeWorkers,
		AnswerBackend:     cfg.AnswerBackend,
		TranscribeBackend: cfg.TranscribeBackend,
	}
}

// openRepository prefers Postgres, then the embedded store. It returns nil
// when neither is configured.
func openRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Repository, error) {
	switch {
	case cfg.DatabaseURL != "":
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("database connected")
		return db, nil
	case cfg.DataDir != "":
		disk, err := store.OpenDisk(cfg.DataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("open data dir: %w", err)
		}
		logger.Info("embedded store opened", "dir", cfg.DataDir)
		return disk, nil
	}
	return nil, nil
}
