package subtitle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Taichi-iskw/talk-subtitles/internal/config"
	"github.com/Taichi-iskw/talk-subtitles/internal/logging"
	"github.com/Taichi-iskw/talk-subtitles/internal/progress"
	subtitleRepo "github.com/Taichi-iskw/talk-subtitles/internal/repository/subtitle"
	talkRepo "github.com/Taichi-iskw/talk-subtitles/internal/repository/talk"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/storage"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/talk"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/transcription"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/translation"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/video"
)

// Components are the services built from the configuration file
type Components struct {
	Config    *config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Subtitles subtitle.Service
	Talks     talk.Service
}

// ServiceFactory creates subtitle service instances
type ServiceFactory struct {
	// Notifier receives progress updates; nil discards them
	Notifier progress.Notifier
	// Dispatcher queues jobs; nil leaves processing to the caller
	Dispatcher subtitle.Dispatcher
}

// NewServiceFactory creates a new service factory
func NewServiceFactory() *ServiceFactory {
	return &ServiceFactory{}
}

// CreateService creates the subtitle service with all dependencies
func (f *ServiceFactory) CreateService(ctx context.Context) (subtitle.Service, func(), error) {
	c, cleanup, err := f.CreateComponents(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c.Subtitles, cleanup, nil
}

// CreateComponents loads the configuration and wires every service
func (f *ServiceFactory) CreateComponents(ctx context.Context) (*Components, func(), error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return f.Build(ctx, cfg, logger)
}

// Build wires every service from an already loaded configuration
func (f *ServiceFactory) Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, func(), error) {

	dbPool, err := config.NewDatabasePool(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		dbPool.Close()
	}

	store, err := storage.NewMinioStore(cfg.Storage)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	storageService := storage.NewService(store, cfg.Storage.PublicBaseURL, storage.Limits{
		MaxVideoBytes: cfg.Limits.MaxVideoBytes,
		MaxPDFBytes:   cfg.Limits.MaxPDFBytes,
	}, logger)

	generator, closeGenerator, err := NewGenerator(ctx, cfg.Translation)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeGenerator)

	transcriber, err := NewTranscriber(cfg.Transcription)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	jobs := subtitleRepo.NewRepository(dbPool)
	talks := talkRepo.NewRepository(dbPool)

	subtitleService := subtitle.NewService(subtitle.Dependencies{
		Jobs:        jobs,
		Talks:       talks,
		Resolver:    video.NewResolver(),
		Transcriber: transcriber,
		Translator:  translation.NewTranslationService(generator, logger),
		Storage:     storageService,
		Notifier:    f.Notifier,
		Dispatcher:  f.Dispatcher,
		Logger:      logger,
		WordsPerCue: cfg.Limits.WordsPerCue,
	})

	return &Components{
		Config:    cfg,
		Logger:    logger,
		Pool:      dbPool,
		Subtitles: subtitleService,
		Talks:     talk.NewService(talks, storageService, logger),
	}, cleanup, nil
}

// NewGenerator selects the text-generation provider
func NewGenerator(ctx context.Context, cfg config.TranslationConfig) (translation.Generator, func(), error) {
	switch cfg.Provider {
	case "", "openai":
		gen := translation.NewChatGenerator(translation.ChatConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			TimeoutSeconds: cfg.TimeoutSeconds,
		})
		return gen, func() {}, nil
	case "gemini":
		gen, err := translation.NewGeminiGenerator(ctx, translation.GeminiConfig{
			ProjectID:       cfg.GCPProject,
			Location:        cfg.GCPLocation,
			CredentialsFile: cfg.CredentialsFile,
			Model:           cfg.Model,
		})
		if err != nil {
			return nil, nil, err
		}
		return gen, func() { _ = gen.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported translation provider: %s", cfg.Provider)
	}
}

// NewTranscriber selects the speech-to-text provider
func NewTranscriber(cfg config.TranscriptionConfig) (transcription.Client, error) {
	switch cfg.Provider {
	case "", "scribe":
		return transcription.NewScribeClient(transcription.ScribeConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, nil), nil
	case "whisper":
		return transcription.NewWhisperClient(cfg.WhisperModel), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", cfg.Provider)
	}
}
