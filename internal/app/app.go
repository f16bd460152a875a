// Package app wires the analysis service from configuration. Both the HTTP
// server and the command line tool build their service here.
package app

import (
	"fmt"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/deadline"
	"meeting-insights-go/internal/directory"
	"meeting-insights-go/internal/extractor"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/notify"
	"meeting-insights-go/internal/owner"
	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/processor"
	"meeting-insights-go/internal/runguard"
	"meeting-insights-go/internal/transcription"
)

type App struct {
	Service  *processor.Service
	Notifier notify.Notifier
}

// Close releases the notifier connection.
func (a *App) Close() {
	if a.Notifier != nil {
		a.Notifier.Close()
	}
}

func Build(cfg config.Config, log *logger.Logger) (*App, error) {
	oracle, err := buildOracle(cfg.Oracle, log)
	if err != nil {
		return nil, err
	}

	dir := owner.NewMemoryDirectory()
	if cfg.Directory.Path != "" {
		dir, err = directory.LoadRoster(cfg.Directory.Path)
		if err != nil {
			return nil, fmt.Errorf("load directory %s: %w", cfg.Directory.Path, err)
		}
		log.WithField("identities", dir.Len()).WithField("path", cfg.Directory.Path).Info("directory loaded")
	}

	normalizer := deadline.NewNormalizer(deadline.Config{
		WindowDays: cfg.Deadlines.WindowDays,
		Location:   cfg.Deadlines.Location(),
	}, log.Component("deadline"))

	metrics := pipeline.NewMetrics()
	pipe := pipeline.New(pipeline.Deps{
		Extractor: extractor.NewClient(oracle, log.Component("extractor")),
		Owners:    owner.NewResolver(dir, log.Component("owner")),
		Deadlines: normalizer,
		Log:       log.Component("pipeline"),
		Metrics:   metrics,
	}, pipeline.Options{
		MaxChunkSize:       cfg.Pipeline.MaxChunkSize,
		ChunkTimeout:       cfg.Pipeline.ChunkTimeout,
		MaxRetries:         cfg.Pipeline.MaxRetries,
		MinTextLength:      cfg.Pipeline.MinTextLength,
		ResolveConcurrency: cfg.Pipeline.ResolveConcurrency,
	})

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.NATSURL != "" {
		pub, err := notify.Connect(cfg.Notify.NATSURL, cfg.Notify.SubjectPrefix, log.Component("notify"))
		if err != nil {
			// analyses still work without subscribers
			log.WithError(err).Warn("nats unavailable, notifications disabled")
		} else {
			notifier = pub
		}
	}

	svc := processor.NewService(processor.Deps{
		Pipeline:  pipe,
		Guard:     runguard.New(cfg.Guard.Cooldown),
		Fetcher:   transcription.NewFetcher(transcription.Config{}, log.Component("transcription")),
		Notifier:  notifier,
		Deadlines: normalizer,
		Metrics:   metrics,
		Log:       log.Component("processor"),
	})
	return &App{Service: svc, Notifier: notifier}, nil
}

func buildOracle(cfg config.OracleConfig, log *logger.Logger) (extractor.Oracle, error) {
	if cfg.UseMock {
		log.Info("using mock oracle")
		return extractor.MockOracle{}, nil
	}
	gw, err := extractor.NewGateway(extractor.GatewayConfig{
		URL:       cfg.GatewayURL,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}, log.Component("gateway"))
	if err != nil {
		return nil, fmt.Errorf("%w (set LLM_GATEWAY_URL and LLM_API_KEY, or USE_MOCK_LLM=true)", err)
	}
	return gw, nil
}
