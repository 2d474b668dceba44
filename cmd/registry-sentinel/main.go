package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nholik/registry-sentinel/internal/config"
	"github.com/nholik/registry-sentinel/internal/coordinator"
	"github.com/nholik/registry-sentinel/internal/healthcheck"
	"github.com/nholik/registry-sentinel/internal/jobs"
	"github.com/nholik/registry-sentinel/internal/logging"
	"github.com/nholik/registry-sentinel/internal/metrics"
	"github.com/nholik/registry-sentinel/internal/monorepo"
	"github.com/nholik/registry-sentinel/internal/notify"
	"github.com/nholik/registry-sentinel/internal/server"
	"github.com/nholik/registry-sentinel/internal/store"
)

func main() {
	logger := logging.New()
	logger.Info().Msg("registry-sentinel starting")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration invalid")
	}

	groups, err := monorepo.LoadGroupsFile(cfg.GroupsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("group definitions invalid")
	}
	resolver, err := monorepo.NewStaticResolver(groups)
	if err != nil {
		logger.Fatal().Err(err).Msg("group definitions invalid")
	}

	docs, err := store.NewFileStore(cfg.StorePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.StorePath).Msg("store unavailable")
	}

	collector := metrics.New()

	webhook, err := notify.NewWebhookNotifier(logger, cfg.WebhookURL, "")
	if err != nil {
		logger.Fatal().Err(err).Msg("webhook notifier invalid")
	}
	var notifiers []notify.Notifier
	notifiers = append(notifiers, notify.NewSlackNotifier(logger, cfg.SlackWebhookURL))
	if webhook != nil {
		notifiers = append(notifiers, webhook)
	}
	notifier := notify.NewMultiNotifier(notifiers...)

	pipeline := coordinator.New(logger, docs, resolver,
		coordinator.WithMetrics(collector),
		coordinator.WithNotifier(notifier),
		coordinator.WithPopularThreshold(cfg.PopularThreshold),
	)

	tracker := healthcheck.NewTracker()
	sink := jobs.NewLogSink(logger)
	hook := server.NewHookHandler(logger, pipeline, sink, tracker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server.Start(ctx, logger, hook, tracker, collector, cfg.HookPort, cfg.HealthPort, cfg.MetricsPort)
	tracker.SetReady()

	logger.Info().
		Int("hook_port", cfg.HookPort).
		Int("groups", len(groups)).
		Msg("registry-sentinel ready")

	<-ctx.Done()
	logger.Info().Msg("registry-sentinel stopped")
}
