package cmd

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ha-desktop/agent/internal/pkg/agent"
	"github.com/ha-desktop/agent/internal/pkg/config"
	"github.com/ha-desktop/agent/internal/pkg/hass"
	"github.com/ha-desktop/agent/internal/pkg/sensor"
	"github.com/ha-desktop/agent/internal/pkg/server"
	"github.com/ha-desktop/agent/internal/pkg/settings"
)

// AgentCommand is the main entry point for the agent CLI. Defaults come
// from HA_AGENT_* environment variables; flags override them.
func AgentCommand(ctx *cli.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if ctx.IsSet("settings-path") {
		cfg.SettingsPath = ctx.String("settings-path")
	}
	if ctx.IsSet("listen-addr") {
		cfg.ListenAddr = ctx.String("listen-addr")
	}
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}
	if ctx.IsSet("webhook-check-schedule") {
		cfg.WebhookCheckSchedule = ctx.String("webhook-check-schedule")
	}
	cfg.AppVersion = ctx.App.Version

	return run(ctx.Context, cfg)
}

func run(ctx context.Context, cfg *config.Config) error {
	eg, ctx := errgroup.WithContext(ctx)

	logCfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logCfg.Level = level
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	logger := zap.Must(logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)))
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	store := settings.NewFileStore(cfg.SettingsPath)
	st, err := store.Load()
	if err != nil {
		return err
	}
	logger.Info("settings loaded",
		zap.String("device_id", st.DeviceID),
		zap.Bool("has_webhook", st.WebhookID != ""))

	client := hass.New(st.ServerURL, st.AccessToken, st.WebhookID)
	collector := sensor.New(st.EnabledSensors)
	a := agent.New(st, store, client, collector, cfg.AppVersion)

	eg.Go(func() error {
		return a.Run(ctx, cfg.WarmupDelay)
	})

	eg.Go(func() error {
		return server.Run(ctx, cfg.ListenAddr, server.New(a))
	})

	if cfg.WebhookCheckSchedule != "" {
		eg.Go(func() error {
			return webhookCheckJob(ctx, cfg.WebhookCheckSchedule, a)
		})
	}

	return eg.Wait()
}

// webhookCheckJob probes webhook liveness on a cron schedule so a silent
// server-side invalidation is noticed between polling failures.
func webhookCheckJob(ctx context.Context, schedule string, a *agent.Agent) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		a.CheckWebhook(probeCtx)
	}); err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
