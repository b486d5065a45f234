// Package main is the entry point for the Latchflow server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/latchflow/latchflow/internal/action"
	"github.com/latchflow/latchflow/internal/auth"
	"github.com/latchflow/latchflow/internal/bundle"
	"github.com/latchflow/latchflow/internal/changelog"
	"github.com/latchflow/latchflow/internal/config"
	"github.com/latchflow/latchflow/internal/database/postgres"
	"github.com/latchflow/latchflow/internal/dbmigrate"
	"github.com/latchflow/latchflow/internal/download"
	"github.com/latchflow/latchflow/internal/httpapi"
	"github.com/latchflow/latchflow/internal/mailer"
	"github.com/latchflow/latchflow/internal/metrics"
	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/obslog"
	"github.com/latchflow/latchflow/internal/objstore"
	"github.com/latchflow/latchflow/internal/objstore/memdriver"
	"github.com/latchflow/latchflow/internal/pluginapi"
	"github.com/latchflow/latchflow/internal/plugins/intervaltrigger"
	"github.com/latchflow/latchflow/internal/plugins/webhookaction"
	"github.com/latchflow/latchflow/internal/queue"
	"github.com/latchflow/latchflow/internal/ratelimit"
	"github.com/latchflow/latchflow/internal/store"
	"github.com/latchflow/latchflow/internal/trigger"
)

const (
	serviceName    = "latchflow"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config overlay")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", serviceName, serviceVersion)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := obslog.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := postgres.NewPostgresPool(cfg.Database.ToPostgresConfig(), logger)
	if err := pool.Connect(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pool.Disconnect(shutdownCtx); err != nil {
			logger.Error("error disconnecting from database", "error", err)
		}
	}()

	migrator, err := dbmigrate.New(dbmigrate.Config{DSN: cfg.Database.DSN(), Logger: logger})
	if err != nil {
		logger.Error("failed to initialize migrator", "error", err)
		os.Exit(1)
	}
	if err := migrator.Up(ctx); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}
	if err := migrator.Close(); err != nil {
		logger.Warn("error closing migrator connection", "error", err)
	}

	st := store.New(pool)

	if cfg.Storage.Driver != "memory" {
		logger.Warn("only the in-memory object storage driver ships in this build; ignoring configured driver", "configured_driver", cfg.Storage.Driver)
	}
	objects := objstore.New(memdriver.New(), cfg.Storage.KeyPrefix)

	q := queue.New(cfg.Queue.Capacity)

	registry := pluginapi.NewRegistry()
	registerBuiltinPlugins(registry, logger)

	if manifests, err := pluginapi.LoadManifests(cfg.Plugins.Path); err != nil {
		logger.Warn("failed to load plugin manifests", "path", cfg.Plugins.Path, "error", err)
	} else if len(manifests) > 0 {
		logger.Info("discovered external plugin manifests", "path", cfg.Plugins.Path, "count", len(manifests))
	}

	encOpts, err := pluginapi.ResolveConfigEncryption(logger, "")
	if err != nil {
		logger.Error("failed to resolve plugin config encryption mode", "error", err)
		os.Exit(1)
	}

	runner := trigger.NewRunner(st, q, logger)
	triggerMgr := trigger.NewManager(registry, st, runner, encOpts, logger)
	if err := triggerMgr.StartAll(ctx); err != nil {
		logger.Error("failed to start trigger runtimes", "error", err)
		os.Exit(1)
	}
	defer triggerMgr.StopAll(context.Background())

	actionConsumer := action.NewConsumer(registry, st, q, encOpts, logger, action.WithConcurrency(cfg.Action.Concurrency))
	actionConsumer.Start(ctx)
	defer actionConsumer.Stop()

	scheduler := bundle.New(st, objects, logger, 0)
	guard := download.New(st, objects, scheduler, logger)
	changelogSvc := changelog.New(st, cfg.History.SnapshotInterval, cfg.History.MaxChainDepth)

	mailProvider := mailer.NewLogProvider(logger)

	authCfg := buildAuthConfig(cfg)
	tokens := auth.NewTokenService(st, authCfg)
	tokenMgr := auth.NewTokenManager(st, authCfg)
	otpSvc := auth.NewOTPService(st, mailProvider, authCfg, tokens)
	magicLinkSvc := auth.NewMagicLinkService(st, mailProvider, authCfg, tokens)
	deviceCodeSvc := auth.NewDeviceCodeService(st, authCfg, tokens)
	decisionLogger := auth.NewSlogDecisionLogger(logger)
	policy := auth.NewPolicy()
	authMW := auth.NewMiddleware(st, tokens, policy, decisionLogger, authCfg)

	rateLimiter := ratelimit.New(0, 0)

	httpCfg := httpapi.DefaultConfig(logger)
	httpCfg.MetricsMiddleware = metrics.Middleware

	router := httpapi.NewRouter(httpCfg, httpapi.Deps{
		Store:      st,
		Objects:    objects,
		Scheduler:  scheduler,
		Guard:      guard,
		Changelog:  changelogSvc,
		AuthMW:     authMW,
		OTP:        otpSvc,
		MagicLink:  magicLinkSvc,
		DeviceCode: deviceCodeSvc,
		Tokens:     tokens,
		TokenMgr:   tokenMgr,
		AuthConfig: authCfg,
		RateLimit:  rateLimiter,
		Logger:     logger,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.NodeEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server shut down gracefully")
}

// registerBuiltinPlugins wires the two capabilities this module ships
// in-process (no out-of-process plugin loader exists), so the trigger
// and action registries always resolve "builtin/webhook" and
// "builtin/interval" regardless of what PLUGINS_PATH contains.
func registerBuiltinPlugins(registry *pluginapi.Registry, logger obslog.Logger) {
	registry.RegisterAction(pluginapi.ActionRef{
		Capability: pluginapi.CapabilityRef{
			PluginID:     "builtin",
			PluginName:   "builtin",
			CapabilityID: "builtin.webhook",
			Key:          "webhook",
			Kind:         model.CapabilityAction,
		},
		Factory: webhookaction.NewFactory(logger),
	})

	registry.RegisterTrigger(pluginapi.TriggerRef{
		Capability: pluginapi.CapabilityRef{
			PluginID:     "builtin",
			PluginName:   "builtin",
			CapabilityID: "builtin.interval",
			Key:          "interval",
			Kind:         model.CapabilityTrigger,
		},
		Factory: intervaltrigger.Factory,
	})
}

// buildAuthConfig starts from auth.DefaultConfig (which carries
// OTPMaxAttempts, a constant the spec never exposes as an env var) and
// overlays every field internal/config does bind.
func buildAuthConfig(cfg *config.Config) auth.Config {
	authCfg := auth.DefaultConfig()

	otpLength, otpTTL, recipientSessionTTL, recipientCookie,
		adminMagicLinkTTL, adminSessionTTL, adminCookie,
		cookieSecure, allowDevAuth, deviceCodeTTL, deviceCodeInterval,
		apiTokenPrefix, apiTokenTTL, apiTokenDefaultScopes := cfg.Auth.ToAuthConfigFields()

	authCfg.OTPLength = otpLength
	authCfg.OTPTTL = otpTTL
	authCfg.RecipientSessionTTL = recipientSessionTTL
	authCfg.RecipientCookieName = recipientCookie
	authCfg.AdminMagicLinkTTL = adminMagicLinkTTL
	authCfg.AdminSessionTTL = adminSessionTTL
	authCfg.AdminCookieName = adminCookie
	authCfg.CookieSecure = cookieSecure
	authCfg.AllowDevAuth = allowDevAuth
	authCfg.DeviceCodeTTL = deviceCodeTTL
	authCfg.DeviceCodeInterval = deviceCodeInterval
	authCfg.APITokenPrefix = apiTokenPrefix
	authCfg.APITokenTTL = apiTokenTTL
	authCfg.APITokenDefaultScope = apiTokenDefaultScopes

	return authCfg
}
