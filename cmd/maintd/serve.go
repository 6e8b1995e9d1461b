package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"maintenance-backend/internal/api"
	"maintenance-backend/internal/collector"
	"maintenance-backend/internal/generator"
	"maintenance-backend/internal/notification"
	"maintenance-backend/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the generation scheduler and the notification workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()
		return serve(cmd.Context(), a)
	},
}

func serve(parent context.Context, a *app) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cfg := a.cfg
	var webpushOptions *webpush.Options
	var notifier store.EscalationNotifier

	readOpts, err := a.storeOptions(nil)
	if err != nil {
		return err
	}
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		a.log.Warn("VAPID keys are not configured, escalation push notifications are disabled")
	} else {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, store.NewGormStore(a.db, readOpts), webpushOptions, a.metrics, a.log)
		pool.Start(ctx)
		notifier = pool
	}

	opts, err := a.storeOptions(notifier)
	if err != nil {
		return err
	}
	appStore := store.NewGormStore(a.db, opts)
	gen := generator.New(appStore, a.metrics, a.log)

	// Scheduled runs and collected readings bypass the HTTP write path, so they flush
	// cached dashboard views themselves.
	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	viewCache := api.NewViewCache(cacheTTL)

	if cfg.Scheduler.Enabled {
		sched := generator.NewScheduler(gen, cfg.Scheduler.Interval, cfg.Scheduler.Lookahead, a.log)
		sched.OnChange(viewCache.Flush)
		go sched.Run(ctx)
	}

	if cfg.Collector.Enabled {
		coll := collector.NewService(cfg.Collector, cfg.Location(), appStore, a.log)
		coll.OnChange(viewCache.Flush)
		go coll.Run(ctx)
	}

	handler := api.NewHandler(appStore, gen, api.Options{
		Webpush:  webpushOptions,
		Location: cfg.Location(),
		Window:   cfg.Scheduler.Lookahead,
		Logger:   a.log,
	})
	routerOpts := api.RouterOptions{
		RateLimit:      cfg.Server.RateLimitPerSec,
		RateBurst:      cfg.Server.RateLimitBurst,
		IPHeader:       cfg.Server.RequestIPHeader,
		CacheTTL:       cacheTTL,
		Cache:          viewCache,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if cfg.Metrics.Enabled {
		routerOpts.MetricsPath = cfg.Metrics.Path
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, routerOpts),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		a.log.Info("shutdown signal received, stopping services")
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	a.log.Info("server gracefully stopped")
	return nil
}
