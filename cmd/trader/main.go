package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"odte-trader/internal/logger"
	"odte-trader/internal/store"
	"odte-trader/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	_ = godotenv.Load()
	must(logger.Init())
	must(trace.Init())

	cfgPath := os.Getenv("TRADER_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := store.LoadConfig(cfgPath)
	must(err)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(cfg)
	must(err)

	logger.Info(ctx, "Trader starting",
		"timezone", cfg.ExchangeTimezone,
		"feed_mode", cfg.Feed.Mode,
		"signals_mode", cfg.Signals.Mode,
		"addr", cfg.Server.Addr,
	)

	runCtx, cancel := context.WithCancel(context.Background())
	go app.Controller.Run(runCtx)
	go app.Scheduler.Run(runCtx)
	if app.Source != nil {
		must(app.Source.Start(runCtx))
	}
	app.Server.Start(runCtx)

	<-ctx.Done()
	logger.Info(context.Background(), "Shutdown signal received")

	shutdownCtx, c := context.WithTimeout(context.Background(), 10*time.Second)
	defer c()

	liquidate := os.Getenv("TRADER_LIQUIDATE_ON_EXIT") == "true"
	app.Controller.Shutdown(liquidate)

	_ = app.Server.Stop(shutdownCtx)
	if app.Source != nil {
		app.Source.Stop()
	}
	cancel()
	<-app.Controller.Done()

	app.Close(shutdownCtx)
	logger.Info(context.Background(), "Trader stopped")
}
