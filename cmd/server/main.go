package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/eidolonFIRE/xcNav-reflector/internal/app"
	"github.com/eidolonFIRE/xcNav-reflector/internal/config"
	"github.com/eidolonFIRE/xcNav-reflector/internal/log"
)

func main() {
	var configPath string
	var addr string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	bootLog := log.New("info")

	cfg, usedPath, err := config.Load(bootLog, configPath)
	if err != nil {
		stdlog.Fatalf("load config: %v", err)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", usedPath).Str("addr", cfg.Addr).Msg("starting xcNav reflector")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build application")
	}

	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
