package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/relabs-tech/motion_link/internal/app"
	"github.com/relabs-tech/motion_link/internal/config"
	"github.com/relabs-tech/motion_link/internal/logger"
)

func main() {
	fs := pflag.NewFlagSet("listener", pflag.ExitOnError)
	configPath := fs.String("config", "./motion_config.txt", "path to configuration file (empty for defaults)")
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	if err := config.InitGlobal(*configPath, fs); err != nil {
		logger.Init("info", logger.IsService())
		logger.ErrorWithCode(err).Msg("failed to load config")
		os.Exit(1)
	}
	logger.Init(config.Get().LogLevel, logger.IsService())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunListener(ctx); err != nil {
		logger.ErrorWithCode(err).Msg("fatal")
		os.Exit(1)
	}
}
