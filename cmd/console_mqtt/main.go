package main

import (
	"context"
	"os"

	"github.com/spf13/pflag"

	"github.com/relabs-tech/motion_link/internal/app"
	"github.com/relabs-tech/motion_link/internal/config"
	"github.com/relabs-tech/motion_link/internal/logger"
)

func main() {
	fs := pflag.NewFlagSet("console_mqtt", pflag.ExitOnError)
	configPath := fs.String("config", "./motion_config.txt", "path to configuration file (empty for defaults)")
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	if err := config.InitGlobal(*configPath, fs); err != nil {
		logger.Init("info", false)
		logger.ErrorWithCode(err).Msg("failed to load config")
		os.Exit(1)
	}
	logger.Init(config.Get().LogLevel, false)
	logger.Info().Str("component", "console_mqtt").Msg("starting motion-link console (MQTT subscriber)")

	if err := app.RunConsoleMQTT(context.Background()); err != nil {
		logger.ErrorWithCode(err).Msg("fatal")
		os.Exit(1)
	}
}
