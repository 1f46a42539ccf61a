// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

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
	fs := pflag.NewFlagSet("motion_link", pflag.ExitOnError)
	configPath := fs.String("config", "./motion_config.txt", "path to configuration file (empty for defaults)")
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	// Load configuration
	if err := config.InitGlobal(*configPath, fs); err != nil {
		logger.Init("info", logger.IsService())
		logger.ErrorWithCode(err).Msg("failed to load config")
		os.Exit(1)
	}
	cfg := config.Get()
	logger.Init(cfg.LogLevel, logger.IsService())

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("sensor_source", cfg.SensorSource).
		Str("key_source", cfg.KeySource).
		Msg("starting motion link (sensors → listener)")

	if err := app.RunTransmitter(context.Background()); err != nil {
		logger.ErrorWithCode(err).Msg("fatal")
		os.Exit(1)
	}
}
