// Package cmd provides Cobra CLI commands for twinlog.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/twinlog/internal/app"
	"github.com/twinlog/internal/config"
	"github.com/twinlog/internal/logging"
)

var (
	envFile string
	rootCmd = &cobra.Command{
		Use:   "twinlog",
		Short: "Browsing history analysis service",
		Long: `TwinLog stores browsing history synced by a browser extension and turns it
into a behavioral profile: sessions, time and domain statistics, content
types, topic interests and a short narrative.

Run 'twinlog serve' to start the HTTP API, or use the other subcommands for
local maintenance.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file before reading config")
}

// loadRuntime 读取配置并构造日志与应用实例。
func loadRuntime(ctx context.Context) (*app.App, zerolog.Logger, error) {
	if envFile != "" {
		if !config.LoadDotEnv(envFile) {
			return nil, zerolog.Nop(), fmt.Errorf("load env file %s", envFile)
		}
	} else {
		config.LoadDotEnv()
	}

	cfg := config.Load()
	logger := logging.New(logging.Config{
		Level:      logging.ParseLevel(cfg.LogLevel),
		Format:     cfg.LogFormat,
		TimeFormat: logging.DefaultConfig().TimeFormat,
	})

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, logger, fmt.Errorf("initialize app: %w", err)
	}
	return application, logger, nil
}
