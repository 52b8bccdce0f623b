// Package cmd implements the command-line interface of tvstream.
package cmd

import (
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/savid/tvstream/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

func init() {
	cobra.OnInitialize(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		}
	})

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./tvstream.yaml)")

	rootCmd.PersistentFlags().String(config.KeyLogLevel, "info", "Log level (debug, info, warn, error)")
	lo.Must0(viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup(config.KeyLogLevel)))

	rootCmd.PersistentFlags().String(config.KeyLogFormat, "text", "Log format (text, json)")
	lo.Must0(viper.BindPFlag(config.KeyLogFormat, rootCmd.PersistentFlags().Lookup(config.KeyLogFormat)))
}

var rootCmd = &cobra.Command{
	Use:           "tvstream",
	Short:         "Browse, search and re-serve IPTV channels from M3U playlists",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command selected on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and sets up logging from it.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	return cfg, logger, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.New()

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	logger.SetLevel(level)

	return logger, nil
}
