// Copyright 2024 Package Tracking System
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"parcel-tracking/internal/cli"
	"parcel-tracking/internal/config"
)

// Version information
const (
	Version   = "1.0.0"
	BuildDate = "development"
)

var (
	configFile string
	envFile    string
	format     string
	quiet      bool
	noColor    bool
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "parcel-tracker",
	Short: "Track parcels from carrier notification mails",
	Long: `Parcel Tracker scans an IMAP mailbox for carrier notification mails,
extracts tracking numbers, delivery estimates and statuses, enriches them
through carrier APIs where available, and serves the result over HTTP.

CONFIGURATION:
    Settings are read from parcel-tracker.{yaml,toml,json} in ., ./config or
    $HOME/.parcel-tracker, or from the file given with --config.
    Every setting can be overridden with a PARCEL_TRACKER_* environment
    variable, for example:

        PARCEL_TRACKER_IMAP_HOST        - IMAP server host
        PARCEL_TRACKER_IMAP_USERNAME    - IMAP login
        PARCEL_TRACKER_IMAP_PASSWORD    - IMAP password (or use the keyring)
        PARCEL_TRACKER_CARRIERS         - comma-separated carrier keys (default: DHL)
        PARCEL_TRACKER_DHL_API_KEY      - DHL tracking API key
        PARCEL_TRACKER_SCAN_SCHEDULE    - poll schedule (default: @every 60m)
        PARCEL_TRACKER_CACHE_BACKEND    - memory, sqlite or redis
        PARCEL_TRACKER_ADMIN_API_KEY    - enables the admin API routes

EXAMPLES:
    # One scan with table output
    parcel-tracker scan

    # Serve the records over HTTP
    parcel-tracker serve --config=config/parcel-tracker.yaml

    # Test extraction on saved mails
    parcel-tracker extract --carrier DHL mail1.eml mail2.eml`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is parcel-tracker.yaml in ., ./config or $HOME/.parcel-tracker)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file with PARCEL_TRACKER_* variables to load")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", cli.FormatTable, "Output format (table, json)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (minimal output)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfiguration loads the .env file, the config file and the environment.
// An explicit --log-level wins over both.
func loadConfiguration(cmd *cobra.Command) (*config.Config, error) {
	if err := cli.ValidateFormat(format); err != nil {
		return nil, err
	}

	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		if err := config.ValidateConfigFilePath(configFile); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		v.SetConfigFile(configFile)
	}
	if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
		if err := v.BindPFlag("log.level", flag); err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadWithViper(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so that stdout
// carries only command output.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, err := config.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newFormatter returns the output formatter for cmd
func newFormatter(cmd *cobra.Command) *cli.OutputFormatter {
	out := cmd.OutOrStdout()
	if out == os.Stdout {
		return cli.NewOutputFormatter(format, quiet, noColor)
	}
	return cli.NewOutputFormatterWithWriters(format, quiet, false, out, cmd.ErrOrStderr())
}
