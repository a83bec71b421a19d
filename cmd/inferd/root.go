package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
)

var (
	flagConfig string
	flagAddr   string
)

var rootCmd = &cobra.Command{
	Use:   "inferd",
	Short: "Local-first LLM request daemon",
	Long: `inferd serves LLM requests against a catalog of local model tiers:
complexity-routed tier selection with lazy loading and fallback, a layered
response cache, durable resumable tasks, and self-monitoring.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (yaml, json, or toml)")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "daemon address override (e.g. :8090)")
	rootCmd.AddCommand(serveCmd, queryCmd, taskCmd)
}

// loadConfig reads the config file (when given), applies defaults, then the
// command-line overrides.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if flagConfig != "" {
		c, err := config.Load(flagConfig)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	cfg = cfg.WithDefaults()
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if v := os.Getenv("INFERD_ADDR"); v != "" && flagAddr == "" {
		cfg.Addr = v
	}
	return cfg, nil
}

// buildLogger constructs the process logger from config.
func buildLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.LogFormat == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
