package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:           "moodlift",
	Short:         "MoodLift wellness bot for Telegram",
	Long:          "MoodLift runs a short mood check-in, offers a box breathing exercise and keeps a supportive chat going, in English or Hindi.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the file named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// globalRand draws from the goroutine-safe top-level source.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }
