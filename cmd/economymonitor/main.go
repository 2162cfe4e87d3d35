package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dzhafarfovss-code/economy-monitor/internal/app"
	"github.com/dzhafarfovss-code/economy-monitor/internal/config"
	"github.com/dzhafarfovss-code/economy-monitor/internal/logging"
)

var version = "dev"

var (
	flagConfig      string
	flagWatch       bool
	flagBypassDedup bool
)

var rootCmd = &cobra.Command{
	Use:   "economy-monitor",
	Short: "Watches government publication pages and delivers report analyses to Telegram",
	Long: "economy-monitor polls configured publication calendars, detects newly " +
		"published reports matching topic patterns, extracts and analyzes their text, " +
		"and delivers the analysis to a Telegram chat exactly once per document.",
	SilenceUsage: true,
	RunE:         run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.Flags().BoolVar(&flagWatch, "watch", false, "stay resident and run on the configured cron schedule")
	rootCmd.Flags().BoolVar(&flagBypassDedup, "bypass-dedup", false, "re-announce already-seen documents and record nothing")
	rootCmd.AddCommand(versionCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load(flagConfig)
	if flagBypassDedup {
		cfg.Dedup.Bypass = true
	}

	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if flagWatch {
		return application.Watch(ctx)
	}
	return application.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
