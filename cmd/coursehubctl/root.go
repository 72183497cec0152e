package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/observability"
)

var (
	cfg     config.Config
	envFile string
)

var rootCmd = &cobra.Command{
	Use:           "coursehubctl",
	Short:         "Operate a coursehub deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// an explicit env file wins over the process environment
		if envFile != "" {
			if err := godotenv.Overload(envFile); err != nil {
				return err
			}
		}
		cfg = config.Load()
		slog.SetDefault(observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.Env))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load variables from this file before reading config")
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}
