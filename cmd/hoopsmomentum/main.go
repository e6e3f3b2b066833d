// Command hoopsmomentum tracks NBA in-play odds, detects momentum swings and
// sends rate-limited alerts.
//
// Usage:
//
//	hoopsmomentum run --config configs/config.yaml
//	hoopsmomentum sync
//	hoopsmomentum poll 42
//	hoopsmomentum insights 42
//	hoopsmomentum health 42
//	hoopsmomentum replay 42
//	hoopsmomentum reset 42 --yes
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	storage    string
}

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	var flags globalFlags
	root := &cobra.Command{
		Use:           "hoopsmomentum",
		Short:         "NBA in-play odds momentum tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("CONFIG_PATH"), "Path to YAML config (defaults only when empty)")
	root.PersistentFlags().StringVar(&flags.storage, "storage", "", "Override storage driver (postgres, memory)")

	root.AddCommand(runCmd(&flags))
	root.AddCommand(syncCmd(&flags))
	root.AddCommand(pollCmd(&flags))
	root.AddCommand(addCmd(&flags))
	root.AddCommand(insightsCmd(&flags))
	root.AddCommand(healthCmd(&flags))
	root.AddCommand(replayCmd(&flags))
	root.AddCommand(resetCmd(&flags))

	if err := root.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
