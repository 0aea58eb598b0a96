package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentuity/go-common/env"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Config cache related commands",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Invalidate cached agent configs",
	Long: `Invalidate cached agent configs.

Drops entries from both the local and the shared cache layer and
publishes the invalidation so every subscribed process drops its local
copy too.

Examples:
  botburrow cache invalidate --agent helper-bot
  botburrow cache invalidate --source team-agents`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := env.NewLogger(cmd)
		agentName, _ := cmd.Flags().GetString("agent")
		sourceName, _ := cmd.Flags().GetString("source")

		if agentName == "" && sourceName == "" {
			logger.Fatal("one of --agent or --source is required")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		configCache := newCache(logger)
		defer configCache.Close()

		if agentName != "" {
			configCache.Invalidate(ctx, agentName)
			printSuccess("invalidated cached config for %s", agentName)
		}
		if sourceName != "" {
			count := configCache.InvalidateBySource(ctx, sourceName)
			printSuccess("invalidated %d cached config(s) for source %s", count, sourceName)
		}
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheInvalidateCmd.Flags().String("agent", "", "Invalidate the cached config for a single agent")
	cacheInvalidateCmd.Flags().String("source", "", "Invalidate every cached config from one repository")
}
