package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/agentuity/go-common/env"
	"github.com/spf13/cobra"

	"github.com/botburrow/cli/internal/cache"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Repository related commands",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var repoSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Clone or pull every configured agent repository",
	Long: `Clone or pull every configured agent repository.

Repositories sync in parallel with a bounded worker pool; a failure or
timeout on one repository never blocks the others. The command exits
nonzero only when every repository failed and none has a usable clone
from an earlier sync.

Examples:
  botburrow repo sync
  botburrow repo sync --invalidate`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := env.NewLogger(cmd)
		invalidate, _ := cmd.Flags().GetBool("invalidate")

		manager, err := newManager(logger)
		if err != nil {
			logger.Fatal("%s", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		results := manager.SyncAll(ctx)

		var configCache *cache.TieredCache
		if invalidate {
			configCache = newCache(logger)
			defer configCache.Close()
		}

		names := make([]string, 0, len(results))
		for name := range results {
			names = append(names, name)
		}
		sort.Strings(names)

		anyUsable := false
		for _, name := range names {
			outcome := results[name]
			if outcome.OK {
				printSuccess("%s synced at %s (%s)", name, shortHead(outcome.Head), outcome.Duration.Round(time.Millisecond))
				if invalidate {
					count := configCache.InvalidateBySource(ctx, name)
					if count > 0 {
						logger.Info("invalidated %d cached config(s) for %s", count, name)
					}
				}
			} else {
				printWarning("%s sync failed: %s", name, outcome.Err)
			}
			if manager.Usable(name) {
				anyUsable = true
			}
		}

		if !anyUsable {
			logger.Error("no repository has a usable clone")
			os.Exit(1)
		}
	},
}

var repoListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List the configured agent repositories",
	Aliases: []string{"ls"},
	Run: func(cmd *cobra.Command, args []string) {
		logger := env.NewLogger(cmd)
		manager, err := newManager(logger)
		if err != nil {
			logger.Fatal("%s", err)
		}
		for _, src := range manager.Sources() {
			state, _ := manager.State(src.Name)
			status := "never synced"
			if state.EverSynced {
				status = fmt.Sprintf("at %s", shortHead(state.Head))
				if !state.LastSyncAt.IsZero() && !state.LastSyncOK {
					status += " (last sync failed)"
				}
			}
			fmt.Printf("%-20s %s (branch %s) %s\n", src.Name, src.URL, src.Branch, status)
		}
	},
}

func shortHead(head string) string {
	if len(head) > 8 {
		return head[:8]
	}
	if head == "" {
		return "unknown"
	}
	return head
}

func init() {
	rootCmd.AddCommand(repoCmd)
	repoCmd.AddCommand(repoSyncCmd)
	repoCmd.AddCommand(repoListCmd)
	repoSyncCmd.Flags().Bool("invalidate", false, "Invalidate cached configs for each successfully synced repository")
}
