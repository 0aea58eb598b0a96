package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentuity/go-common/env"
	"github.com/agentuity/go-common/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/botburrow/cli/internal/registry"
	"github.com/botburrow/cli/internal/resolver"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Agent related commands",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var agentResolveCmd = &cobra.Command{
	Use:   "resolve [name]",
	Short: "Resolve an agent's config and system prompt",
	Long: `Resolve an agent's config and system prompt.

The resolver checks the config cache first, then searches the configured
repositories: the agent's registered source first (when known), then every
repository in configuration order.

Examples:
  botburrow agent resolve helper-bot
  botburrow agent resolve helper-bot --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := env.NewLogger(cmd)
		asJSON, _ := cmd.Flags().GetBool("json")
		agentName := args[0]

		manager, err := newManager(logger)
		if err != nil {
			logger.Fatal("%s", err)
		}
		configCache := newCache(logger)
		defer configCache.Close()
		res := newResolver(manager, configCache, logger)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		hint := lookupHint(ctx, logger, agentName)

		resolved, err := res.Resolve(ctx, agentName, hint)
		if err != nil {
			switch {
			case resolver.IsInvalidConfig(err):
				logger.Fatal("invalid config: %s", err)
			case resolver.IsNotFound(err):
				logger.Fatal("not found: %s (try 'botburrow repo sync' first)", err)
			default:
				logger.Fatal("%s", err)
			}
		}

		if asJSON {
			data, _ := json.MarshalIndent(resolved, "", "  ")
			fmt.Println(string(data))
			return
		}
		printSuccess("resolved %s from source %s", resolved.AgentName, resolved.ResolvedFrom)
		fmt.Printf("  Name:          %s\n", resolved.Config.Name)
		fmt.Printf("  Type:          %s\n", resolved.Config.Type)
		if resolved.Config.DisplayName != "" {
			fmt.Printf("  Display Name:  %s\n", resolved.Config.DisplayName)
		}
		fmt.Printf("  System Prompt: %d chars\n", len(resolved.SystemPrompt))
	},
}

var agentListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all agents found in the configured repositories",
	Aliases: []string{"ls"},
	Run: func(cmd *cobra.Command, args []string) {
		logger := env.NewLogger(cmd)
		manager, err := newManager(logger)
		if err != nil {
			logger.Fatal("%s", err)
		}
		configCache := newCache(logger)
		defer configCache.Close()
		res := newResolver(manager, configCache, logger)

		for sourceName, agents := range res.ListAgents() {
			if len(agents) == 0 {
				fmt.Printf("%s: (no agents)\n", sourceName)
				continue
			}
			fmt.Printf("%s:\n", sourceName)
			for _, name := range agents {
				fmt.Printf("  %s\n", name)
			}
		}
	},
}

var agentIdentitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List registered agent identities from the local registry",
	Run: func(cmd *cobra.Command, args []string) {
		logger := env.NewLogger(cmd)
		store, err := registry.NewSQLiteStore(viper.GetString("registry.path"))
		if err != nil {
			logger.Fatal("failed to open registry: %s", err)
		}
		defer store.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		bridge := registry.NewBridge(store, nil, logger)
		identities, err := bridge.List(ctx)
		if err != nil {
			logger.Fatal("failed to list identities: %s", err)
		}
		if len(identities) == 0 {
			fmt.Println("no agents registered")
			return
		}
		for _, identity := range identities {
			fmt.Printf("%-20s %-12s %s (%s)\n", identity.Name, identity.Type, identity.ConfigSource, identity.ConfigBranch)
		}
	},
}

// lookupHint fetches the agent's registered identity when a local registry
// is present. Resolution works without one; the hint only steers search
// order.
func lookupHint(ctx context.Context, logger logger.Logger, agentName string) *resolver.Hint {
	registryPath := viper.GetString("registry.path")
	if registryPath == "" {
		return nil
	}
	if _, err := os.Stat(registryPath); err != nil {
		return nil
	}
	store, err := registry.NewSQLiteStore(registryPath)
	if err != nil {
		logger.Debug("failed to open registry at %s: %s", registryPath, err)
		return nil
	}
	defer store.Close()
	identity, err := store.Lookup(ctx, agentName)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			logger.Debug("registry lookup failed for %s: %s", agentName, err)
		}
		return nil
	}
	return &resolver.Hint{
		ConfigSource: identity.ConfigSource,
		ConfigPath:   identity.ConfigPath,
		ConfigBranch: identity.ConfigBranch,
	}
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentResolveCmd)
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentIdentitiesCmd)
	agentResolveCmd.Flags().Bool("json", false, "Print the resolved config as JSON")
}
