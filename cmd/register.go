package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"sort"
	"syscall"

	"github.com/agentuity/go-common/env"
	"github.com/agentuity/go-common/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/botburrow/cli/internal/hub"
	"github.com/botburrow/cli/internal/registry"
	"github.com/botburrow/cli/internal/resolver"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register every agent found in the configured repositories",
	Long: `Register every agent found in the configured repositories.

Scans each synced repository for complete agent definitions, validates
them, and registers each one: against the hub when hub.url is set,
otherwise in the local identity registry. A newly minted credential is
printed exactly once and cannot be recovered later.

Examples:
  botburrow register
  botburrow register --validate-only
  botburrow register --update --rotate-key`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := env.NewLogger(cmd)
		validateOnly, _ := cmd.Flags().GetBool("validate-only")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		update, _ := cmd.Flags().GetBool("update")
		rotate, _ := cmd.Flags().GetBool("rotate-key")
		strict, _ := cmd.Flags().GetBool("strict")
		skipSync, _ := cmd.Flags().GetBool("skip-sync")

		manager, err := newManager(logger)
		if err != nil {
			logger.Fatal("%s", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if !skipSync {
			for name, outcome := range manager.SyncAll(ctx) {
				if !outcome.OK {
					printWarning("%s sync failed: %s", name, outcome.Err)
				}
			}
		}

		discovered, problems := resolver.DiscoverAgents(manager)
		for _, problem := range problems {
			printWarning("%s", problem)
		}
		if len(discovered) == 0 {
			logger.Fatal("no agents found in any configured repository")
		}

		validator := resolver.NewValidator(strict)
		valid := make([]*resolver.DiscoveredAgent, 0, len(discovered))
		invalid := 0
		for _, agent := range discovered {
			result := validator.Validate(agent.Name, &agent.Config, agent.SystemPrompt)
			for _, warning := range result.Warnings {
				logger.Warn("%s: %s", agent.Name, warning)
			}
			if !result.Valid {
				invalid++
				for _, verr := range result.Errors {
					printWarning("%s: %s", agent.Name, verr)
				}
				continue
			}
			valid = append(valid, agent)
		}

		if validateOnly {
			printSuccess("%d agent(s) valid, %d invalid", len(valid), invalid)
			if invalid > 0 {
				os.Exit(1)
			}
			return
		}
		if dryRun {
			for _, agent := range valid {
				fmt.Printf("would register %s (type %s, source %s)\n", agent.Name, agent.Config.Type, agent.Source.Name)
			}
			return
		}

		hubURL := viper.GetString("hub.url")
		var failed int
		if hubURL != "" {
			failed = registerViaHub(ctx, logger, hubURL, valid)
		} else {
			failed = registerLocally(ctx, logger, valid, registry.RegisterOptions{Update: update, RotateCredential: rotate})
		}

		printSuccess("registered %d agent(s), %d failed, %d invalid", len(valid)-failed, failed, invalid)
		if failed > 0 || invalid > 0 {
			os.Exit(1)
		}
	},
}

// registerViaHub registers each agent against the hub's admin API. The hub
// mints the API key; it is printed once here and never stored locally.
func registerViaHub(ctx context.Context, logger logger.Logger, hubURL string, agents []*resolver.DiscoveredAgent) int {
	client := hub.New(hubURL, viper.GetString("hub.admin_key"), logger)

	if err := client.Health(ctx); err != nil {
		logger.Fatal("hub is not reachable at %s: %s", hubURL, err)
	}

	configCache := newCache(logger)
	defer configCache.Close()

	failed := 0
	bySource := map[string][]string{}
	for _, agent := range agents {
		resp, err := client.Register(ctx, hub.RegisterRequest{
			Name:         agent.Name,
			DisplayName:  agent.Config.DisplayName,
			Description:  agent.Config.Description,
			Type:         agent.Config.Type,
			ConfigSource: agent.Source.URL,
			ConfigPath:   path.Join("agents", agent.Name),
			ConfigBranch: agent.Source.Branch,
		})
		if err != nil {
			var apiErr *hub.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
				logger.Info("agent %s is already registered", agent.Name)
				continue
			}
			printWarning("failed to register %s: %s", agent.Name, err)
			failed++
			continue
		}
		printSuccess("registered %s (id %s)", resp.Name, resp.ID)
		if resp.APIKey != "" {
			fmt.Printf("  API key (shown once): %s\n", resp.APIKey)
		}
		configCache.Invalidate(ctx, agent.Name)
		bySource[agent.Source.URL] = append(bySource[agent.Source.URL], agent.Name)
	}

	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		if err := client.NotifyConfigChange(ctx, source, bySource[source]); err != nil {
			logger.Warn("config change notification failed for %s: %s", source, err)
		}
	}
	return failed
}

// registerLocally writes identities into the sqlite registry, minting
// credentials through the bridge.
func registerLocally(ctx context.Context, logger logger.Logger, agents []*resolver.DiscoveredAgent, opts registry.RegisterOptions) int {
	store, err := registry.NewSQLiteStore(viper.GetString("registry.path"))
	if err != nil {
		logger.Fatal("failed to open registry: %s", err)
	}
	defer store.Close()

	configCache := newCache(logger)
	defer configCache.Close()
	bridge := registry.NewBridge(store, configCache, logger)

	failed := 0
	for _, agent := range agents {
		identity, credential, err := bridge.Register(ctx, registry.RegisterRequest{
			Name:         agent.Name,
			DisplayName:  agent.Config.DisplayName,
			Description:  agent.Config.Description,
			Type:         agent.Config.Type,
			ConfigSource: agent.Source.URL,
			ConfigPath:   path.Join("agents", agent.Name),
			ConfigBranch: agent.Source.Branch,
		}, opts)
		if err != nil {
			if errors.Is(err, registry.ErrAlreadyExists) {
				logger.Info("agent %s is already registered (use --update to modify)", agent.Name)
				continue
			}
			printWarning("failed to register %s: %s", agent.Name, err)
			failed++
			continue
		}
		printSuccess("registered %s (id %s)", identity.Name, identity.ID)
		if credential != "" {
			fmt.Printf("  Credential (shown once): %s\n", credential)
		}
	}
	return failed
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().Bool("validate-only", false, "Validate agent definitions without registering them")
	registerCmd.Flags().Bool("dry-run", false, "Show what would be registered without writing anything")
	registerCmd.Flags().Bool("update", false, "Update agents that are already registered")
	registerCmd.Flags().Bool("rotate-key", false, "Mint a new credential for updated agents")
	registerCmd.Flags().Bool("strict", false, "Treat validation warnings as errors")
	registerCmd.Flags().Bool("skip-sync", false, "Register from existing clones without syncing first")
}
