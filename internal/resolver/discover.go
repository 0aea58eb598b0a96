package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/botburrow/cli/internal/repo"
)

// DiscoveredAgent is one complete agent definition found on disk during a
// registration scan.
type DiscoveredAgent struct {
	Name         string
	Source       *repo.Source
	Config       AgentConfig
	SystemPrompt string
}

// DiscoverAgents scans every usable source clone for complete agent
// definitions, in registration order. Directories missing either file are
// skipped; configs that fail to parse are reported in the error slice and
// do not abort the scan.
func DiscoverAgents(manager *repo.Manager) ([]*DiscoveredAgent, []error) {
	var discovered []*DiscoveredAgent
	var problems []error

	for _, src := range manager.Sources() {
		if !manager.Usable(src.Name) {
			continue
		}
		agentsDir := filepath.Join(src.ClonePath, "agents")
		entries, err := os.ReadDir(agentsDir)
		if err != nil {
			continue
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			agentDir := filepath.Join(agentsDir, name)
			configData, err := os.ReadFile(filepath.Join(agentDir, ConfigFileName))
			if err != nil {
				continue
			}
			promptData, err := os.ReadFile(filepath.Join(agentDir, PromptFileName))
			if err != nil {
				problems = append(problems, fmt.Errorf("agent %s in %s has no %s", name, src.Name, PromptFileName))
				continue
			}
			var config AgentConfig
			if err := yaml.Unmarshal(configData, &config); err != nil {
				problems = append(problems, fmt.Errorf("agent %s in %s does not parse: %w", name, src.Name, err))
				continue
			}
			if config.Type == "" {
				config.Type = DefaultAgentType
			}
			discovered = append(discovered, &DiscoveredAgent{
				Name:         name,
				Source:       src,
				Config:       config,
				SystemPrompt: string(promptData),
			})
		}
	}
	return discovered, problems
}
