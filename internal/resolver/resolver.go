package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentuity/go-common/logger"
	"gopkg.in/yaml.v3"

	"github.com/botburrow/cli/internal/cache"
	"github.com/botburrow/cli/internal/repo"
)

// Resolver locates and validates agent definitions across the configured
// sources, consulting the cache before touching disk. It only ever reads
// from clone directories.
type Resolver struct {
	manager *repo.Manager
	cache   cache.Cache
	ttl     time.Duration
	logger  logger.Logger

	// swapped in tests to observe disk traffic
	readFile func(string) ([]byte, error)
}

func New(manager *repo.Manager, c cache.Cache, ttl time.Duration, log logger.Logger) *Resolver {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Resolver{
		manager:  manager,
		cache:    c,
		ttl:      ttl,
		logger:   log,
		readFile: os.ReadFile,
	}
}

// Resolve produces the validated config bundle for an agent. The search
// order is the hinted source first (when the hint matches a configured
// source), then every source in registration order; the first complete,
// valid config+prompt pair wins. A config that parses but fails validation
// is skipped like a miss, and reported as InvalidConfigError only when no
// other source satisfies the lookup.
func (r *Resolver) Resolve(ctx context.Context, agentName string, hint *Hint) (*ResolvedAgentConfig, error) {
	if strings.TrimSpace(agentName) == "" {
		return nil, ErrEmptyAgentName
	}

	if value, ok := r.cache.Get(ctx, agentName); ok {
		var resolved ResolvedAgentConfig
		if err := json.Unmarshal(value, &resolved); err == nil {
			r.logger.Debug("cache hit for agent %s (resolved from %s)", agentName, resolved.ResolvedFrom)
			return &resolved, nil
		}
		// a corrupt entry is dropped and resolution falls through to disk
		r.logger.Warn("dropping corrupt cache entry for agent %s", agentName)
		r.cache.Invalidate(ctx, agentName)
	}

	type candidate struct {
		src    *repo.Source
		hinted bool
	}
	var candidates []candidate
	if hint != nil && hint.ConfigSource != "" {
		if hinted, ok := r.manager.FindByURL(hint.ConfigSource); ok {
			candidates = append(candidates, candidate{src: hinted, hinted: true})
		} else {
			r.logger.Debug("hint for agent %s references unknown source %s, searching all sources", agentName, hint.ConfigSource)
		}
	}
	// the hinted source stays in the fallback scan; a stale hint must not
	// shrink the search space
	for _, src := range r.manager.Sources() {
		candidates = append(candidates, candidate{src: src})
	}

	var checked []string
	var firstInvalid *InvalidConfigError
	seenDirs := make(map[string]bool)

	for _, cand := range candidates {
		src := cand.src
		if !r.manager.Usable(src.Name) {
			r.logger.Debug("skipping source %s for agent %s: no successful clone yet", src.Name, agentName)
			continue
		}

		agentDir := r.agentDir(src, agentName, cand.hinted, hint)
		if seenDirs[agentDir] {
			continue
		}
		seenDirs[agentDir] = true
		checked = append(checked, src.Name)

		resolved, err := r.loadFromDir(src, agentName, agentDir)
		if err != nil {
			if invalid, ok := err.(*InvalidConfigError); ok && firstInvalid == nil {
				firstInvalid = invalid
			}
			continue
		}
		if resolved == nil {
			continue
		}

		if value, err := json.Marshal(resolved); err == nil {
			r.cache.Put(ctx, agentName, value, src.Name, r.ttl)
		}
		r.logger.Debug("resolved agent %s from source %s", agentName, src.Name)
		return resolved, nil
	}

	if firstInvalid != nil {
		r.logger.Warn("agent %s: %s", agentName, firstInvalid.Reason)
		return nil, firstInvalid
	}
	r.logger.Warn("agent %s not found in any source (checked: %s)", agentName, strings.Join(checked, ", "))
	return nil, &NotFoundError{Agent: agentName, Checked: checked}
}

// agentDir applies the path template for a candidate source. The identity's
// recorded config_path only steers the hinted source; fallback candidates
// use the default layout.
func (r *Resolver) agentDir(src *repo.Source, agentName string, hinted bool, hint *Hint) string {
	template := DefaultPathTemplate
	if hinted && hint != nil && hint.ConfigPath != "" {
		template = hint.ConfigPath
	}
	rel := template
	if strings.Contains(template, "%s") {
		rel = fmt.Sprintf(template, agentName)
	}
	return filepath.Join(src.ClonePath, rel)
}

// loadFromDir reads and validates one candidate directory. A missing config
// or prompt file returns (nil, nil): not a match, keep searching. A config
// that parses but fails validation returns an InvalidConfigError.
func (r *Resolver) loadFromDir(src *repo.Source, agentName, agentDir string) (*ResolvedAgentConfig, error) {
	configData, err := r.readFile(filepath.Join(agentDir, ConfigFileName))
	if err != nil {
		return nil, nil
	}
	promptData, err := r.readFile(filepath.Join(agentDir, PromptFileName))
	if err != nil {
		r.logger.Debug("source %s has a config for %s but no %s, skipping", src.Name, agentName, PromptFileName)
		return nil, nil
	}

	var config AgentConfig
	if err := yaml.Unmarshal(configData, &config); err != nil {
		return nil, &InvalidConfigError{Agent: agentName, Source: src.Name, Reason: fmt.Sprintf("config does not parse: %s", err)}
	}
	if config.Type == "" {
		config.Type = DefaultAgentType
	}
	if config.Name == "" {
		return nil, &InvalidConfigError{Agent: agentName, Source: src.Name, Reason: "config is missing required field 'name'"}
	}
	if !IsRecognizedType(config.Type) {
		return nil, &InvalidConfigError{Agent: agentName, Source: src.Name, Reason: fmt.Sprintf("unrecognized agent type %q", config.Type)}
	}

	return &ResolvedAgentConfig{
		AgentName:    agentName,
		Config:       config,
		SystemPrompt: string(promptData),
		ResolvedFrom: src.Name,
		ResolvedAt:   time.Now(),
	}, nil
}

// ListAgents walks every usable source and reports the agents that carry a
// complete config+prompt pair, grouped by source name.
func (r *Resolver) ListAgents() map[string][]string {
	agents := make(map[string][]string, len(r.manager.Sources()))
	for _, src := range r.manager.Sources() {
		agents[src.Name] = nil
		if !r.manager.Usable(src.Name) {
			continue
		}
		agentsDir := filepath.Join(src.ClonePath, "agents")
		entries, err := os.ReadDir(agentsDir)
		if err != nil {
			continue
		}
		var names []string
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(agentsDir, entry.Name())
			if fileExists(filepath.Join(dir, ConfigFileName)) && fileExists(filepath.Join(dir, PromptFileName)) {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)
		agents[src.Name] = names
	}
	return agents
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
