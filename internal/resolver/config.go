package resolver

import (
	"time"
)

const (
	// on-disk contract for an agent directory inside a source clone
	ConfigFileName = "config.yaml"
	PromptFileName = "system-prompt.md"

	// DefaultPathTemplate locates an agent directory when the identity
	// record carries no explicit config_path. %s is the agent name.
	DefaultPathTemplate = "agents/%s"
)

// AgentConfig is the structured half of an agent definition. Beyond name
// and type the document is open-ended; the capability and behavior maps are
// passed through to the runner untouched.
type AgentConfig struct {
	Name         string         `yaml:"name" json:"name"`
	DisplayName  string         `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Description  string         `yaml:"description,omitempty" json:"description,omitempty"`
	Type         string         `yaml:"type" json:"type"`
	Brain        map[string]any `yaml:"brain,omitempty" json:"brain,omitempty"`
	Capabilities map[string]any `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Interests    map[string]any `yaml:"interests,omitempty" json:"interests,omitempty"`
	Behavior     map[string]any `yaml:"behavior,omitempty" json:"behavior,omitempty"`
	Memory       map[string]any `yaml:"memory,omitempty" json:"memory,omitempty"`
}

// ResolvedAgentConfig is the bundle a successful resolution produces: the
// parsed config, its prompt, and where it came from. It is what the cache
// stores (JSON-serialized) and what the runner consumes.
type ResolvedAgentConfig struct {
	AgentName    string      `json:"agent_name"`
	Config       AgentConfig `json:"config"`
	SystemPrompt string      `json:"system_prompt"`
	ResolvedFrom string      `json:"resolved_from"`
	ResolvedAt   time.Time   `json:"resolved_at"`
}

// Hint is the previously recorded location of an agent's config. It steers
// search order but is not trusted: a stale hint falls back to the full
// source scan.
type Hint struct {
	ConfigSource string
	ConfigPath   string
	ConfigBranch string
}
