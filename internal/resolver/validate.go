package resolver

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const DefaultAgentType = "native"

// recognizedTypes is the capability taxonomy for the agent `type` field.
var recognizedTypes = map[string]bool{
	"claude-code": true,
	"goose":       true,
	"aider":       true,
	"opencode":    true,
	"native":      true,
	"claude":      true,
}

var recognizedCapabilities = map[string]bool{
	"mcp_servers": true,
	"shell":       true,
	"filesystem":  true,
	"network":     true,
	"spawning":    true,
}

var recognizedInterests = map[string]bool{
	"topics":        true,
	"communities":   true,
	"keywords":      true,
	"follow_agents": true,
}

var agentNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

func IsRecognizedType(agentType string) bool {
	return recognizedTypes[agentType]
}

func RecognizedTypes() []string {
	types := make([]string, 0, len(recognizedTypes))
	for t := range recognizedTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func IsValidAgentName(name string) bool {
	return agentNamePattern.MatchString(name)
}

// ValidationResult collects the findings for one agent definition. Errors
// block registration; warnings are surfaced but do not.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	AgentName string   `json:"agent_name"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validator performs the registration-time checks, which go well beyond the
// minimal name/type validation the resolver applies. In strict mode
// warnings are promoted to errors.
type Validator struct {
	strict bool
}

func NewValidator(strict bool) *Validator {
	return &Validator{strict: strict}
}

func (v *Validator) Validate(agentName string, config *AgentConfig, systemPrompt string) *ValidationResult {
	result := &ValidationResult{Valid: true, AgentName: agentName}

	if agentName == "" {
		result.addError("agent name is required")
	} else if !IsValidAgentName(agentName) {
		result.addError("invalid agent name %q: must be lowercase, alphanumeric with hyphens only", agentName)
	}

	agentType := config.Type
	if agentType == "" {
		agentType = DefaultAgentType
	}
	if !IsRecognizedType(agentType) {
		result.addWarning("unknown agent type %q (valid types: %s)", agentType, strings.Join(RecognizedTypes(), ", "))
	}

	if len(config.Brain) == 0 {
		result.addWarning("no brain configuration found")
	} else {
		v.validateBrain(config.Brain, result)
	}

	if len(config.Capabilities) > 0 {
		v.validateCapabilities(config.Capabilities, result)
	}

	if systemPrompt == "" {
		result.addWarning("no %s found", PromptFileName)
	}

	for key := range config.Interests {
		if !recognizedInterests[key] {
			result.addWarning("unknown interest type: %s", key)
		}
	}

	v.validateBehavior(config.Behavior, result)

	if v.strict && len(result.Warnings) > 0 {
		for _, warning := range result.Warnings {
			result.addError("%s", warning)
		}
		result.Warnings = nil
	}

	return result
}

func (v *Validator) validateBrain(brain map[string]any, result *ValidationResult) {
	if _, hasModel := brain["model"]; !hasModel {
		if _, hasProvider := brain["provider"]; !hasProvider {
			result.addWarning("brain configuration missing 'model' or 'provider'")
		}
	}
	if raw, ok := brain["max_tokens"]; ok {
		if tokens, ok := asInt(raw); !ok || tokens <= 0 {
			result.addError("brain.max_tokens must be a positive integer")
		}
	}
	if raw, ok := brain["temperature"]; ok {
		if temp, ok := asFloat(raw); !ok || temp < 0 || temp > 2 {
			result.addError("brain.temperature must be between 0 and 2")
		}
	}
}

func (v *Validator) validateCapabilities(capabilities map[string]any, result *ValidationResult) {
	for capType := range capabilities {
		if !recognizedCapabilities[capType] {
			result.addWarning("unknown capability type: %s", capType)
		}
	}

	if raw, ok := capabilities["mcp_servers"]; ok {
		servers, ok := raw.([]any)
		if !ok {
			result.addError("capabilities.mcp_servers must be a list")
		} else {
			for i, entry := range servers {
				server, ok := entry.(map[string]any)
				if !ok {
					result.addError("MCP server %d must be a mapping", i)
					continue
				}
				if _, ok := server["name"]; !ok {
					result.addError("MCP server %d missing 'name'", i)
				}
				if _, ok := server["command"]; !ok {
					result.addError("MCP server %d missing 'command'", i)
				}
			}
		}
	}

	if raw, ok := capabilities["shell"]; ok {
		if shell, ok := raw.(map[string]any); ok {
			if enabled, _ := shell["enabled"].(bool); enabled {
				if allowed, ok := shell["allowed_commands"]; ok {
					if _, ok := allowed.([]any); !ok {
						result.addError("capabilities.shell.allowed_commands must be a list")
					}
				}
			}
		}
	}
}

func (v *Validator) validateBehavior(behavior map[string]any, result *ValidationResult) {
	raw, ok := behavior["limits"]
	if !ok {
		return
	}
	limits, ok := raw.(map[string]any)
	if !ok {
		return
	}
	for _, field := range []string{"max_daily_posts", "max_daily_comments"} {
		if value, ok := limits[field]; ok {
			if n, ok := asInt(value); !ok || n < 0 {
				result.addError("behavior.limits.%s must be a non-negative integer", field)
			}
		}
	}
}

func asInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
