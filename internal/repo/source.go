package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type AuthType string

const (
	AuthNone  AuthType = "none"
	AuthToken AuthType = "token"
	AuthSSH   AuthType = "ssh"

	DefaultBranch = "main"
)

// Source is one configured git origin for agent definitions. Sources are
// loaded once at process start and are immutable for the process lifetime.
type Source struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Branch     string   `json:"branch"`
	AuthType   AuthType `json:"auth_type"`
	AuthSecret string   `json:"auth_secret,omitempty"`
	ClonePath  string   `json:"clone_path"`
}

// LoadSources reads the ordered source list from a JSON file. The file order
// is the registration order used for resolution tie-breaks.
func LoadSources(path string) ([]*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read repos config %s: %w", path, err)
	}

	var sources []*Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("invalid repos config %s: %w", path, err)
	}

	names := make(map[string]bool)
	paths := make(map[string]bool)
	for i, src := range sources {
		if src.Name == "" {
			return nil, fmt.Errorf("repos config entry %d: name is required", i)
		}
		if src.URL == "" {
			return nil, fmt.Errorf("repo %s: url is required", src.Name)
		}
		if src.Branch == "" {
			src.Branch = DefaultBranch
		}
		if src.AuthType == "" {
			src.AuthType = AuthNone
		}
		switch src.AuthType {
		case AuthNone, AuthToken, AuthSSH:
		default:
			return nil, fmt.Errorf("repo %s: unknown auth_type %q", src.Name, src.AuthType)
		}
		if src.ClonePath == "" {
			src.ClonePath = filepath.Join("/configs", src.Name)
		}
		if names[src.Name] {
			return nil, fmt.Errorf("repos config: duplicate source name %q", src.Name)
		}
		if paths[src.ClonePath] {
			return nil, fmt.Errorf("repo %s: clone_path %s is already used by another source", src.Name, src.ClonePath)
		}
		names[src.Name] = true
		paths[src.ClonePath] = true
	}

	return sources, nil
}

// NormalizeURL reduces a git URL to a canonical host/owner/repo form so that
// https, ssh and .git variants of the same repository compare equal.
func NormalizeURL(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "ssh://")
	url = strings.TrimPrefix(url, "git@")
	url = strings.TrimSuffix(url, ".git")
	// ssh shorthand uses a colon after the host
	url = strings.Replace(url, ":", "/", 1)
	url = strings.TrimSuffix(url, "/")
	return strings.ToLower(url)
}

// URLsMatch reports whether two git URLs refer to the same repository.
func URLsMatch(a, b string) bool {
	if a == b {
		return true
	}
	return NormalizeURL(a) == NormalizeURL(b)
}
