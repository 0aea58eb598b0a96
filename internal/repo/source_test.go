package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSourcesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repos.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSources(t *testing.T) {
	path := writeSourcesFile(t, `[
		{"name": "core", "url": "https://github.com/example/core-agents.git", "clone_path": "/tmp/core"},
		{"name": "community", "url": "git@github.com:example/community-agents.git", "branch": "develop", "auth_type": "ssh", "auth_secret": "community-deploy-key"}
	]`)

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, "core", sources[0].Name)
	assert.Equal(t, "main", sources[0].Branch)
	assert.Equal(t, AuthNone, sources[0].AuthType)
	assert.Equal(t, "/tmp/core", sources[0].ClonePath)

	assert.Equal(t, "develop", sources[1].Branch)
	assert.Equal(t, AuthSSH, sources[1].AuthType)
	assert.Equal(t, "community-deploy-key", sources[1].AuthSecret)
	assert.Equal(t, filepath.Join("/configs", "community"), sources[1].ClonePath)
}

func TestLoadSourcesErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "invalid json",
			content: `{not json`,
			errMsg:  "invalid repos config",
		},
		{
			name:    "missing name",
			content: `[{"url": "https://github.com/example/agents.git"}]`,
			errMsg:  "name is required",
		},
		{
			name:    "missing url",
			content: `[{"name": "core"}]`,
			errMsg:  "url is required",
		},
		{
			name:    "unknown auth type",
			content: `[{"name": "core", "url": "https://github.com/example/agents.git", "auth_type": "kerberos"}]`,
			errMsg:  "unknown auth_type",
		},
		{
			name: "duplicate name",
			content: `[
				{"name": "core", "url": "https://github.com/example/a.git", "clone_path": "/tmp/a"},
				{"name": "core", "url": "https://github.com/example/b.git", "clone_path": "/tmp/b"}
			]`,
			errMsg: "duplicate source name",
		},
		{
			name: "duplicate clone path",
			content: `[
				{"name": "a", "url": "https://github.com/example/a.git", "clone_path": "/tmp/shared"},
				{"name": "b", "url": "https://github.com/example/b.git", "clone_path": "/tmp/shared"}
			]`,
			errMsg: "already used",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSourcesFile(t, tt.content)
			_, err := LoadSources(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadSourcesMissingFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read repos config")
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/example/agents.git", "github.com/example/agents"},
		{"https://github.com/Example/Agents", "github.com/example/agents"},
		{"http://github.com/example/agents", "github.com/example/agents"},
		{"git@github.com:example/agents.git", "github.com/example/agents"},
		{"ssh://git@github.com/example/agents.git", "github.com/example/agents"},
		{"https://github.com/example/agents/", "github.com/example/agents"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.url), "url %s", tt.url)
	}
}

func TestURLsMatch(t *testing.T) {
	assert.True(t, URLsMatch(
		"https://github.com/example/agents.git",
		"git@github.com:example/agents.git",
	))
	assert.True(t, URLsMatch(
		"https://github.com/example/agents",
		"https://github.com/example/agents",
	))
	assert.False(t, URLsMatch(
		"https://github.com/example/agents.git",
		"https://github.com/example/other.git",
	))
}
