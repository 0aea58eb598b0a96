package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentuity/go-common/logger"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(format string, args ...interface{}) {}
func (m *mockLogger) Info(format string, args ...interface{})  {}
func (m *mockLogger) Warn(format string, args ...interface{})  {}
func (m *mockLogger) Error(format string, args ...interface{}) {}
func (m *mockLogger) Fatal(format string, args ...interface{}) {}
func (m *mockLogger) Trace(format string, args ...interface{}) {}
func (m *mockLogger) SetLevel(level string)                    {}
func (m *mockLogger) GetLevel() string                         { return "info" }
func (m *mockLogger) WithField(key string, value interface{}) logger.Logger {
	return m
}
func (m *mockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return m
}
func (m *mockLogger) WithError(err error) logger.Logger {
	return m
}
func (m *mockLogger) Stack(logger logger.Logger) logger.Logger {
	return m
}
func (m *mockLogger) With(fields map[string]interface{}) logger.Logger {
	return m
}
func (m *mockLogger) WithContext(ctx context.Context) logger.Logger {
	return m
}
func (m *mockLogger) WithPrefix(prefix string) logger.Logger {
	return m
}

// initOriginRepo creates a real git repository on the main branch to act as
// a clone origin.
func initOriginRepo(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	repository, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	require.NoError(t, err)
	return commitFiles(t, repository, dir, files)
}

func commitFiles(t *testing.T, repository *git.Repository, dir string, files map[string]string) string {
	t.Helper()
	worktree, err := repository.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		_, err = worktree.Add(name)
		require.NoError(t, err)
	}
	hash, err := worktree.Commit("update", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestSyncAllClonesAndPulls(t *testing.T) {
	originDir := filepath.Join(t.TempDir(), "origin")
	head := initOriginRepo(t, originDir, map[string]string{
		"agents/helper-bot/config.yaml": "name: helper-bot\n",
	})

	cloneDir := filepath.Join(t.TempDir(), "clone")
	src := &Source{Name: "core", URL: originDir, Branch: "main", AuthType: AuthNone, ClonePath: cloneDir}
	m := NewManager([]*Source{src}, ManagerOptions{Timeout: 30 * time.Second, CloneDepth: 100}, &mockLogger{})

	require.False(t, m.Usable("core"))

	results := m.SyncAll(context.Background())
	require.Len(t, results, 1)
	outcome := results["core"]
	require.True(t, outcome.OK, "sync failed: %s", outcome.Err)
	assert.Equal(t, head, outcome.Head)
	assert.True(t, m.Usable("core"))
	assert.FileExists(t, filepath.Join(cloneDir, "agents", "helper-bot", "config.yaml"))

	// advance the origin and sync again, the pull must pick up the new head
	origin, err := git.PlainOpen(originDir)
	require.NoError(t, err)
	newHead := commitFiles(t, origin, originDir, map[string]string{
		"agents/helper-bot/system-prompt.md": "You are helpful.\n",
	})

	results = m.SyncAll(context.Background())
	outcome = results["core"]
	require.True(t, outcome.OK, "pull failed: %s", outcome.Err)
	assert.Equal(t, newHead, outcome.Head)
	assert.FileExists(t, filepath.Join(cloneDir, "agents", "helper-bot", "system-prompt.md"))
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	originDir := filepath.Join(t.TempDir(), "origin")
	initOriginRepo(t, originDir, map[string]string{"README.md": "agents\n"})

	base := t.TempDir()
	good := &Source{Name: "good", URL: originDir, Branch: "main", AuthType: AuthNone, ClonePath: filepath.Join(base, "good")}
	bad := &Source{Name: "bad", URL: filepath.Join(base, "does-not-exist"), Branch: "main", AuthType: AuthNone, ClonePath: filepath.Join(base, "bad")}
	m := NewManager([]*Source{good, bad}, ManagerOptions{Timeout: 30 * time.Second}, &mockLogger{})

	results := m.SyncAll(context.Background())
	require.Len(t, results, 2)
	assert.True(t, results["good"].OK, "good source failed: %s", results["good"].Err)
	assert.False(t, results["bad"].OK)
	assert.NotEmpty(t, results["bad"].Err)

	assert.True(t, m.Usable("good"))
	assert.False(t, m.Usable("bad"))
}

func TestManagerDetectsSurvivingClone(t *testing.T) {
	originDir := filepath.Join(t.TempDir(), "origin")
	head := initOriginRepo(t, originDir, map[string]string{"README.md": "agents\n"})

	cloneDir := filepath.Join(t.TempDir(), "clone")
	src := &Source{Name: "core", URL: originDir, Branch: "main", AuthType: AuthNone, ClonePath: cloneDir}
	first := NewManager([]*Source{src}, ManagerOptions{CloneDepth: 100}, &mockLogger{})
	require.True(t, first.SyncAll(context.Background())["core"].OK)

	// a fresh manager over the same clone path is usable before any sync
	second := NewManager([]*Source{src}, ManagerOptions{}, &mockLogger{})
	assert.True(t, second.Usable("core"))
	state, ok := second.State("core")
	require.True(t, ok)
	assert.Equal(t, head, state.Head)
}

func TestFindByURL(t *testing.T) {
	a := &Source{Name: "a", URL: "https://github.com/example/agents.git", ClonePath: "/tmp/a"}
	b := &Source{Name: "b", URL: "https://github.com/example/other.git", ClonePath: "/tmp/b"}
	m := NewManager([]*Source{a, b}, ManagerOptions{}, &mockLogger{})

	src, ok := m.FindByURL("https://github.com/example/other.git")
	require.True(t, ok)
	assert.Equal(t, "b", src.Name)

	src, ok = m.FindByURL("git@github.com:example/agents.git")
	require.True(t, ok)
	assert.Equal(t, "a", src.Name)

	_, ok = m.FindByURL("https://github.com/example/unknown.git")
	assert.False(t, ok)
}

func TestSyncAllHonorsContextCancellation(t *testing.T) {
	originDir := filepath.Join(t.TempDir(), "origin")
	initOriginRepo(t, originDir, map[string]string{"README.md": "agents\n"})

	cloneDir := filepath.Join(t.TempDir(), "clone")
	src := &Source{Name: "core", URL: originDir, Branch: "main", AuthType: AuthNone, ClonePath: cloneDir}
	m := NewManager([]*Source{src}, ManagerOptions{}, &mockLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := m.SyncAll(ctx)
	assert.False(t, results["core"].OK)
}
