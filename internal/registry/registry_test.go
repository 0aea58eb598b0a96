package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentuity/go-common/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botburrow/cli/internal/cache"
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

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testIdentity(name string) *Identity {
	now := time.Now().UTC()
	return &Identity{
		ID:             uuid.New().String(),
		Name:           name,
		DisplayName:    "Test Agent",
		Type:           "native",
		ConfigSource:   "https://github.com/example/agents.git",
		ConfigPath:     "agents/" + name,
		ConfigBranch:   "main",
		CredentialHash: HashCredential("secret"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestSQLiteStoreCreateAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Lookup(ctx, "helper-bot")
	assert.ErrorIs(t, err, ErrNotFound)

	identity := testIdentity("helper-bot")
	require.NoError(t, store.Create(ctx, identity))

	got, err := store.Lookup(ctx, "helper-bot")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)
	assert.Equal(t, identity.ConfigSource, got.ConfigSource)
	assert.Equal(t, identity.CredentialHash, got.CredentialHash)
	assert.WithinDuration(t, identity.CreatedAt, got.CreatedAt, time.Second)
}

func TestSQLiteStoreDuplicateName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testIdentity("helper-bot")))
	err := store.Create(ctx, testIdentity("helper-bot"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSQLiteStoreUpdateMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, testIdentity("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
	err = store.UpdateCredentialHash(ctx, "ghost", "hash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testIdentity("beta")))
	require.NoError(t, store.Create(ctx, testIdentity("alpha")))

	identities, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, identities, 2)
	assert.Equal(t, "alpha", identities[0].Name)
	assert.Equal(t, "beta", identities[1].Name)
}

func TestBridgeRegisterMintsCredential(t *testing.T) {
	store := newTestStore(t)
	c := cache.NewMemoryCache(time.Minute)
	bridge := NewBridge(store, c, &mockLogger{})
	ctx := context.Background()

	identity, credential, err := bridge.Register(ctx, RegisterRequest{
		Name:         "helper-bot",
		DisplayName:  "Helper",
		ConfigSource: "https://github.com/example/agents.git",
		ConfigPath:   "agents/helper-bot",
	}, RegisterOptions{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(credential, CredentialPrefix))
	assert.Len(t, credential, len(CredentialPrefix)+64)
	assert.Equal(t, "main", identity.ConfigBranch)
	assert.Equal(t, "native", identity.Type)

	// only the hash is stored, and it must match the returned credential
	sum := sha256.Sum256([]byte(credential))
	assert.Equal(t, hex.EncodeToString(sum[:]), identity.CredentialHash)

	stored, err := store.Lookup(ctx, "helper-bot")
	require.NoError(t, err)
	assert.Equal(t, identity.CredentialHash, stored.CredentialHash)
}

func TestBridgeRegisterConflict(t *testing.T) {
	store := newTestStore(t)
	bridge := NewBridge(store, cache.NewMemoryCache(time.Minute), &mockLogger{})
	ctx := context.Background()

	req := RegisterRequest{Name: "helper-bot", ConfigSource: "https://github.com/example/agents.git"}
	_, _, err := bridge.Register(ctx, req, RegisterOptions{})
	require.NoError(t, err)

	_, _, err = bridge.Register(ctx, req, RegisterOptions{})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestBridgeUpdatePreservesCredential(t *testing.T) {
	store := newTestStore(t)
	bridge := NewBridge(store, cache.NewMemoryCache(time.Minute), &mockLogger{})
	ctx := context.Background()

	req := RegisterRequest{Name: "helper-bot", DisplayName: "Helper", ConfigSource: "https://github.com/example/agents.git"}
	created, _, err := bridge.Register(ctx, req, RegisterOptions{})
	require.NoError(t, err)

	req.DisplayName = "Helper v2"
	updated, credential, err := bridge.Register(ctx, req, RegisterOptions{Update: true})
	require.NoError(t, err)
	assert.Empty(t, credential, "an update without rotation must not mint")
	assert.Equal(t, "Helper v2", updated.DisplayName)
	assert.Equal(t, created.CredentialHash, updated.CredentialHash)
}

func TestBridgeRotateCredential(t *testing.T) {
	store := newTestStore(t)
	bridge := NewBridge(store, cache.NewMemoryCache(time.Minute), &mockLogger{})
	ctx := context.Background()

	req := RegisterRequest{Name: "helper-bot", ConfigSource: "https://github.com/example/agents.git"}
	created, first, err := bridge.Register(ctx, req, RegisterOptions{})
	require.NoError(t, err)

	rotated, second, err := bridge.Register(ctx, req, RegisterOptions{Update: true, RotateCredential: true})
	require.NoError(t, err)
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)
	assert.NotEqual(t, created.CredentialHash, rotated.CredentialHash)
	assert.Equal(t, HashCredential(second), rotated.CredentialHash)
}

func TestBridgeRegisterInvalidatesCache(t *testing.T) {
	store := newTestStore(t)
	c := cache.NewMemoryCache(time.Minute)
	bridge := NewBridge(store, c, &mockLogger{})
	ctx := context.Background()

	// a stale resolution must not survive an identity change
	c.Put(ctx, "helper-bot", []byte("stale"), "core", 0)

	_, _, err := bridge.Register(ctx, RegisterRequest{Name: "helper-bot", ConfigSource: "https://github.com/example/agents.git"}, RegisterOptions{})
	require.NoError(t, err)

	_, ok := c.Get(ctx, "helper-bot")
	assert.False(t, ok)
}
