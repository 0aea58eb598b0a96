package repo

import (
	"os"
	"path/filepath"
	"testing"

	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTokenFromMountedSecret(t *testing.T) {
	secretsDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(secretsDir, "core-token"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, "core-token", "token"), []byte("s3cret\n"), 0600))

	r := &secretResolver{secretsDir: secretsDir}
	assert.Equal(t, "s3cret", r.resolveToken("core-token"))
}

func TestResolveTokenFromEnv(t *testing.T) {
	r := &secretResolver{secretsDir: t.TempDir()}
	t.Setenv("CORE_TOKEN", "env-secret")
	assert.Equal(t, "env-secret", r.resolveToken("core-token"))
}

func TestResolveTokenEmptyRef(t *testing.T) {
	r := &secretResolver{secretsDir: t.TempDir()}
	assert.Empty(t, r.resolveToken(""))
}

func TestAuthMethod(t *testing.T) {
	secretsDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(secretsDir, "core-token"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, "core-token", "token"), []byte("s3cret"), 0600))
	r := &secretResolver{secretsDir: secretsDir}

	auth, err := r.authMethod(&Source{AuthType: AuthToken, AuthSecret: "core-token"})
	require.NoError(t, err)
	basic, ok := auth.(*githttp.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "token", basic.Username)
	assert.Equal(t, "s3cret", basic.Password)

	// an unresolvable token falls back to anonymous access
	auth, err = r.authMethod(&Source{AuthType: AuthToken, AuthSecret: "missing-ref"})
	require.NoError(t, err)
	assert.Nil(t, auth)

	auth, err = r.authMethod(&Source{AuthType: AuthNone})
	require.NoError(t, err)
	assert.Nil(t, auth)

	// ssh without a mounted key defers to ambient ssh config
	auth, err = r.authMethod(&Source{AuthType: AuthSSH, AuthSecret: "missing-key"})
	require.NoError(t, err)
	assert.Nil(t, auth)
}
