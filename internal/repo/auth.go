package repo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// secretResolver turns an opaque auth_secret reference into credential
// material. References resolve against a mounted secrets directory first
// (the shape Kubernetes secret mounts use) and fall back to an environment
// variable named after the reference.
type secretResolver struct {
	secretsDir string
}

func (r *secretResolver) resolveToken(ref string) string {
	if ref == "" {
		return ""
	}
	tokenPath := filepath.Join(r.secretsDir, ref, "token")
	if data, err := os.ReadFile(tokenPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	envName := strings.ToUpper(strings.ReplaceAll(ref, "-", "_"))
	return os.Getenv(envName)
}

func (r *secretResolver) resolveSSHKeyPath(ref string) string {
	if ref == "" {
		return ""
	}
	keyPath := filepath.Join(r.secretsDir, ref, "ssh-privatekey")
	if _, err := os.Stat(keyPath); err == nil {
		return keyPath
	}
	return os.Getenv(strings.ToUpper(strings.ReplaceAll(ref, "-", "_")))
}

// authMethod builds the go-git auth method for a source. A nil method is
// valid and means anonymous access (or ambient ssh-agent config for ssh
// remotes when no key file is mounted).
func (r *secretResolver) authMethod(src *Source) (transport.AuthMethod, error) {
	switch src.AuthType {
	case AuthToken:
		token := r.resolveToken(src.AuthSecret)
		if token == "" {
			return nil, nil
		}
		return &githttp.BasicAuth{Username: "token", Password: token}, nil
	case AuthSSH:
		keyPath := r.resolveSSHKeyPath(src.AuthSecret)
		if keyPath == "" {
			return nil, nil
		}
		return gitssh.NewPublicKeysFromFile("git", keyPath, "")
	default:
		return nil, nil
	}
}
