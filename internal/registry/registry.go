package registry

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Lookup when no identity exists for a name.
var ErrNotFound = errors.New("agent identity not found")

// ErrAlreadyExists is returned by Register when the name is taken and the
// caller did not ask for an update.
var ErrAlreadyExists = errors.New("agent identity already exists")

// Identity is the durable registry record tying an agent name to its
// authoritative config source. The credential is stored only as a sha256
// hash; the plaintext exists solely in the return value of the issuing
// Register call.
type Identity struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name,omitempty"`
	Description    string    `json:"description,omitempty"`
	Type           string    `json:"type"`
	ConfigSource   string    `json:"config_source,omitempty"`
	ConfigPath     string    `json:"config_path,omitempty"`
	ConfigBranch   string    `json:"config_branch"`
	CredentialHash string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store is the durable identity store. The Bridge is its only writer.
type Store interface {
	Lookup(ctx context.Context, name string) (*Identity, error)
	Create(ctx context.Context, identity *Identity) error
	Update(ctx context.Context, identity *Identity) error
	UpdateCredentialHash(ctx context.Context, name, credentialHash string) error
	List(ctx context.Context) ([]*Identity, error)
	Close() error
}
