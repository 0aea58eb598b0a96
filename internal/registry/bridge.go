package registry

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/agentuity/go-common/logger"
	"github.com/google/uuid"

	"github.com/botburrow/cli/internal/cache"
)

const (
	CredentialPrefix = "botburrow_agent_"
	credentialBytes  = 32
)

// RegisterRequest is the admin-facing registration payload.
type RegisterRequest struct {
	Name         string
	DisplayName  string
	Description  string
	Type         string
	ConfigSource string
	ConfigPath   string
	ConfigBranch string
}

// RegisterOptions control the write semantics. Without Update an existing
// name is a conflict; without RotateCredential an update keeps the existing
// credential hash untouched.
type RegisterOptions struct {
	Update           bool
	RotateCredential bool
}

// Bridge is the only write path into the identity registry. It mints
// credentials, stores only their hash, and invalidates the config cache for
// every agent whose mapping changes.
type Bridge struct {
	store  Store
	cache  cache.Cache
	logger logger.Logger
}

func NewBridge(store Store, c cache.Cache, log logger.Logger) *Bridge {
	return &Bridge{store: store, cache: c, logger: log}
}

// Register creates or updates an identity. The returned credential is
// non-empty only when one was minted (creation or explicit rotation) and is
// not retrievable afterward: the registry keeps only its sha256.
func (b *Bridge) Register(ctx context.Context, req RegisterRequest, opts RegisterOptions) (*Identity, string, error) {
	if req.Name == "" {
		return nil, "", fmt.Errorf("agent name is required")
	}
	if req.ConfigBranch == "" {
		req.ConfigBranch = "main"
	}
	if req.Type == "" {
		req.Type = "native"
	}

	existing, err := b.store.Lookup(ctx, req.Name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, "", fmt.Errorf("registry lookup failed: %w", err)
	}

	if existing == nil {
		credential := MintCredential()
		now := time.Now().UTC()
		identity := &Identity{
			ID:             uuid.New().String(),
			Name:           req.Name,
			DisplayName:    req.DisplayName,
			Description:    req.Description,
			Type:           req.Type,
			ConfigSource:   req.ConfigSource,
			ConfigPath:     req.ConfigPath,
			ConfigBranch:   req.ConfigBranch,
			CredentialHash: HashCredential(credential),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := b.store.Create(ctx, identity); err != nil {
			return nil, "", err
		}
		b.logger.Info("registered agent %s (id %s, source %s)", identity.Name, identity.ID, identity.ConfigSource)
		b.invalidate(ctx, req.Name)
		return identity, credential, nil
	}

	if !opts.Update {
		return nil, "", fmt.Errorf("agent %q: %w", req.Name, ErrAlreadyExists)
	}

	existing.DisplayName = req.DisplayName
	existing.Description = req.Description
	existing.Type = req.Type
	existing.ConfigSource = req.ConfigSource
	existing.ConfigPath = req.ConfigPath
	existing.ConfigBranch = req.ConfigBranch
	existing.UpdatedAt = time.Now().UTC()
	if err := b.store.Update(ctx, existing); err != nil {
		return nil, "", err
	}

	credential := ""
	if opts.RotateCredential {
		credential = MintCredential()
		existing.CredentialHash = HashCredential(credential)
		if err := b.store.UpdateCredentialHash(ctx, req.Name, existing.CredentialHash); err != nil {
			return nil, "", err
		}
		b.logger.Info("rotated credential for agent %s", req.Name)
	}

	b.logger.Info("updated agent %s (source %s)", existing.Name, existing.ConfigSource)
	b.invalidate(ctx, req.Name)
	return existing, credential, nil
}

// Lookup is a pure read of the identity registry.
func (b *Bridge) Lookup(ctx context.Context, name string) (*Identity, error) {
	return b.store.Lookup(ctx, name)
}

// List returns every registered identity in name order.
func (b *Bridge) List(ctx context.Context) ([]*Identity, error) {
	return b.store.List(ctx)
}

// invalidate drops any cached resolution so a changed mapping takes effect
// immediately instead of after TTL expiry.
func (b *Bridge) invalidate(ctx context.Context, agentName string) {
	if b.cache != nil {
		b.cache.Invalidate(ctx, agentName)
	}
}

// MintCredential generates a bearer credential for an agent identity.
func MintCredential() string {
	buf := make([]byte, credentialBytes)
	rand.Read(buf)
	return CredentialPrefix + hex.EncodeToString(buf)
}

// HashCredential is the one-way form the registry stores.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
