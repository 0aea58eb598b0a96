package cache

import (
	"context"
	"time"
)

const (
	DefaultTTL = 5 * time.Minute

	// key prefix and channel shared by every process using the same
	// logical cache
	keyPrefix           = "botburrow:agent:"
	sourceIndexPrefix   = "botburrow:agent:src:"
	invalidationChannel = "botburrow:agent:invalidate"
)

// Cache stores serialized resolved agent configs keyed by agent name. Every
// entry carries a hard TTL and the name of the source it was resolved from,
// so entries can be dropped in bulk when a source gets new commits.
//
// Implementations must be safe for concurrent use. Backend faults are
// absorbed by the implementation (logged, fallback applied), never surfaced
// to callers.
type Cache interface {
	// Get returns the stored value for an agent, or false if absent or
	// expired. Expiry is a hard boundary.
	Get(ctx context.Context, agentName string) ([]byte, bool)

	// Put stores a value with the given TTL, overwriting any existing
	// entry. A ttl <= 0 uses the configured default.
	Put(ctx context.Context, agentName string, value []byte, sourceTag string, ttl time.Duration)

	// Invalidate removes a single entry. Idempotent on missing keys.
	Invalidate(ctx context.Context, agentName string)

	// InvalidateBySource removes every entry tagged with the given source
	// and returns how many were dropped locally.
	InvalidateBySource(ctx context.Context, sourceTag string) int

	Close() error
}

// invalidationMessage is the pub/sub payload fanned out to sibling
// processes. Exactly one of the fields is set.
type invalidationMessage struct {
	AgentName string `json:"agent_name,omitempty"`
	SourceTag string `json:"source_tag,omitempty"`
}
