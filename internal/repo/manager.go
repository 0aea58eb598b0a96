package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentuity/go-common/logger"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSyncTimeout = 30 * time.Second
	DefaultCloneDepth  = 1
	DefaultWorkers     = 4
)

// ClonedRepository is the runtime sync state for one source. It is created
// on first clone and updated on every sync attempt.
type ClonedRepository struct {
	Source     *Source
	Head       string
	LastSyncAt time.Time
	LastSyncOK bool
	EverSynced bool
}

// SyncOutcome is the per-source result of a SyncAll pass. Failures are
// reported here, never raised.
type SyncOutcome struct {
	OK       bool
	Err      string
	Head     string
	Duration time.Duration
}

type ManagerOptions struct {
	SecretsDir string
	Timeout    time.Duration
	CloneDepth int
	Workers    int
}

// Manager keeps local working copies of all configured sources fresh. Clone
// directories are exclusively owned by the Manager; readers must never
// mutate them.
type Manager struct {
	sources []*Source
	byName  map[string]*Source

	secrets *secretResolver
	timeout time.Duration
	depth   int
	workers int
	logger  logger.Logger

	stateMu sync.RWMutex
	states  map[string]*ClonedRepository

	// one mutex per source so concurrent syncs of the same clone path
	// cannot race while different sources still sync in parallel
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewManager(sources []*Source, opts ManagerOptions, log logger.Logger) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSyncTimeout
	}
	if opts.CloneDepth <= 0 {
		opts.CloneDepth = DefaultCloneDepth
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	m := &Manager{
		sources: sources,
		byName:  make(map[string]*Source, len(sources)),
		secrets: &secretResolver{secretsDir: opts.SecretsDir},
		timeout: opts.Timeout,
		depth:   opts.CloneDepth,
		workers: opts.Workers,
		logger:  log,
		states:  make(map[string]*ClonedRepository, len(sources)),
		locks:   make(map[string]*sync.Mutex, len(sources)),
	}
	for _, src := range sources {
		m.byName[src.Name] = src
		state := &ClonedRepository{Source: src}
		// a clone surviving from a previous process is still usable
		if head, err := localHead(src.ClonePath); err == nil {
			state.Head = head
			state.EverSynced = true
		}
		m.states[src.Name] = state
	}
	return m
}

// Sources returns the configured sources in registration order.
func (m *Manager) Sources() []*Source {
	return m.sources
}

// Lookup returns the source with the given name.
func (m *Manager) Lookup(name string) (*Source, bool) {
	src, ok := m.byName[name]
	return src, ok
}

// FindByURL returns the source matching a git URL, preferring an exact match
// over a normalized one. Registration order breaks normalized-match ties.
func (m *Manager) FindByURL(url string) (*Source, bool) {
	for _, src := range m.sources {
		if src.URL == url {
			return src, true
		}
	}
	for _, src := range m.sources {
		if URLsMatch(src.URL, url) {
			return src, true
		}
	}
	return nil, false
}

// ClonePath returns the local working directory for a source. No I/O.
func (m *Manager) ClonePath(name string) (string, bool) {
	src, ok := m.byName[name]
	if !ok {
		return "", false
	}
	return src.ClonePath, true
}

// State returns a copy of the sync state for a source.
func (m *Manager) State(name string) (ClonedRepository, bool) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	state, ok := m.states[name]
	if !ok {
		return ClonedRepository{}, false
	}
	return *state, true
}

// Usable reports whether a source has at least one successful clone on disk,
// making it eligible for resolution even if the last sync failed.
func (m *Manager) Usable(name string) bool {
	state, ok := m.State(name)
	return ok && state.EverSynced
}

// SyncAll clones or pulls every configured source with bounded parallelism.
// Each source gets its own timeout; one unreachable remote cannot stall or
// fail the others. The returned map always has an entry per source.
func (m *Manager) SyncAll(ctx context.Context) map[string]SyncOutcome {
	results := make(map[string]SyncOutcome, len(m.sources))
	var resultMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, src := range m.sources {
		g.Go(func() error {
			outcome := m.syncOne(ctx, src)
			resultMu.Lock()
			results[src.Name] = outcome
			resultMu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

func (m *Manager) syncOne(ctx context.Context, src *Source) SyncOutcome {
	lock := m.sourceLock(src.Name)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := m.cloneOrPull(ctx, src)
	elapsed := time.Since(start)

	head, _ := localHead(src.ClonePath)

	m.stateMu.Lock()
	state := m.states[src.Name]
	state.LastSyncAt = time.Now()
	state.LastSyncOK = err == nil
	if head != "" {
		state.Head = head
	}
	if err == nil {
		state.EverSynced = true
	}
	m.stateMu.Unlock()

	if err != nil {
		m.logger.Warn("sync failed for %s (%s): %s", src.Name, src.URL, err)
		return SyncOutcome{OK: false, Err: err.Error(), Head: head, Duration: elapsed}
	}
	m.logger.Debug("synced %s at %s in %s", src.Name, head, elapsed)
	return SyncOutcome{OK: true, Head: head, Duration: elapsed}
}

func (m *Manager) cloneOrPull(ctx context.Context, src *Source) error {
	auth, err := m.secrets.authMethod(src)
	if err != nil {
		return fmt.Errorf("auth setup failed: %w", err)
	}

	gitDir := filepath.Join(src.ClonePath, ".git")
	if _, statErr := os.Stat(gitDir); statErr != nil {
		if err := os.MkdirAll(filepath.Dir(src.ClonePath), 0755); err != nil {
			return fmt.Errorf("failed to create clone parent: %w", err)
		}
		m.logger.Info("cloning %s from %s", src.Name, src.URL)
		_, err := git.PlainCloneContext(ctx, src.ClonePath, false, &git.CloneOptions{
			URL:           src.URL,
			Auth:          auth,
			ReferenceName: plumbing.NewBranchReferenceName(src.Branch),
			SingleBranch:  true,
			Depth:         m.depth,
			Tags:          git.NoTags,
		})
		if err != nil {
			return fmt.Errorf("clone failed: %w", err)
		}
		return nil
	}

	repository, err := git.PlainOpen(src.ClonePath)
	if err != nil {
		return fmt.Errorf("failed to open clone: %w", err)
	}
	worktree, err := repository.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	m.logger.Debug("pulling %s", src.Name)
	err = worktree.PullContext(ctx, &git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(src.Branch),
		SingleBranch:  true,
		Auth:          auth,
		Force:         true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull failed: %w", err)
	}
	return nil
}

func (m *Manager) sourceLock(name string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	lock, ok := m.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[name] = lock
	}
	return lock
}

func localHead(clonePath string) (string, error) {
	repository, err := git.PlainOpen(clonePath)
	if err != nil {
		return "", err
	}
	head, err := repository.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}
