package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the local identity store, used when no remote hub is
// configured. Parent directories are created as needed.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	schema := `
		CREATE TABLE IF NOT EXISTS agent_identities (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL UNIQUE,
			display_name    TEXT,
			description     TEXT,
			type            TEXT NOT NULL,
			config_source   TEXT,
			config_path     TEXT,
			config_branch   TEXT NOT NULL,
			credential_hash TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agent_identities_source ON agent_identities(config_source);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create registry schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, name string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, display_name, description, type, config_source,
		       config_path, config_branch, credential_hash, created_at, updated_at
		FROM agent_identities WHERE name = ?`, name)
	return scanIdentity(row)
}

func (s *SQLiteStore) Create(ctx context.Context, identity *Identity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_identities
			(id, name, display_name, description, type, config_source,
			 config_path, config_branch, credential_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		identity.ID, identity.Name, identity.DisplayName, identity.Description,
		identity.Type, identity.ConfigSource, identity.ConfigPath, identity.ConfigBranch,
		identity.CredentialHash, identity.CreatedAt.UTC().Format(time.RFC3339),
		identity.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrAlreadyExists
	}
	return err
}

func (s *SQLiteStore) Update(ctx context.Context, identity *Identity) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE agent_identities
		SET display_name = ?, description = ?, type = ?, config_source = ?,
		    config_path = ?, config_branch = ?, updated_at = ?
		WHERE name = ?`,
		identity.DisplayName, identity.Description, identity.Type,
		identity.ConfigSource, identity.ConfigPath, identity.ConfigBranch,
		identity.UpdatedAt.UTC().Format(time.RFC3339), identity.Name)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *SQLiteStore) UpdateCredentialHash(ctx context.Context, name, credentialHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE agent_identities SET credential_hash = ?, updated_at = ? WHERE name = ?`,
		credentialHash, time.Now().UTC().Format(time.RFC3339), name)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, display_name, description, type, config_source,
		       config_path, config_branch, credential_hash, created_at, updated_at
		FROM agent_identities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []*Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*Identity, error) {
	var identity Identity
	var displayName, description, configSource, configPath sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&identity.ID, &identity.Name, &displayName, &description,
		&identity.Type, &configSource, &configPath, &identity.ConfigBranch,
		&identity.CredentialHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	identity.DisplayName = displayName.String
	identity.Description = description.String
	identity.ConfigSource = configSource.String
	identity.ConfigPath = configPath.String
	identity.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	identity.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &identity, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
