package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

// secretRepository implements ports.SecretStore on the local database.
// It is the fallback when no OS keyring is available.
type secretRepository struct {
	db *sql.DB
}

// newSecretRepository creates a new database-backed secret store.
func newSecretRepository(db *sql.DB) ports.SecretStore {
	return &secretRepository{db: db}
}

// SetPassword stores or replaces the owner's password.
func (r *secretRepository) SetPassword(ctx context.Context, ownerID, password string) error {
	query := `
		INSERT INTO secrets (owner_id, password, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			password = excluded.password,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, ownerID, password, time.Now()); err != nil {
		return fmt.Errorf("failed to save secret: %w", err)
	}

	return nil
}

// Password returns the stored password.
func (r *secretRepository) Password(ctx context.Context, ownerID string) (string, error) {
	var password string
	err := r.db.QueryRowContext(ctx, `SELECT password FROM secrets WHERE owner_id = ?`, ownerID).Scan(&password)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrSecretNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return password, nil
}

// DeletePassword removes the owner's password.
func (r *secretRepository) DeletePassword(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
