package ports

import "context"

// SecretStore keeps owner passwords outside the state blob.
// This is a driven port (implemented by adapters).
type SecretStore interface {
	// SetPassword stores or replaces the owner's password.
	SetPassword(ctx context.Context, ownerID, password string) error

	// Password returns the stored password or domain.ErrSecretNotFound.
	Password(ctx context.Context, ownerID string) (string, error)

	// DeletePassword removes the password. Missing secrets are not an error.
	DeletePassword(ctx context.Context, ownerID string) error
}
