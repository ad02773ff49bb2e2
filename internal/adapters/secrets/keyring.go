// Package secrets stores owner passwords in the operating system keyring.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name passwords are filed under.
const DefaultService = "timeline-cli"

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// Keyring implements ports.SecretStore. Each owner's password is one
// keyring item keyed by the owner id.
type Keyring struct {
	Service string
}

// Ensure Keyring implements ports.SecretStore.
var _ ports.SecretStore = (*Keyring)(nil)

// NewKeyring creates a keyring store under DefaultService.
func NewKeyring() *Keyring {
	return &Keyring{Service: DefaultService}
}

// SetPassword implements ports.SecretStore.
func (k *Keyring) SetPassword(_ context.Context, ownerID, password string) error {
	if err := keyringSet(k.Service, ownerID, password); err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	return nil
}

// Password implements ports.SecretStore.
func (k *Keyring) Password(_ context.Context, ownerID string) (string, error) {
	pw, err := keyringGet(k.Service, ownerID)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", domain.ErrSecretNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring: %w", err)
	}
	return pw, nil
}

// DeletePassword implements ports.SecretStore.
func (k *Keyring) DeletePassword(_ context.Context, ownerID string) error {
	err := keyringDelete(k.Service, ownerID)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("keyring: %w", err)
}
