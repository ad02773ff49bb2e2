package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ShortIDLen is how many leading characters of an id the CLI prints.
const ShortIDLen = 8

// eventNamespace scopes the name-based UUIDs of scheduled events.
var eventNamespace = uuid.MustParse("6f1c2b9e-4d7a-5e3b-9c8f-2a1d0e7b6c54")

// newID issues owner ids. Owner ids also name keyring entries, so they
// never change once issued.
func newID() string {
	return uuid.NewString()
}

// eventID derives an event id from everything that defines the event, so
// planning the same day twice yields the same ids.
func eventID(ownerID string, kind EventKind, target int, at time.Time) string {
	name := fmt.Sprintf("%s/%s/%d/%d", ownerID, kind, target, at.UnixNano())
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

// ShortID trims an id to ShortIDLen characters for display.
func ShortID(id string) string {
	if len(id) > ShortIDLen {
		return id[:ShortIDLen]
	}
	return id
}
