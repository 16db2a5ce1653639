package secrets

import (
	"time"

	"github.com/google/uuid"
)

// Secret is one free-text confession contributed by a user after login.
type Secret struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRecord is one account. A record is reachable by username (local
// accounts) or by exactly one external id per provider (federated accounts).
// Pure-federated records have no username and empty credential material.
type UserRecord struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`

	// Credential holds exactly one encoding of the login secret. The
	// encoding is a deployment-wide choice, not a per-record one; records
	// written under a different strategy fail verification rather than
	// being reinterpreted.
	Credential CredentialMaterial `json:"credential,omitempty"`

	// ProviderIDs maps provider name ("google", "github", ...) to the
	// provider-assigned subject id.
	ProviderIDs map[string]string `json:"provider_ids,omitempty"`

	// Profile carries whatever the provider told us (name, email, picture).
	Profile map[string]any `json:"profile,omitempty"`

	Secrets []Secret `json:"secrets,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStore persists user records. All mutations are durable before the call
// returns. Implementations map their backend's failure modes onto the
// sentinel errors in this package: ErrNotFound, ErrDuplicateIdentity and
// ErrStoreUnavailable.
type UserStore interface {
	// CreateUser registers a local account. Returns ErrDuplicateIdentity
	// if the username is taken.
	CreateUser(username string, material CredentialMaterial) (*UserRecord, error)

	// FindByUsername looks up a local account. Returns ErrNotFound if no
	// record has that username.
	FindByUsername(username string) (*UserRecord, error)

	// FindByProviderID looks up a federated account by its provider-assigned
	// subject id. Returns ErrNotFound when the pair has never been seen.
	FindByProviderID(provider, externalID string) (*UserRecord, error)

	// FindOrCreateByProviderID resolves a federated login, creating a record
	// on first sight of the external id. The operation is atomic: concurrent
	// calls with the same (provider, externalID) pair yield exactly one
	// record and all callers resolve to the same user id.
	FindOrCreateByProviderID(provider, externalID string, profile map[string]any) (*UserRecord, error)

	// AppendSecret adds a secret to a user's record. Returns ErrNotFound if
	// the user id does not exist.
	AppendSecret(userID, text string) error

	// ListSecrets returns every secret across all users, oldest first.
	// Users who have submitted nothing simply contribute no entries.
	ListSecrets() ([]Secret, error)
}

// NewUserID assigns the opaque, immutable identifier for a new record.
func NewUserID() string {
	return uuid.NewString()
}
