package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/secretsapp/secrets"
)

// JSONMap stores a free-form map as a jsonb column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// UserModel is one user record. Username is nullable: pure-federated
// accounts have none, and a NULL never collides with the unique index.
type UserModel struct {
	ID       string  `gorm:"primaryKey;size:64"`
	Username *string `gorm:"uniqueIndex;size:255"`

	CredScheme string `gorm:"size:16"`
	CredValue  string `gorm:"size:512"`
	CredNonce  string `gorm:"size:64"`

	Profile JSONMap `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

// ProviderIDModel maps a provider-assigned subject id to a user. The
// composite primary key is the unique constraint that keeps repeated
// federated logins from ever creating a duplicate record.
type ProviderIDModel struct {
	Provider   string    `gorm:"primaryKey;size:32"`
	ExternalID string    `gorm:"primaryKey;size:255"`
	UserID     string    `gorm:"size:64;index"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (ProviderIDModel) TableName() string {
	return "provider_ids"
}

// SecretModel is one submitted secret.
type SecretModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"size:64;index"`
	Text      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SecretModel) TableName() string {
	return "secrets"
}

// SessionModel backs the scs session store.
type SessionModel struct {
	Token  string    `gorm:"primaryKey;size:64"`
	Data   []byte    `gorm:"type:bytea"`
	Expiry time.Time `gorm:"index"`
}

func (SessionModel) TableName() string {
	return "sessions"
}

func (m *UserModel) toRecord(providerIDs []ProviderIDModel, secretRows []SecretModel) *secrets.UserRecord {
	record := &secrets.UserRecord{
		ID: m.ID,
		Credential: secrets.CredentialMaterial{
			Scheme: m.CredScheme,
			Value:  m.CredValue,
			Nonce:  m.CredNonce,
		},
		Profile:   m.Profile,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Username != nil {
		record.Username = *m.Username
	}
	if len(providerIDs) > 0 {
		record.ProviderIDs = make(map[string]string, len(providerIDs))
		for _, p := range providerIDs {
			record.ProviderIDs[p.Provider] = p.ExternalID
		}
	}
	for _, row := range secretRows {
		record.Secrets = append(record.Secrets, secrets.Secret{Text: row.Text, CreatedAt: row.CreatedAt})
	}
	return record
}
