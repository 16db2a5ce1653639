package gorm

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/secretsapp/secrets"
)

// AutoMigrate runs database migrations for all tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&ProviderIDModel{},
		&SecretModel{},
		&SessionModel{},
	)
}

// UserStore implements secrets.UserStore on a gorm database.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(username string, material secrets.CredentialMaterial) (*secrets.UserRecord, error) {
	model := &UserModel{
		ID:         secrets.NewUserID(),
		Username:   &username,
		CredScheme: material.Scheme,
		CredValue:  material.Value,
		CredNonce:  material.Nonce,
	}
	if err := s.db.Create(model).Error; err != nil {
		return nil, mapErr(err)
	}
	return model.toRecord(nil, nil), nil
}

func (s *UserStore) FindByUsername(username string) (*secrets.UserRecord, error) {
	var model UserModel
	if err := s.db.First(&model, "username = ?", username).Error; err != nil {
		return nil, mapErr(err)
	}
	return s.loadRecord(&model)
}

func (s *UserStore) FindByProviderID(provider, externalID string) (*secrets.UserRecord, error) {
	var link ProviderIDModel
	if err := s.db.First(&link, "provider = ? AND external_id = ?", provider, externalID).Error; err != nil {
		return nil, mapErr(err)
	}
	var model UserModel
	if err := s.db.First(&model, "id = ?", link.UserID).Error; err != nil {
		return nil, mapErr(err)
	}
	return s.loadRecord(&model)
}

func (s *UserStore) FindOrCreateByProviderID(provider, externalID string, profile map[string]any) (*secrets.UserRecord, error) {
	user, err := s.FindByProviderID(provider, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, secrets.ErrNotFound) {
		return nil, err
	}

	model := &UserModel{
		ID:      secrets.NewUserID(),
		Profile: JSONMap(profile),
	}
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Create(&ProviderIDModel{
			Provider:   provider,
			ExternalID: externalID,
			UserID:     model.ID,
		}).Error
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			// Lost a concurrent-callback race; the winner's record is the
			// one true record for this external id.
			return s.FindByProviderID(provider, externalID)
		}
		return nil, mapErr(txErr)
	}

	return model.toRecord([]ProviderIDModel{{Provider: provider, ExternalID: externalID, UserID: model.ID}}, nil), nil
}

func (s *UserStore) AppendSecret(userID, text string) error {
	var model UserModel
	if err := s.db.First(&model, "id = ?", userID).Error; err != nil {
		return mapErr(err)
	}
	if err := s.db.Create(&SecretModel{UserID: userID, Text: text, CreatedAt: time.Now()}).Error; err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *UserStore) ListSecrets() ([]secrets.Secret, error) {
	var rows []SecretModel
	if err := s.db.Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	out := make([]secrets.Secret, 0, len(rows))
	for _, row := range rows {
		out = append(out, secrets.Secret{Text: row.Text, CreatedAt: row.CreatedAt})
	}
	return out, nil
}

func (s *UserStore) loadRecord(model *UserModel) (*secrets.UserRecord, error) {
	var providerIDs []ProviderIDModel
	if err := s.db.Where("user_id = ?", model.ID).Find(&providerIDs).Error; err != nil {
		return nil, mapErr(err)
	}
	var secretRows []SecretModel
	if err := s.db.Where("user_id = ?", model.ID).Order("created_at asc").Find(&secretRows).Error; err != nil {
		return nil, mapErr(err)
	}
	return model.toRecord(providerIDs, secretRows), nil
}

// mapErr translates gorm failures onto the store contract's sentinel errors.
func mapErr(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return secrets.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return secrets.ErrDuplicateIdentity
	default:
		return fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
}
