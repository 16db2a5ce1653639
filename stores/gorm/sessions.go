package gorm

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionStore implements scs.Store on the sessions table, so login state
// survives process restarts and is shared across instances.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Find returns the data for a session token, treating expired rows as
// absent.
func (s *SessionStore) Find(token string) ([]byte, bool, error) {
	var model SessionModel
	err := s.db.First(&model, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if time.Now().After(model.Expiry) {
		return nil, false, nil
	}
	return model.Data, true, nil
}

// Commit upserts the session row.
func (s *SessionStore) Commit(token string, b []byte, expiry time.Time) error {
	model := &SessionModel{Token: token, Data: b, Expiry: expiry}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expiry"}),
	}).Create(model).Error
}

// Delete removes a session row. Deleting an absent token is not an error.
func (s *SessionStore) Delete(token string) error {
	return s.db.Delete(&SessionModel{}, "token = ?", token).Error
}

// Cleanup removes expired rows; call periodically from the host process.
func (s *SessionStore) Cleanup() error {
	return s.db.Delete(&SessionModel{}, "expiry < ?", time.Now()).Error
}
