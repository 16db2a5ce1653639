// Package gorm provides the database-backed UserStore and scs session store
// for the Secrets app. Uniqueness of usernames and (provider, external id)
// pairs is enforced by database constraints, which is what makes
// FindOrCreateByProviderID safe across processes: the loser of a concurrent
// insert race re-reads the winner's row.
//
// Open the database with gorm's TranslateError option so unique-constraint
// violations surface as gorm.ErrDuplicatedKey:
//
//	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
//	if err != nil { ... }
//	if err := gormstores.AutoMigrate(db); err != nil { ... }
//	store := gormstores.NewUserStore(db)
package gorm
