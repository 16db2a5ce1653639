// The secrets command runs the Secrets web application: local
// username/password auth plus OAuth2 federation, with a file-backed or
// Postgres-backed store selected by configuration.
package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/secretsapp/secrets"
	"github.com/secretsapp/secrets/config"
	"github.com/secretsapp/secrets/oauth2"
	"github.com/secretsapp/secrets/stores"
	gormstores "github.com/secretsapp/secrets/stores/gorm"
	"github.com/secretsapp/secrets/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	binder := secrets.NewSessionBinder(cfg.JWTSecretKey)
	binder.SessionTimeout = time.Duration(cfg.SessionTimeoutSeconds) * time.Second
	binder.EnsureDefaults()

	store, err := buildStore(cfg, binder)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	verifier, err := buildVerifier(cfg)
	if err != nil {
		log.Fatalf("verifier: %v", err)
	}

	renderer, err := web.NewTemplateRenderer(cfg.TemplatesDir)
	if err != nil {
		log.Fatalf("templates: %v", err)
	}

	auth := &secrets.Authenticator{Store: store, Verifier: verifier}
	app := web.New(store, auth, binder, renderer)
	registerProviders(app, cfg)

	slog.Info("starting secrets app", "addr", cfg.ListenAddr, "strategy", cfg.AuthStrategy)
	if err := http.ListenAndServe(cfg.ListenAddr, app.Handler()); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// buildStore selects the Postgres store when DATABASE_URL is set, otherwise
// the file-backed store. With Postgres the session data moves into the same
// database so sessions survive restarts.
func buildStore(cfg *config.Config, binder *secrets.SessionBinder) (secrets.UserStore, error) {
	if cfg.DatabaseURL == "" {
		slog.Info("using file-backed store", "path", cfg.StoragePath)
		return stores.NewFSUserStore(cfg.StoragePath), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	if err := gormstores.AutoMigrate(db); err != nil {
		return nil, err
	}
	binder.Session.Store = gormstores.NewSessionStore(db)
	slog.Info("using database store")
	return gormstores.NewUserStore(db), nil
}

func buildVerifier(cfg *config.Config) (secrets.Verifier, error) {
	key, err := cfg.SealKey()
	if err != nil {
		return nil, err
	}
	return secrets.NewVerifier(secrets.Strategy(cfg.AuthStrategy), secrets.VerifierOptions{
		SealKey: key,
		Hasher:  &secrets.BcryptHasher{Cost: cfg.BcryptCost},
	})
}

func registerProviders(app *web.App, cfg *config.Config) {
	type provider struct {
		name       string
		id, secret string
		construct  func(id, secret, callback string, h oauth2.HandleAssertionFunc) *oauth2.Provider
	}
	for _, p := range []provider{
		{"google", cfg.GoogleClientID, cfg.GoogleClientSecret, oauth2.NewGoogle},
		{"github", cfg.GithubClientID, cfg.GithubClientSecret, oauth2.NewGithub},
		{"facebook", cfg.FacebookClientID, cfg.FacebookClientSecret, oauth2.NewFacebook},
		{"twitter", cfg.TwitterClientID, cfg.TwitterClientSecret, oauth2.NewTwitter},
	} {
		if p.id == "" || p.secret == "" {
			continue
		}
		app.RegisterProvider(p.construct(p.id, p.secret, cfg.CallbackURL(p.name), nil))
		slog.Info("enabled oauth provider", "provider", p.name)
	}
}
