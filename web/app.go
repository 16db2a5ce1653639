// Package web wires the auth core into the Secrets application: the route
// table, the form handlers and the federation callbacks.
package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	xoauth2 "golang.org/x/oauth2"

	"github.com/secretsapp/secrets"
	"github.com/secretsapp/secrets/oauth2"
)

// App is the Secrets web application.
type App struct {
	Store    secrets.UserStore
	Binder   *secrets.SessionBinder
	Renderer Renderer

	localAuth  *secrets.LocalAuth
	middleware *secrets.Middleware
	providers  []*oauth2.Provider
}

// New assembles the application. Register federation adapters with
// RegisterProvider before calling Handler.
func New(store secrets.UserStore, auth *secrets.Authenticator, binder *secrets.SessionBinder, renderer Renderer) *App {
	app := &App{
		Store:    store,
		Binder:   binder,
		Renderer: renderer,
	}
	app.localAuth = &secrets.LocalAuth{
		Authenticator: auth,
		HandleUser:    app.afterAuth,
		OnLoginError:  app.loginErrorHandler,
		OnSignupError: app.signupErrorHandler,
	}
	app.middleware = &secrets.Middleware{Binder: binder}
	return app
}

// RegisterProvider hooks a federation adapter into the app: its assertions
// resolve through the store and its failures route back to the login page.
func (a *App) RegisterProvider(p *oauth2.Provider) *App {
	p.HandleAssertion = a.handleAssertion
	p.AuthFailureURL = "/login"
	a.providers = append(a.providers, p)
	return a
}

// Handler builds the route table. Everything is wrapped in the session
// middleware so handlers can read and write session state.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", a.renderView("home")).Methods(http.MethodGet)
	r.HandleFunc("/register", a.renderView("register")).Methods(http.MethodGet)
	r.HandleFunc("/register", a.localAuth.HandleSignup).Methods(http.MethodPost)
	r.HandleFunc("/login", a.renderView("login")).Methods(http.MethodGet)
	r.HandleFunc("/login", a.localAuth.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", a.handleLogout).Methods(http.MethodGet)

	r.Handle("/secrets", a.middleware.RequireUser(http.HandlerFunc(a.handleSecrets))).Methods(http.MethodGet)
	r.Handle("/submit", a.middleware.RequireUser(http.HandlerFunc(a.renderView("submit")))).Methods(http.MethodGet)
	r.Handle("/submit", a.middleware.RequireUser(http.HandlerFunc(a.handleSubmit))).Methods(http.MethodPost)

	for _, p := range a.providers {
		r.HandleFunc("/auth/"+p.Name, p.Redirect).Methods(http.MethodGet)
		r.HandleFunc("/auth/"+p.Name+"/secrets", p.Callback).Methods(http.MethodGet)
	}

	return a.Binder.Session.LoadAndSave(r)
}

// afterAuth is the single success path for every authentication method:
// bind the session, set the API token cookie, land on the secrets page.
func (a *App) afterAuth(authtype, provider string, user *secrets.UserRecord, w http.ResponseWriter, r *http.Request) {
	if err := a.Binder.Issue(r.Context(), user.ID); err != nil {
		slog.Error("issuing session", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if token, err := a.Binder.IssueAuthToken(user.ID); err == nil {
		a.Binder.SetAuthCookie(w, token)
	} else {
		slog.Warn("issuing auth token", "err", err)
	}
	slog.Info("user logged in", "authtype", authtype, "provider", provider, "userId", user.ID)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (a *App) handleAssertion(provider, subjectID string, token *xoauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
	user, err := a.Store.FindOrCreateByProviderID(provider, subjectID, userInfo)
	if err != nil {
		slog.Error("resolving federated identity", "provider", provider, "err", err)
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}
	a.afterAuth("oauth", provider, user, w, r)
}

func (a *App) handleSecrets(w http.ResponseWriter, r *http.Request) {
	all, err := a.Store.ListSecrets()
	if err != nil {
		slog.Error("listing secrets", "err", err)
		http.Error(w, "Service unavailable", http.StatusInternalServerError)
		return
	}
	a.Renderer.Render(w, "secrets", map[string]any{"Secrets": all})
}

func (a *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	text := r.FormValue("secret")
	if text == "" {
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}
	if err := a.Store.AppendSecret(secrets.LoggedInUserId(r), text); err != nil {
		slog.Error("appending secret", "err", err)
		http.Error(w, "Service unavailable", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.Binder.Destroy(r.Context()); err != nil {
		slog.Warn("destroying session", "err", err)
	}
	a.Binder.ClearAuthCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) renderView(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.Renderer.Render(w, view, nil)
	}
}

func (a *App) loginErrorHandler(err *secrets.AuthError, w http.ResponseWriter, r *http.Request) bool {
	w.WriteHeader(http.StatusUnauthorized)
	a.Renderer.Render(w, "login", map[string]any{"Error": err.Message})
	return true
}

func (a *App) signupErrorHandler(err *secrets.AuthError, w http.ResponseWriter, r *http.Request) bool {
	w.WriteHeader(http.StatusBadRequest)
	a.Renderer.Render(w, "register", map[string]any{"Error": err.Message})
	return true
}
