// Package secrets implements the credential-verification and session-identity
// core of the Secrets application.
//
// The package separates authentication into four collaborating pieces:
//
// UserStore: durable persistence of one record per user, reachable either by
// username (local accounts) or by a (provider, external id) pair (federated
// accounts). Implementations live in the stores (file-backed, for development
// and tests) and stores/gorm (database-backed) packages.
//
// Verifier: decides whether a presented password matches the stored credential
// material. Three interchangeable strategies exist - plaintext equality,
// AES-GCM encrypted-at-rest, and salted slow hashing via a pluggable Hasher
// (bcrypt by default). The strategy is a deployment-wide choice made once at
// startup; hashing is the recommended default.
//
// SessionBinder: converts a successful verification into a server-side session
// and resolves it back to a user id on later requests. Sessions are managed by
// alexedwards/scs; a signed JWT cookie is issued alongside for API callers.
//
// Federation adapters (package oauth2): exchange a provider assertion for a
// local user record, creating one on first sight of an external id.
//
// # Basic Usage
//
//	store := stores.NewFSUserStore("/path/to/storage")
//	verifier, _ := secrets.NewVerifier(secrets.StrategyBcrypt, secrets.VerifierOptions{})
//	auth := &secrets.Authenticator{Store: store, Verifier: verifier}
//
//	binder := secrets.NewSessionBinder("my-jwt-secret")
//	localAuth := &secrets.LocalAuth{
//	    Authenticator: auth,
//	    HandleUser: func(authtype, provider string, user *secrets.UserRecord,
//	                    w http.ResponseWriter, r *http.Request) {
//	        binder.Issue(r.Context(), user.ID)
//	        http.Redirect(w, r, "/secrets", http.StatusFound)
//	    },
//	}
//
//	mux.Handle("POST /login", http.HandlerFunc(localAuth.HandleLogin))
//	mux.Handle("POST /register", http.HandlerFunc(localAuth.HandleSignup))
//
// # Security
//
// Failed logins never reveal whether the username exists or the password was
// wrong: both cases produce the same response. The plaintext and encrypted
// strategies exist for compatibility and teaching purposes only; they are not
// safe against a compromised store and the constructors say so loudly.
package secrets
