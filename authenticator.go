package secrets

// Authenticator glues the store to the active verification strategy.
type Authenticator struct {
	Store    UserStore
	Verifier Verifier
}

// Authenticate verifies a local login. The returned error distinguishes
// ErrNotFound from ErrMismatch so callers can log and reason about the two
// cases in code; the HTTP layer must still collapse both into one uniform
// "invalid credentials" response.
func (a *Authenticator) Authenticate(username, password string) (*UserRecord, error) {
	user, err := a.Store.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	if user.Credential.IsZero() {
		// Federated-only account; there is no local password to check.
		return nil, ErrMismatch
	}
	if err := a.Verifier.Verify(user.Credential, password); err != nil {
		return nil, err
	}
	return user, nil
}

// Register creates a local account, encoding the password with the active
// strategy before it ever reaches the store. Returns ErrDuplicateIdentity
// when the username is taken.
func (a *Authenticator) Register(username, password string) (*UserRecord, error) {
	material, err := a.Verifier.Material(password)
	if err != nil {
		return nil, err
	}
	return a.Store.CreateUser(username, material)
}
