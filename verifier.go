package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Strategy selects how credential material is stored and verified. The
// choice is made once per deployment and never mixed within one running
// instance.
type Strategy string

const (
	// StrategyPlaintext stores the password as-is and accepts on byte
	// equality. Weakest option; kept for compatibility with legacy data
	// only. Offers no protection if the store is compromised.
	StrategyPlaintext Strategy = "plaintext"

	// StrategyAESGCM encrypts the password with a process-wide symmetric
	// key before persistence and compares after decrypting. Protects the
	// data at rest but not against an attacker who also holds the key.
	StrategyAESGCM Strategy = "aesgcm"

	// StrategyBcrypt stores a salted, slow, one-way hash. The only
	// strategy safe against offline store compromise; the recommended
	// default.
	StrategyBcrypt Strategy = "bcrypt"
)

// CredentialMaterial is the stored encoding of a login secret. Exactly one
// scheme is active per record.
type CredentialMaterial struct {
	Scheme string `json:"scheme"`
	Value  string `json:"value"`
	// Nonce is hex-encoded and only present for the aesgcm scheme.
	Nonce string `json:"nonce,omitempty"`
}

// IsZero reports whether no credential material is set, as on pure-federated
// records.
func (m CredentialMaterial) IsZero() bool {
	return m.Scheme == "" && m.Value == ""
}

// Verifier turns a plaintext password into storable material and checks a
// presented password against stored material. Verify returns ErrMismatch on
// any failure to verify - wrong password, wrong scheme, undecryptable
// ciphertext - and never panics on malformed input.
type Verifier interface {
	Strategy() Strategy
	Material(plaintext string) (CredentialMaterial, error)
	Verify(stored CredentialMaterial, presented string) error
}

// VerifierOptions carries the per-strategy configuration. SealKey is the
// AES key for StrategyAESGCM (16, 24 or 32 bytes); Hasher overrides the
// default bcrypt hasher for StrategyBcrypt.
type VerifierOptions struct {
	SealKey []byte
	Hasher  Hasher
}

// NewVerifier builds the verifier for the configured strategy.
func NewVerifier(strategy Strategy, opts VerifierOptions) (Verifier, error) {
	switch strategy {
	case StrategyPlaintext:
		return &PlaintextVerifier{}, nil
	case StrategyAESGCM:
		return NewSealedVerifier(opts.SealKey)
	case StrategyBcrypt:
		hasher := opts.Hasher
		if hasher == nil {
			hasher = &BcryptHasher{}
		}
		return &HashedVerifier{Hasher: hasher}, nil
	default:
		return nil, fmt.Errorf("unknown credential strategy %q", strategy)
	}
}

// =============================================================================
// Plaintext
// =============================================================================

// PlaintextVerifier accepts iff the presented password equals the stored
// value. The comparison is constant-time even though the strategy itself is
// already the weakest on offer.
type PlaintextVerifier struct{}

func (v *PlaintextVerifier) Strategy() Strategy { return StrategyPlaintext }

func (v *PlaintextVerifier) Material(plaintext string) (CredentialMaterial, error) {
	return CredentialMaterial{Scheme: string(StrategyPlaintext), Value: plaintext}, nil
}

func (v *PlaintextVerifier) Verify(stored CredentialMaterial, presented string) error {
	if stored.Scheme != string(StrategyPlaintext) {
		return ErrMismatch
	}
	if subtle.ConstantTimeCompare([]byte(stored.Value), []byte(presented)) != 1 {
		return ErrMismatch
	}
	return nil
}

// =============================================================================
// AES-GCM encrypted at rest
// =============================================================================

// SealedVerifier encrypts credential material with a process-wide key before
// persistence. The key comes from configuration and is never persisted next
// to the data. Decryption failure (wrong key, corrupted ciphertext) verifies
// as a mismatch rather than an error - a record we cannot read is a record
// we cannot accept.
type SealedVerifier struct {
	aead cipher.AEAD
}

func NewSealedVerifier(key []byte) (*SealedVerifier, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &SealedVerifier{aead: aead}, nil
}

func (v *SealedVerifier) Strategy() Strategy { return StrategyAESGCM }

func (v *SealedVerifier) Material(plaintext string) (CredentialMaterial, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return CredentialMaterial{}, fmt.Errorf("generating nonce: %w", err)
	}
	ciphertext := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return CredentialMaterial{
		Scheme: string(StrategyAESGCM),
		Value:  hex.EncodeToString(ciphertext),
		Nonce:  hex.EncodeToString(nonce),
	}, nil
}

func (v *SealedVerifier) Verify(stored CredentialMaterial, presented string) error {
	if stored.Scheme != string(StrategyAESGCM) {
		return ErrMismatch
	}
	ciphertext, err := hex.DecodeString(stored.Value)
	if err != nil {
		return ErrMismatch
	}
	nonce, err := hex.DecodeString(stored.Nonce)
	if err != nil || len(nonce) != v.aead.NonceSize() {
		return ErrMismatch
	}
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrMismatch
	}
	if subtle.ConstantTimeCompare(plaintext, []byte(presented)) != 1 {
		return ErrMismatch
	}
	return nil
}

// =============================================================================
// Salted slow hash
// =============================================================================

// Hasher is a pluggable salted one-way function. Compare returns ErrMismatch
// when the plaintext does not match the hash.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Compare(hash, plaintext string) error
}

// BcryptHasher is the default Hasher. Cost 0 means bcrypt.DefaultCost; the
// cost factor is deliberately tunable so deployments can trade login latency
// against brute-force resistance.
type BcryptHasher struct {
	Cost int
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Compare(hash, plaintext string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		return ErrMismatch
	}
	return nil
}

// HashedVerifier stores a salted slow hash of the secret and recomputes it on
// verification. Salting and hash parameters belong to the Hasher, so swapping
// the hashing plugin does not change the external contract.
type HashedVerifier struct {
	Hasher Hasher
}

func (v *HashedVerifier) Strategy() Strategy { return StrategyBcrypt }

func (v *HashedVerifier) Material(plaintext string) (CredentialMaterial, error) {
	hash, err := v.Hasher.Hash(plaintext)
	if err != nil {
		return CredentialMaterial{}, err
	}
	return CredentialMaterial{Scheme: string(StrategyBcrypt), Value: hash}, nil
}

func (v *HashedVerifier) Verify(stored CredentialMaterial, presented string) error {
	if stored.Scheme != string(StrategyBcrypt) {
		return ErrMismatch
	}
	return v.Hasher.Compare(stored.Value, presented)
}
