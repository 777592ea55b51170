// Package secure provides password hashing, field encryption, lookup fingerprints
// and referral code generation.
package secure

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

const referralCodeBytes = 12

// ErrMalformedCiphertext is returned when a stored value cannot be decoded or opened.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewReferralCode returns a 16-character URL-safe random code.
func NewReferralCode() (string, error) {
	b := make([]byte, referralCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate referral code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NormalizeEmail lower-cases and trims an email before fingerprinting or encryption.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Vault encrypts PII fields and derives deterministic lookup fingerprints.
//
// Encryption is randomized (a fresh nonce per call) so ciphertexts are never usable
// as lookup keys; Fingerprint is the keyed, deterministic counterpart for equality lookups.
type Vault struct {
	aead  cipher.AEAD
	fpKey []byte
}

// NewVault builds a Vault from a 32-byte encryption key and a fingerprint secret of any length.
func NewVault(encryptionKey []byte, fingerprintSecret []byte) (*Vault, error) {
	if len(encryptionKey) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(encryptionKey))
	}
	if len(fingerprintSecret) == 0 {
		return nil, errors.New("fingerprint secret is required")
	}
	aead, err := chacha20poly1305.NewX(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	key := blake2b.Sum256(fingerprintSecret)
	return &Vault{aead: aead, fpKey: key[:]}, nil
}

// Encrypt seals plaintext and returns it base64url encoded. Empty input stays empty.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Empty input stays empty.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	ns := v.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrMalformedCiphertext
	}
	plain, err := v.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	return string(plain), nil
}

// Fingerprint returns the hex keyed BLAKE2b-256 digest of value.
// Callers normalize the value first (see NormalizeEmail).
func (v *Vault) Fingerprint(value string) string {
	h, err := blake2b.New256(v.fpKey)
	if err != nil {
		// fpKey is always 32 bytes, which blake2b accepts.
		panic(err)
	}
	_, _ = h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}
