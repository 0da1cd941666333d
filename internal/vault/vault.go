// Package vault encrypts custodial private keys at rest. Each secret is
// stored as a versioned envelope carrying its own random salt and IV, so two
// encryptions of the same plaintext never collide. Decryption is
// authenticated and fails closed.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

const (
	envelopeVersion = "v1"

	saltSize = 16
	ivSize   = 12
	tagSize  = 16
	keySize  = 32

	// kdfIterations is the PBKDF2-SHA256 work factor.
	kdfIterations = 100_000

	// fallbackPrefix domain-separates master keys derived from a fallback
	// secret so the same secret used elsewhere yields an unrelated key.
	fallbackPrefix = "gardenbot-vault-v1:"
)

// ErrDecryptFailed is returned when an envelope cannot be authenticated or
// parsed. No partial plaintext is ever returned alongside it.
var ErrDecryptFailed = errors.New("vault: decryption failed")

// ErrNoSecret is returned by New when neither secret source is configured.
var ErrNoSecret = errors.New("vault: no master secret configured")

// Vault derives per-envelope keys from a master secret and performs
// authenticated encryption of custodial keys.
type Vault struct {
	master []byte
}

// New constructs a Vault from the configured master secret. When master is
// empty but fallback is set, a master is derived deterministically from the
// fallback and an operational warning is logged; this keeps existing
// deployments functional but should be corrected.
func New(master, fallback string) (*Vault, error) {
	master = strings.TrimSpace(master)
	if master != "" {
		return &Vault{master: []byte(master)}, nil
	}
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		return nil, ErrNoSecret
	}
	derived := sha256.Sum256([]byte(fallbackPrefix + fallback))
	log.Warn("vault: no master secret configured, deriving one from the fallback secret; set a dedicated master secret")
	return &Vault{master: derived[:]}, nil
}

// Encrypt seals plaintext into a fresh envelope with a random salt and IV.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if v == nil || len(v.master) == 0 {
		return "", ErrNoSecret
	}

	salt := make([]byte, saltSize)
	if _, errRead := rand.Read(salt); errRead != nil {
		return "", fmt.Errorf("vault: salt: %w", errRead)
	}
	iv := make([]byte, ivSize)
	if _, errRead := rand.Read(iv); errRead != nil {
		return "", fmt.Errorf("vault: iv: %w", errRead)
	}

	aead, errAEAD := v.aead(salt)
	if errAEAD != nil {
		return "", errAEAD
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	parts := []string{
		envelopeVersion,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(tag),
	}
	return strings.Join(parts, ":"), nil
}

// Decrypt opens an envelope. Any tamper, truncation, or wrong-key condition
// yields ErrDecryptFailed.
func (v *Vault) Decrypt(envelope string) (string, error) {
	if v == nil || len(v.master) == 0 {
		return "", ErrNoSecret
	}
	salt, iv, ciphertext, tag, errParse := parseEnvelope(envelope)
	if errParse != nil {
		return "", ErrDecryptFailed
	}

	aead, errAEAD := v.aead(salt)
	if errAEAD != nil {
		return "", errAEAD
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, errOpen := aead.Open(nil, iv, sealed, nil)
	if errOpen != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// IsEncryptedEnvelope reports whether raw has the structural markers of a
// vault envelope. Legacy plaintext keys lack them.
func IsEncryptedEnvelope(raw string) bool {
	_, _, _, _, errParse := parseEnvelope(raw)
	return errParse == nil
}

// MigrateIfNeeded returns the plaintext key for raw, which may be either an
// envelope or a legacy plaintext key. needsMigration is true when raw was
// plaintext and the caller should persist a freshly encrypted envelope.
func (v *Vault) MigrateIfNeeded(raw string) (plaintext string, needsMigration bool, err error) {
	if !IsEncryptedEnvelope(raw) {
		return raw, true, nil
	}
	decrypted, errDecrypt := v.Decrypt(raw)
	if errDecrypt != nil {
		return "", false, errDecrypt
	}
	return decrypted, false, nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.master, salt, kdfIterations, keySize, sha256.New)
	block, errCipher := aes.NewCipher(key)
	if errCipher != nil {
		return nil, fmt.Errorf("vault: cipher: %w", errCipher)
	}
	aead, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return nil, fmt.Errorf("vault: gcm: %w", errGCM)
	}
	return aead, nil
}

func parseEnvelope(envelope string) (salt, iv, ciphertext, tag []byte, err error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 5 || parts[0] != envelopeVersion {
		return nil, nil, nil, nil, ErrDecryptFailed
	}
	salt, errSalt := base64.StdEncoding.DecodeString(parts[1])
	if errSalt != nil || len(salt) != saltSize {
		return nil, nil, nil, nil, ErrDecryptFailed
	}
	iv, errIV := base64.StdEncoding.DecodeString(parts[2])
	if errIV != nil || len(iv) != ivSize {
		return nil, nil, nil, nil, ErrDecryptFailed
	}
	ciphertext, errCT := base64.StdEncoding.DecodeString(parts[3])
	if errCT != nil {
		return nil, nil, nil, nil, ErrDecryptFailed
	}
	tag, errTag := base64.StdEncoding.DecodeString(parts[4])
	if errTag != nil || len(tag) != tagSize {
		return nil, nil, nil, nil, ErrDecryptFailed
	}
	return salt, iv, ciphertext, tag, nil
}
