package vault

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, errNew := New("master-secret", "")
	if errNew != nil {
		t.Fatalf("new vault: %v", errNew)
	}

	plaintext := "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	envelope, errEncrypt := v.Encrypt(plaintext)
	if errEncrypt != nil {
		t.Fatalf("encrypt: %v", errEncrypt)
	}
	if !IsEncryptedEnvelope(envelope) {
		t.Fatalf("envelope not recognized: %q", envelope)
	}

	decrypted, errDecrypt := v.Decrypt(envelope)
	if errDecrypt != nil {
		t.Fatalf("decrypt: %v", errDecrypt)
	}
	if decrypted != plaintext {
		t.Fatalf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptNeverReusesSaltOrIV(t *testing.T) {
	v, _ := New("master-secret", "")

	first, errFirst := v.Encrypt("same plaintext")
	if errFirst != nil {
		t.Fatalf("encrypt: %v", errFirst)
	}
	second, errSecond := v.Encrypt("same plaintext")
	if errSecond != nil {
		t.Fatalf("encrypt: %v", errSecond)
	}
	if first == second {
		t.Fatalf("two encryptions produced identical envelopes")
	}

	firstParts := strings.Split(first, ":")
	secondParts := strings.Split(second, ":")
	if firstParts[1] == secondParts[1] {
		t.Fatalf("salt reused across encryptions")
	}
	if firstParts[2] == secondParts[2] {
		t.Fatalf("iv reused across encryptions")
	}
	if firstParts[3] == secondParts[3] {
		t.Fatalf("ciphertext identical across encryptions")
	}
}

func TestDecryptFailsClosedOnTamper(t *testing.T) {
	v, _ := New("master-secret", "")
	envelope, _ := v.Encrypt("secret key material")
	parts := strings.Split(envelope, ":")

	// Flip one byte in each mutable segment and expect a hard failure.
	for idx := 1; idx <= 4; idx++ {
		raw, errDecode := base64.StdEncoding.DecodeString(parts[idx])
		if errDecode != nil {
			t.Fatalf("decode part %d: %v", idx, errDecode)
		}
		raw[0] ^= 0xff
		tampered := make([]string, len(parts))
		copy(tampered, parts)
		tampered[idx] = base64.StdEncoding.EncodeToString(raw)

		if _, errDecrypt := v.Decrypt(strings.Join(tampered, ":")); !errors.Is(errDecrypt, ErrDecryptFailed) {
			t.Fatalf("part %d: tampered decrypt = %v, want ErrDecryptFailed", idx, errDecrypt)
		}
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	v1, _ := New("master-one", "")
	v2, _ := New("master-two", "")

	envelope, _ := v1.Encrypt("secret")
	if _, errDecrypt := v2.Decrypt(envelope); !errors.Is(errDecrypt, ErrDecryptFailed) {
		t.Fatalf("wrong-key decrypt = %v, want ErrDecryptFailed", errDecrypt)
	}
}

func TestIsEncryptedEnvelopeRejectsLegacyKeys(t *testing.T) {
	legacy := []string{
		"",
		"4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		"0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		"v2:AAAA:BBBB:CCCC:DDDD",
		"v1:notbase64!!:x:y:z",
	}
	for _, raw := range legacy {
		if IsEncryptedEnvelope(raw) {
			t.Fatalf("IsEncryptedEnvelope(%q) = true, want false", raw)
		}
	}
}

func TestMigrateIfNeeded(t *testing.T) {
	v, _ := New("master-secret", "")

	legacy := "legacy-plaintext-key"
	plaintext, needsMigration, errMigrate := v.MigrateIfNeeded(legacy)
	if errMigrate != nil {
		t.Fatalf("migrate legacy: %v", errMigrate)
	}
	if !needsMigration {
		t.Fatalf("expected legacy key to need migration")
	}
	if plaintext != legacy {
		t.Fatalf("plaintext = %q, want %q", plaintext, legacy)
	}

	envelope, _ := v.Encrypt(plaintext)
	plaintext, needsMigration, errMigrate = v.MigrateIfNeeded(envelope)
	if errMigrate != nil {
		t.Fatalf("migrate envelope: %v", errMigrate)
	}
	if needsMigration {
		t.Fatalf("re-read of an envelope must not need migration")
	}
	if plaintext != legacy {
		t.Fatalf("plaintext after migration = %q, want %q", plaintext, legacy)
	}
}

func TestFallbackSecretDerivesWorkingVault(t *testing.T) {
	v, errNew := New("", "long-lived-bot-token")
	if errNew != nil {
		t.Fatalf("new vault from fallback: %v", errNew)
	}
	envelope, errEncrypt := v.Encrypt("secret")
	if errEncrypt != nil {
		t.Fatalf("encrypt: %v", errEncrypt)
	}
	decrypted, errDecrypt := v.Decrypt(envelope)
	if errDecrypt != nil {
		t.Fatalf("decrypt: %v", errDecrypt)
	}
	if decrypted != "secret" {
		t.Fatalf("decrypted = %q, want %q", decrypted, "secret")
	}
}

func TestNewRequiresSomeSecret(t *testing.T) {
	if _, errNew := New("", ""); !errors.Is(errNew, ErrNoSecret) {
		t.Fatalf("New with no secrets = %v, want ErrNoSecret", errNew)
	}
}
