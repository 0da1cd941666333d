// Package wallet generates custodial signing keys and derives ledger
// addresses from them. The address is the last 20 bytes of a Keccak-256 hash
// over the uncompressed public point, rendered as 0x-prefixed hex.
package wallet

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const addressHexLen = 40

// ErrInvalidKey is returned when a private key cannot be parsed.
var ErrInvalidKey = errors.New("wallet: invalid private key")

// Generate creates a new private key and returns it hex-encoded together
// with its derived address.
func Generate() (privateKeyHex, address string, err error) {
	priv, errGen := ecdh.P256().GenerateKey(rand.Reader)
	if errGen != nil {
		return "", "", fmt.Errorf("wallet: generate key: %w", errGen)
	}
	address, errAddr := addressOf(priv)
	if errAddr != nil {
		return "", "", errAddr
	}
	return hex.EncodeToString(priv.Bytes()), address, nil
}

// Address re-derives the address for a hex-encoded private key. The
// derivation is deterministic: the same key always yields the same address.
func Address(privateKeyHex string) (string, error) {
	raw, errDecode := hex.DecodeString(privateKeyHex)
	if errDecode != nil {
		return "", ErrInvalidKey
	}
	priv, errParse := ecdh.P256().NewPrivateKey(raw)
	if errParse != nil {
		return "", ErrInvalidKey
	}
	return addressOf(priv)
}

// IsHexAddress reports whether s is a 0x-prefixed 40-hex-char address.
func IsHexAddress(s string) bool {
	if len(s) != 2+addressHexLen {
		return false
	}
	if s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func addressOf(priv *ecdh.PrivateKey) (string, error) {
	pub := priv.PublicKey().Bytes()
	if len(pub) < 2 {
		return "", ErrInvalidKey
	}
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(pub[1:]) // drop the uncompressed-point prefix byte
	sum := hasher.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-20:]), nil
}
