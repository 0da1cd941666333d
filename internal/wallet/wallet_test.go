package wallet

import (
	"errors"
	"testing"
)

func TestGenerateProducesValidAddress(t *testing.T) {
	privHex, address, errGen := Generate()
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if privHex == "" {
		t.Fatalf("empty private key")
	}
	if !IsHexAddress(address) {
		t.Fatalf("address %q is not a valid hex address", address)
	}
}

func TestAddressDerivationIsDeterministic(t *testing.T) {
	privHex, address, errGen := Generate()
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	for i := 0; i < 3; i++ {
		derived, errAddr := Address(privHex)
		if errAddr != nil {
			t.Fatalf("derive %d: %v", i, errAddr)
		}
		if derived != address {
			t.Fatalf("derive %d: address = %q, want %q", i, derived, address)
		}
	}
}

func TestGenerateProducesDistinctKeys(t *testing.T) {
	priv1, addr1, _ := Generate()
	priv2, addr2, _ := Generate()
	if priv1 == priv2 {
		t.Fatalf("two generated keys are identical")
	}
	if addr1 == addr2 {
		t.Fatalf("two generated addresses are identical")
	}
}

func TestAddressRejectsInvalidKeys(t *testing.T) {
	for _, raw := range []string{"", "zz", "deadbeef"} {
		if _, errAddr := Address(raw); !errors.Is(errAddr, ErrInvalidKey) {
			t.Fatalf("Address(%q) = %v, want ErrInvalidKey", raw, errAddr)
		}
	}
}

func TestIsHexAddress(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", true},
		{"0xabcdef0123456789abcdef0123456789abcdef01", true},
		{"0Xabcdef0123456789abcdef0123456789abcdef01", true},
		{"abcdef0123456789abcdef0123456789abcdef01", false},
		{"0xabcdef0123456789abcdef0123456789abcdef0", false},
		{"0xabcdef0123456789abcdef0123456789abcdef012", false},
		{"0xghijkl0123456789abcdef0123456789abcdef01", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsHexAddress(tc.in); got != tc.want {
			t.Fatalf("IsHexAddress(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
