package crypto

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestEncryptRoundTrip(t *testing.T) {
	svc, err := New(hex.EncodeToString([]byte(strings.Repeat("k", 32))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ct, err := svc.EncryptString("refresh-token")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	plain, err := svc.DecryptString(ct)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plain != "refresh-token" {
		t.Fatalf("expected refresh-token, got %q", plain)
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	svc, err := New("a passphrase that is not 32 bytes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ct, err := svc.Encrypt([]byte("payslip"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	ct[len(ct)-1] ^= 0xff
	if _, err := svc.Decrypt(ct); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected ErrTampered, got %v", err)
	}
	if _, err := svc.Decrypt([]byte("short")); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected ErrTampered for short input, got %v", err)
	}
}

func TestUnconfigured(t *testing.T) {
	svc, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Configured() {
		t.Fatalf("expected unconfigured service")
	}
	if _, err := svc.Encrypt([]byte("x")); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := New("short"); err == nil {
		t.Fatalf("expected error for short key")
	}
}
