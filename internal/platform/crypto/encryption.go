package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrNotConfigured = errors.New("encryption key not configured")
	// ErrTampered means the GCM tag did not verify. Callers must treat it as fatal.
	ErrTampered = errors.New("ciphertext failed authentication")
)

const keyInfo = "hrpay data encryption v1"

type Service struct {
	aead cipher.AEAD
}

// New accepts a 32-byte key as hex, base64 or raw text. Keys of any other
// length are stretched to 32 bytes with HKDF-SHA256.
func New(key string) (*Service, error) {
	if key == "" {
		return &Service{}, nil
	}
	decoded := decodeKey(key)
	if len(decoded) < 16 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be at least 16 bytes")
	}
	if len(decoded) != 32 {
		stretched := make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, decoded, nil, []byte(keyInfo)), stretched); err != nil {
			return nil, err
		}
		decoded = stretched
	}
	block, err := aes.NewCipher(decoded)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Service{aead: aead}, nil
}

func (s *Service) Configured() bool {
	return s != nil && s.aead != nil
}

// Encrypt returns nonce||ciphertext.
func (s *Service) Encrypt(plain []byte) ([]byte, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plain, nil), nil
}

func (s *Service) Decrypt(ciphertext []byte) ([]byte, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if len(ciphertext) < s.aead.NonceSize()+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrTampered)
	}
	nonce := ciphertext[:s.aead.NonceSize()]
	plain, err := s.aead.Open(nil, nonce, ciphertext[s.aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTampered, err)
	}
	return plain, nil
}

func (s *Service) EncryptString(value string) ([]byte, error) {
	return s.Encrypt([]byte(value))
}

func (s *Service) DecryptString(value []byte) (string, error) {
	plain, err := s.Decrypt(value)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func decodeKey(raw string) []byte {
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded
	}
	return []byte(raw)
}
