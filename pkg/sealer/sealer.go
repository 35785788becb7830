package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var ErrInvalidSeal = errors.New("invalid seal")

// Sealer produces URL-safe opaque references that only the holder of the
// key can open. Each Seal call uses a fresh nonce, so sealing the same value
// twice yields different strings.
type Sealer struct {
	aead    cipher.AEAD
	purpose []byte
}

// New builds a Sealer from a base64-encoded 32-byte key. purpose is bound as
// additional data, so a seal made for one purpose does not open under another.
func New(encodedKey, purpose string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode seal key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("seal key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aead, purpose: []byte(purpose)}, nil
}

func (s *Sealer) Seal(value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := s.aead.Seal(nonce, nonce, []byte(value), s.purpose)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

func (s *Sealer) Open(seal string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(seal)
	if err != nil {
		return "", ErrInvalidSeal
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize+s.aead.Overhead() {
		return "", ErrInvalidSeal
	}

	pt, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], s.purpose)
	if err != nil {
		return "", ErrInvalidSeal
	}
	return string(pt), nil
}
