package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var (
	ErrEmptySecret = errors.New("sealing secret is empty")
	ErrSealedData  = errors.New("sealed data is corrupt or was sealed with another secret")
)

// Sealer encrypts small values at rest with a key derived from a secret.
// Each sealed value carries its own salt and nonce.
type Sealer struct {
	secret []byte
}

// NewSealer returns a Sealer for secret
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Sealer{secret: []byte(secret)}, nil
}

func (s *Sealer) key(salt []byte) *[keySize]byte {
	var key [keySize]byte
	copy(key[:], argon2.IDKey(s.secret, salt, argonTime, argonMemory, argonThreads, keySize))
	return &key
}

// Seal encrypts plaintext and returns it base64 encoded as salt, nonce and box
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	buf := make([]byte, saltSize+nonceSize, saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], buf[saltSize:])

	sealed := secretbox.Seal(buf, plaintext, &nonce, s.key(buf[:saltSize]))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal
func (s *Sealer) Open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < saltSize+nonceSize+secretbox.Overhead {
		return nil, ErrSealedData
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[saltSize:saltSize+nonceSize])

	plaintext, ok := secretbox.Open(nil, raw[saltSize+nonceSize:], &nonce, s.key(raw[:saltSize]))
	if !ok {
		return nil, ErrSealedData
	}
	return plaintext, nil
}
