// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package config

// Credential encryption for GitHub access and refresh tokens at rest.
//
//   - AES-256-GCM with a random 12-byte nonce per message
//   - Key derived from TOKEN_ENC_KEY_BASE64 with HKDF-SHA256
//   - Stored form: base64(nonce || ciphertext || tag)

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	credentialEncryptionSalt = "github-invite-plus-user-tokens"
	credentialEncryptionInfo = "token-encryption-v1"

	aesKeySize     = 32
	gcmNonceSize   = 12
	minKeyMaterial = 32
)

var (
	// ErrShortKey is returned when the key material is under 32 bytes.
	ErrShortKey = errors.New("encryption key material must be at least 32 bytes")

	// ErrEmptyPlaintext is returned when attempting to encrypt empty data.
	ErrEmptyPlaintext = errors.New("plaintext cannot be empty")

	// ErrEmptyCiphertext is returned when attempting to decrypt empty data.
	ErrEmptyCiphertext = errors.New("ciphertext cannot be empty")

	// ErrDecryptionFailed is returned for tampered data or a wrong key.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or authentication tag")

	// ErrInvalidCiphertext is returned when the stored form cannot be decoded.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
)

// CredentialEncryptor provides AES-256-GCM encryption for stored tokens.
// It is safe for concurrent use.
type CredentialEncryptor struct {
	cipher cipher.AEAD
}

// NewCredentialEncryptor derives an AES-256 key from keyMaterial.
func NewCredentialEncryptor(keyMaterial []byte) (*CredentialEncryptor, error) {
	if len(keyMaterial) < minKeyMaterial {
		return nil, ErrShortKey
	}

	key, err := deriveKey(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &CredentialEncryptor{cipher: gcm}, nil
}

// NewCredentialEncryptorFromConfig builds the encryptor from SecurityConfig.
func NewCredentialEncryptorFromConfig(cfg SecurityConfig) (*CredentialEncryptor, error) {
	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	return NewCredentialEncryptor(key)
}

// Encrypt returns base64(nonce || ciphertext || tag).
func (e *CredentialEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.cipher.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any modification of the stored form yields
// ErrDecryptionFailed or ErrInvalidCiphertext, never altered plaintext.
func (e *CredentialEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", ErrEmptyCiphertext
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed: %s", ErrInvalidCiphertext, err.Error())
	}

	if len(data) < gcmNonceSize+1+e.cipher.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrInvalidCiphertext)
	}

	plaintext, err := e.cipher.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// MaskCredential returns "****..." plus the last four characters.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) <= 4 {
		return "****"
	}
	return "****..." + credential[len(credential)-4:]
}

func deriveKey(keyMaterial []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, keyMaterial, []byte(credentialEncryptionSalt), []byte(credentialEncryptionInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to read HKDF output: %w", err)
	}
	return key, nil
}

// ValidateEncryptionSetup performs a round trip to prove the key works.
func (e *CredentialEncryptor) ValidateEncryptionSetup() error {
	const sample = "encryption-validation-test"

	encrypted, err := e.Encrypt(sample)
	if err != nil {
		return fmt.Errorf("encryption test failed: %w", err)
	}
	decrypted, err := e.Decrypt(encrypted)
	if err != nil {
		return fmt.Errorf("decryption test failed: %w", err)
	}
	if decrypted != sample {
		return errors.New("round-trip validation failed: data mismatch")
	}
	return nil
}
