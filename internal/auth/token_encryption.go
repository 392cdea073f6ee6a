// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Token encryption errors
var (
	// ErrDecryptionFailed indicates the decryption operation failed.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidCiphertext indicates the ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// encryptedPrefix marks values written by Encrypt. Values without it are
// treated as plaintext tokens stored before encryption was enabled.
const encryptedPrefix = "enc:v1:"

const defaultEncryptionContext = "pagesight-token-encryption"

// TokenEncryptor provides AES-GCM encryption for platform access tokens at rest.
// The key is derived from a master key with HKDF-SHA256.
//
// A nil *TokenEncryptor is valid and passes values through unchanged.
type TokenEncryptor struct {
	aead cipher.AEAD
}

// NewTokenEncryptor creates a token encryptor from a base64 master key.
// Returns nil, nil if masterKey is empty (encryption disabled).
func NewTokenEncryptor(masterKey string) (*TokenEncryptor, error) {
	if masterKey == "" {
		return nil, nil
	}

	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) < 32 {
		return nil, errors.New("master key must be at least 32 bytes")
	}

	derivedKey, err := deriveKey(key, []byte(defaultEncryptionContext), 32)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}
	return &TokenEncryptor{aead: aead}, nil
}

func deriveKey(secret, context []byte, keyLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, context)
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt returns the prefixed base64 ciphertext with the nonce prepended.
// Empty strings stay empty.
func (e *TokenEncryptor) Encrypt(plaintext string) (string, error) {
	if !e.IsEnabled() || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Unprefixed values are returned as-is.
func (e *TokenEncryptor) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	if !e.IsEnabled() {
		return "", fmt.Errorf("%w: value is encrypted but no key is configured", ErrDecryptionFailed)
	}

	data, err := base64.StdEncoding.DecodeString(value[len(encryptedPrefix):])
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize+1+e.aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptionFailed, err.Error())
	}
	return string(plaintext), nil
}

// IsEnabled returns true if encryption is enabled.
func (e *TokenEncryptor) IsEnabled() bool {
	return e != nil && e.aead != nil
}

// GenerateEncryptionKey returns a random 256-bit key, base64 encoded.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
