// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func newTestEncryptor(t *testing.T) *TokenEncryptor {
	t.Helper()
	key, err := GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("GenerateEncryptionKey() error = %v", err)
	}
	enc, err := NewTokenEncryptor(key)
	if err != nil {
		t.Fatalf("NewTokenEncryptor() error = %v", err)
	}
	return enc
}

func TestNewTokenEncryptor(t *testing.T) {
	t.Parallel()

	enc, err := NewTokenEncryptor("")
	if err != nil || enc != nil {
		t.Errorf("empty key = (%v, %v), want (nil, nil)", enc, err)
	}
	if _, err := NewTokenEncryptor("not base64!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	if _, err := NewTokenEncryptor(short); err == nil {
		t.Error("expected error for short key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	enc := newTestEncryptor(t)
	const token = "EAAGm0PX4ZCpsBAKZCZAZA-long-lived-page-token"

	ct, err := enc.Encrypt(token)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !strings.HasPrefix(ct, encryptedPrefix) || strings.Contains(ct, token) {
		t.Fatalf("ciphertext %q does not look encrypted", ct)
	}

	ct2, _ := enc.Encrypt(token)
	if ct == ct2 {
		t.Error("two encryptions should differ by nonce")
	}

	pt, err := enc.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if pt != token {
		t.Errorf("Decrypt() = %q, want %q", pt, token)
	}
}

func TestDecryptLegacyPlaintext(t *testing.T) {
	t.Parallel()

	enc := newTestEncryptor(t)
	pt, err := enc.Decrypt("EAAplaintext")
	if err != nil || pt != "EAAplaintext" {
		t.Errorf("Decrypt(plaintext) = (%q, %v)", pt, err)
	}
}

func TestDecryptFailures(t *testing.T) {
	t.Parallel()

	enc := newTestEncryptor(t)
	other := newTestEncryptor(t)

	ct, err := enc.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := other.Decrypt(ct); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("wrong key error = %v, want ErrDecryptionFailed", err)
	}
	if _, err := enc.Decrypt(encryptedPrefix + "%%%"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("bad base64 error = %v, want ErrInvalidCiphertext", err)
	}
	if _, err := enc.Decrypt(encryptedPrefix + "AAAA"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("short data error = %v, want ErrInvalidCiphertext", err)
	}

	var disabled *TokenEncryptor
	if _, err := disabled.Decrypt(ct); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("disabled decrypt of ciphertext = %v, want ErrDecryptionFailed", err)
	}
}

func TestNilEncryptorPassThrough(t *testing.T) {
	t.Parallel()

	var enc *TokenEncryptor
	if enc.IsEnabled() {
		t.Error("nil encryptor should be disabled")
	}
	ct, err := enc.Encrypt("token")
	if err != nil || ct != "token" {
		t.Errorf("Encrypt() = (%q, %v), want pass-through", ct, err)
	}
}
