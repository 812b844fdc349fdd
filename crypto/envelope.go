// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/aitema/hinschg-core/apperr"
)

const (
	aesKeySize = 32 // AES-256
	saltSize   = 16
	nonceSize  = 12
)

// FieldContext is the caller-supplied binding for a single encrypted
// value. The context is always "<record_id>:<field_name>" or an
// equivalent tenant/record fingerprint; absence of context is a bug, not
// a fallback, so the zero value is rejected rather than silently
// defaulting to an empty AAD.
type FieldContext struct {
	RecordID string
	Field    string
}

func (c FieldContext) String() string {
	return fmt.Sprintf("%s:%s", c.RecordID, c.Field)
}

func (c FieldContext) valid() bool {
	return c.RecordID != "" && c.Field != ""
}

// Envelope implements field-level envelope encryption: AES-256-GCM with a
// random 96-bit nonce and 128-bit tag, keyed by a per-value subkey derived
// from a process-wide master key via HKDF-SHA-256. Two encryptions of the
// same plaintext under the same context never collide because the salt
// and nonce are both fresh random values.
type Envelope struct {
	masterKey [32]byte
}

// NewEnvelope derives the in-memory master key from a configured secret.
// The secret must be at least 32 characters; it is never stored verbatim,
// only its SHA-256 digest lives in process memory.
func NewEnvelope(secret string) (*Envelope, error) {
	if len(secret) < 32 {
		return nil, apperr.Validationf("secret", "encryption secret must be at least 32 characters")
	}
	return &Envelope{masterKey: sha256.Sum256([]byte(secret))}, nil
}

func (e *Envelope) deriveSubkey(salt []byte, context string) ([]byte, error) {
	reader := hkdf.New(sha256.New, e.masterKey[:], salt, []byte(context))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt encrypts plaintext under ctx, binding ctx as additional
// authenticated data. An empty plaintext passes through unencrypted, so
// sentinel/empty values never waste a nonce on meaningless ciphertext.
func (e *Envelope) Encrypt(ctx FieldContext, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if !ctx.valid() {
		return "", apperr.Wrap(apperr.Internal, "encryption context missing record id or field name", nil)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", apperr.CryptoFailuref(err)
	}

	contextStr := ctx.String()
	key, err := e.deriveSubkey(salt, contextStr)
	if err != nil {
		return "", apperr.CryptoFailuref(err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", apperr.CryptoFailuref(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apperr.CryptoFailuref(err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", apperr.CryptoFailuref(err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), []byte(contextStr))

	combined := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	combined = append(combined, salt...)
	combined = append(combined, nonce...)
	combined = append(combined, ciphertext...)

	return base64.StdEncoding.EncodeToString(combined), nil
}

// Decrypt reverses Encrypt. A context mismatch fails the AEAD tag check
// and surfaces as the same opaque apperr.CryptoFailure as a corrupted
// value, by design: the two failure modes must be indistinguishable to
// the caller.
func (e *Envelope) Decrypt(ctx FieldContext, encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	if !ctx.valid() {
		return "", apperr.Wrap(apperr.Internal, "decryption context missing record id or field name", nil)
	}

	combined, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", apperr.CryptoFailuref(err)
	}
	if len(combined) < saltSize+nonceSize {
		return "", apperr.CryptoFailuref(fmt.Errorf("ciphertext too short"))
	}

	salt := combined[:saltSize]
	nonce := combined[saltSize : saltSize+nonceSize]
	ciphertext := combined[saltSize+nonceSize:]

	contextStr := ctx.String()
	key, err := e.deriveSubkey(salt, contextStr)
	if err != nil {
		return "", apperr.CryptoFailuref(err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", apperr.CryptoFailuref(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apperr.CryptoFailuref(err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(contextStr))
	if err != nil {
		return "", apperr.CryptoFailuref(err)
	}

	return string(plaintext), nil
}

// SearchHash produces a deterministic digest for equality-only lookups
// over encrypted columns. It must never be used for password or
// credential hashing — there is no per-value salt, only a fixed
// configuration-level salt string, which is exactly what makes equality
// search possible.
func SearchHash(saltString, value string) string {
	h := sha256.Sum256([]byte(saltString + ":" + value))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
