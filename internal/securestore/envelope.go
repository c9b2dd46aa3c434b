// Package securestore seals small secrets and state files under a
// passphrase: Argon2id derives the key, XChaCha20-Poly1305 seals the data.
package securestore

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	formatVersion = 1
	kdfName       = "argon2id"
	magic         = "LNWENC1\n"
	saltLen       = 16
)

var (
	ErrAuthFailed = errors.New("securestore authentication failed")
	ErrInvalid    = errors.New("securestore envelope is invalid")
	ErrPlaintext  = errors.New("securestore data is not encrypted")
)

// kdfParams travel with every blob so they can be raised later without
// breaking old files.
type kdfParams struct {
	Time     uint32 `json:"kdf_time"`
	MemoryKB uint32 `json:"kdf_memory_kb"`
	Threads  uint8  `json:"kdf_threads"`
}

var currentParams = kdfParams{Time: 2, MemoryKB: 64 * 1024, Threads: 1}

type envelope struct {
	Version uint32 `json:"version"`
	KDF     string `json:"kdf"`
	kdfParams
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func (p kdfParams) key(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.MemoryKB, p.Threads, chacha20poly1305.KeySize)
}

// Encrypt seals plaintext and returns the magic-prefixed JSON envelope.
func Encrypt(passphrase string, plaintext []byte) ([]byte, error) {
	env := envelope{
		Version:   formatVersion,
		KDF:       kdfName,
		kdfParams: currentParams,
		Salt:      make([]byte, saltLen),
		Nonce:     make([]byte, chacha20poly1305.NonceSizeX),
	}
	if _, err := rand.Read(env.Salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	if _, err := rand.Read(env.Nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	key := env.key(passphrase, env.Salt)
	defer clear(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	env.Ciphertext = aead.Seal(nil, env.Nonce, plaintext, []byte(magic))

	var buf bytes.Buffer
	buf.WriteString(magic)
	if err := json.NewEncoder(&buf).Encode(env); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decrypt opens a blob produced by Encrypt. Data without the magic prefix is
// reported as ErrPlaintext so callers can tell legacy files from corrupt ones.
func Decrypt(passphrase string, data []byte) ([]byte, error) {
	body, ok := bytes.CutPrefix(data, []byte(magic))
	if !ok {
		return nil, ErrPlaintext
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrInvalid
	}
	if env.Version != formatVersion || env.KDF != kdfName || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrInvalid
	}
	key := env.key(passphrase, env.Salt)
	defer clear(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(magic))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// EncryptString is Encrypt in unpadded base64url, for secrets handed across
// string-only boundaries.
func EncryptString(passphrase, plaintext string) (string, error) {
	raw, err := Encrypt(passphrase, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecryptString(passphrase, encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", ErrInvalid
	}
	plain, err := Decrypt(passphrase, raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
