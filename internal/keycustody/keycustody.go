// Package keycustody generates agent signing keys and seals them under a
// passphrase-derived key so the private half can rest in the database
// without being readable.
package keycustody

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// kdfIterations is the PBKDF2 round count for deriving the sealing key.
	kdfIterations = 100_000

	saltSize = 16
	keySize  = 32
)

// ErrBadSeal is returned when a sealed key cannot be opened, either because
// the passphrase is wrong or the blob was tampered with.
var ErrBadSeal = errors.New("cannot open sealed key")

// SealedKey is an encrypted ed25519 private key plus the public half and the
// parameters needed to open it. All fields are hex-encoded for storage.
type SealedKey struct {
	PublicKey  string `json:"public_key"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// GenerateAgentKey creates a fresh ed25519 keypair for a session agent.
func GenerateAgentKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate agent key: %w", err)
	}
	return pub, priv, nil
}

// Seal encrypts the private key with AES-256-GCM under a key derived from
// the passphrase. Salt and nonce are random per seal, so sealing the same
// key twice never yields the same blob.
func Seal(priv ed25519.PrivateKey, passphrase string) (*SealedKey, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, priv, nil)
	return &SealedKey{
		PublicKey:  hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(ciphertext),
	}, nil
}

// Unseal decrypts a sealed key with the passphrase and checks that the
// recovered private key matches the stored public half.
func Unseal(sealed *SealedKey, passphrase string) (ed25519.PrivateKey, error) {
	salt, err := hex.DecodeString(sealed.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := hex.DecodeString(sealed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := hex.DecodeString(sealed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrBadSeal
	}
	if len(plaintext) != ed25519.PrivateKeySize {
		return nil, ErrBadSeal
	}

	priv := ed25519.PrivateKey(plaintext)
	if hex.EncodeToString(priv.Public().(ed25519.PublicKey)) != sealed.PublicKey {
		return nil, ErrBadSeal
	}
	return priv, nil
}

// Verify checks an ed25519 signature against a hex-encoded public key.
func Verify(publicKeyHex string, message, sig []byte) (bool, error) {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return false, fmt.Errorf("decode public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("public key is %d bytes, want %d", len(pub), ed25519.PublicKeySize)
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, kdfIterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}
