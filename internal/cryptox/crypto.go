// Package cryptox holds the key handling shared by client and server:
// NEAR-style ed25519 key pairs, escrow checksums, and the AES-GCM sealing the
// custody service applies to keys at rest.
package cryptox

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
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// KeyTypePrefix is the curve tag wallet stacks expect in front of base58 keys.
const KeyTypePrefix = "ed25519:"

var ErrMalformedKey = errors.New("malformed key")

// KeyPair is a freshly generated signing key in wallet-stack encoding.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

// GenerateKeyPair creates an ed25519 key pair encoded as "ed25519:<base58>".
// The private half encodes the 64-byte seed||public form.
func GenerateKeyPair() (*KeyPair, error) {
	return generateKeyPair(rand.Reader)
}

func generateKeyPair(r io.Reader) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &KeyPair{
		PublicKey:  KeyTypePrefix + base58.Encode(pub),
		PrivateKey: KeyTypePrefix + base58.Encode(priv),
	}, nil
}

// ParsePrivateKey decodes an "ed25519:<base58>" private key.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := decodeTagged(s)
	if err != nil {
		return nil, err
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("%w: private key has %d bytes", ErrMalformedKey, len(raw))
	}
}

// PublicKeyOf returns the encoded public half of an encoded private key.
func PublicKeyOf(privateKey string) (string, error) {
	priv, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	pub := priv.Public().(ed25519.PublicKey)
	return KeyTypePrefix + base58.Encode(pub), nil
}

// ValidatePublicKey checks an "ed25519:<base58>" public key.
func ValidatePublicKey(s string) error {
	raw, err := decodeTagged(s)
	if err != nil {
		return err
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key has %d bytes", ErrMalformedKey, len(raw))
	}
	return nil
}

func decodeTagged(s string) ([]byte, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(s), KeyTypePrefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrMalformedKey, KeyTypePrefix)
	}
	raw, err := base58.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return raw, nil
}

// Checksum is a short digest of a private key that can be logged and
// compared without revealing the key.
func Checksum(privateKey string) string {
	sum := sha256.Sum256([]byte("novakeeper/escrow-checksum/v1:" + privateKey))
	return hex.EncodeToString(sum[:8])
}

// DeriveMasterKey stretches the custody passphrase into a 32-byte key.
func DeriveMasterKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// RecordKey derives the per-escrow AES key from the master key. info binds
// the key to the record (account id, network).
func RecordKey(masterKey []byte, info ...string) ([]byte, error) {
	r := hkdf.New(sha256.New, masterKey, nil, []byte(strings.Join(info, "|")))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive record key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with AES-GCM under key. aad is authenticated but
// not encrypted. A fresh nonce is returned alongside the ciphertext.
func Seal(key, plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nonce, nil
}

// Open reverses Seal.
func Open(key, ciphertext, nonce, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
