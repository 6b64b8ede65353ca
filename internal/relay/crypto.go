package relay

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of symmetric and X25519 keys.
const KeySize = 32

const envelopeType0 byte = 0

var errEnvelope = errors.New("malformed envelope")

// SymKey is a ChaCha20-Poly1305 key shared by both ends of a topic.
type SymKey [KeySize]byte

// NewSymKey returns a random symmetric key.
func NewSymKey() (SymKey, error) {
	var k SymKey
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return SymKey{}, fmt.Errorf("generating key: %w", err)
	}
	return k, nil
}

// Topic is the relay topic derived from the key: hex(sha256(key)).
func (k SymKey) Topic() string {
	sum := sha256.Sum256(k[:])
	return hex.EncodeToString(sum[:])
}

// Hex encodes the key for a pairing URI.
func (k SymKey) Hex() string { return hex.EncodeToString(k[:]) }

// ParseSymKey decodes a hex key.
func ParseSymKey(s string) (SymKey, error) {
	var k SymKey
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != KeySize {
		return k, fmt.Errorf("invalid symKey %q", s)
	}
	copy(k[:], b)
	return k, nil
}

// Seal encrypts payload into a base64 type-0 envelope:
// 0x00 | 12-byte nonce | ciphertext+tag.
func Seal(key SymKey, payload []byte) (string, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := make([]byte, 0, 1+len(nonce)+len(payload)+aead.Overhead())
	out = append(out, envelopeType0)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, payload, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a type-0 envelope produced by Seal.
func Open(key SymKey, message string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errEnvelope, err)
	}
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	if len(raw) < 1+aead.NonceSize()+aead.Overhead() || raw[0] != envelopeType0 {
		return nil, errEnvelope
	}
	nonce := raw[1 : 1+aead.NonceSize()]
	plain, err := aead.Open(nil, nonce, raw[1+aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errEnvelope, err)
	}
	return plain, nil
}

// KeyPair is an X25519 key pair used to agree on a session key.
type KeyPair struct {
	private [KeySize]byte
	Public  [KeySize]byte
}

// NewKeyPair generates an X25519 key pair.
func NewKeyPair() (*KeyPair, error) {
	kp := &KeyPair{}
	if _, err := io.ReadFull(rand.Reader, kp.private[:]); err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}
	pub, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// PublicHex encodes the public key.
func (kp *KeyPair) PublicHex() string { return hex.EncodeToString(kp.Public[:]) }

// SessionKey derives the session symmetric key from the peer's public key:
// HKDF-SHA256 over the X25519 shared secret.
func (kp *KeyPair) SessionKey(peerPublicHex string) (SymKey, error) {
	peer, err := hex.DecodeString(peerPublicHex)
	if err != nil || len(peer) != KeySize {
		return SymKey{}, fmt.Errorf("invalid peer public key %q", peerPublicHex)
	}
	shared, err := curve25519.X25519(kp.private[:], peer)
	if err != nil {
		return SymKey{}, fmt.Errorf("key agreement: %w", err)
	}
	var k SymKey
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, nil), k[:]); err != nil {
		return SymKey{}, err
	}
	return k, nil
}
