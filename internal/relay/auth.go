package relay

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

const authTTL = 24 * time.Hour

// didKeyPrefix is the multicodec prefix for an ed25519 public key.
var didKeyPrefix = []byte{0xed, 0x01}

// authToken builds the EdDSA JWT the relay expects in the auth query
// parameter. The issuer is a throwaway did:key for this connection.
func authToken(aud string, now time.Time) (string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", err
	}
	sub := make([]byte, 32)
	if _, err := rand.Read(sub); err != nil {
		return "", err
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss": didKey(pub),
		"sub": hex.EncodeToString(sub),
		"aud": aud,
		"iat": now.Unix(),
		"exp": now.Add(authTTL).Unix(),
	})
	return tok.SignedString(priv)
}

// didKey encodes an ed25519 public key as did:key in base58btc.
func didKey(pub ed25519.PublicKey) string {
	return "did:key:z" + base58.Encode(append(append([]byte{}, didKeyPrefix...), pub...))
}

