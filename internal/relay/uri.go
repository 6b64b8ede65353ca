package relay

import (
	"fmt"
	"net/url"
	"strings"
)

// Pairing is the out-of-band secret shown to the wallet as a URI or QR code.
type Pairing struct {
	Topic  string
	SymKey SymKey
}

// NewPairing creates a pairing with a fresh key.
func NewPairing() (Pairing, error) {
	k, err := NewSymKey()
	if err != nil {
		return Pairing{}, err
	}
	return Pairing{Topic: k.Topic(), SymKey: k}, nil
}

// URI renders wc:<topic>@2?relay-protocol=irn&symKey=<hex>.
func (p Pairing) URI() string {
	return fmt.Sprintf("wc:%s@2?relay-protocol=irn&symKey=%s", p.Topic, p.SymKey.Hex())
}

// ParseURI parses a pairing URI and checks the topic matches the key.
func ParseURI(s string) (Pairing, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "wc:")
	if !ok {
		return Pairing{}, fmt.Errorf("pairing URI must start with wc: (%q)", s)
	}
	head, query, _ := strings.Cut(rest, "?")
	topic, version, _ := strings.Cut(head, "@")
	if version != "2" {
		return Pairing{}, fmt.Errorf("unsupported pairing version %q", version)
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		return Pairing{}, fmt.Errorf("parsing pairing URI: %w", err)
	}
	if p := q.Get("relay-protocol"); p != "" && p != "irn" {
		return Pairing{}, fmt.Errorf("unsupported relay protocol %q", p)
	}
	key, err := ParseSymKey(q.Get("symKey"))
	if err != nil {
		return Pairing{}, err
	}
	if key.Topic() != topic {
		return Pairing{}, fmt.Errorf("pairing topic does not match symKey")
	}
	return Pairing{Topic: topic, SymKey: key}, nil
}
