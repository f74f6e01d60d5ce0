// Package streamid derives the bounded physical key used to index a stream
// from its caller-supplied name.
package streamid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/streamstore/internal/streams"
)

// Domain is the hash domain prefix for stream keys.
// The version suffix leaves room for a future algorithm change.
const Domain = "streamstore/stream/v1"

// KeyLength is the length of every derived key (hex-encoded SHA-256).
const KeyLength = sha256.Size * 2

// ErrInvalidID is returned for empty or whitespace-only stream ids. It
// matches streams.ErrInvalidArgument.
var ErrInvalidID = fmt.Errorf("%w: stream id must not be empty or whitespace", streams.ErrInvalidArgument)

// Identity pairs a stream's external name with its physical index key.
//
// External is kept verbatim for display and for page results. Key is what
// the backend indexes on.
type Identity struct {
	External string
	Key      string
}

// Derive computes the Identity for an external stream id.
//
// Key = hex(SHA256(Domain + 0x00 + NFC(external))). Names that differ only
// in Unicode normalisation form map to the same key. Distinct names mapping
// to the same key are not detected.
func Derive(external string) (Identity, error) {
	if strings.TrimSpace(external) == "" {
		return Identity{}, ErrInvalidID
	}
	return Identity{External: external, Key: hashWithDomain(Domain, norm.NFC.String(external))}, nil
}

// MustDerive is like Derive but panics on error.
// Use only in tests or with ids known to be valid.
func MustDerive(external string) Identity {
	id, err := Derive(external)
	if err != nil {
		panic(fmt.Sprintf("streamid: %v", err))
	}
	return id
}

func (id Identity) String() string {
	return id.External
}

func hashWithDomain(domain, data string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
