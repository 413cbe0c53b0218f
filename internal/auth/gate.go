// Package auth verifies operator requests against the ledger tail.
//
// The gate keeps no session state. A request carries a candidate token and is
// accepted when digest(candidate) equals the commit token of the most recent
// ledger entry. While the ledger is empty any non-empty candidate is accepted
// (trust on first use). The gate never generates candidates.
package auth

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/punchamoorthee/ledgergate/internal/hashchain"
)

// MaxCandidateLen bounds the accepted token size.
const MaxCandidateLen = 512

var ErrUnauthenticated = errors.New("unauthenticated")

// TailReader exposes the commit token of the ledger tail. ok is false when
// the ledger has no entries.
type TailReader interface {
	TailToken(ctx context.Context) (token string, ok bool, err error)
}

type Gate struct {
	digest hashchain.Digest
}

func NewGate(digest hashchain.Digest) *Gate {
	if digest == nil {
		digest = hashchain.MD5Hex
	}
	return &Gate{digest: digest}
}

// Verify checks candidate against an already-read tail. On success the
// candidate is returned and becomes the commit token of the next mutation.
func (g *Gate) Verify(tail string, hasTail bool, candidate string) (string, error) {
	if !wellFormed(candidate) {
		return "", ErrUnauthenticated
	}
	if !hasTail {
		return candidate, nil
	}
	if !hashchain.Equal(g.digest(candidate), tail) {
		return "", ErrUnauthenticated
	}
	return candidate, nil
}

// Authenticate reads the current tail and verifies candidate against it.
// Store failures are returned wrapped and are distinct from ErrUnauthenticated.
func (g *Gate) Authenticate(ctx context.Context, tails TailReader, candidate string) (string, error) {
	if !wellFormed(candidate) {
		return "", ErrUnauthenticated
	}
	tail, ok, err := tails.TailToken(ctx)
	if err != nil {
		return "", fmt.Errorf("read ledger tail: %w", err)
	}
	return g.Verify(tail, ok, candidate)
}

func wellFormed(candidate string) bool {
	return candidate != "" && len(candidate) <= MaxCandidateLen && utf8.ValidString(candidate)
}
