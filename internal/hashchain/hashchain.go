// Package hashchain holds the one-way digest that links ledger entries and
// the operator-side chain of tokens built from it.
//
// A chain is built from a secret seed: x0 = seed, x(i+1) = digest(x(i)).
// Tokens are spent from the top: x(N) bootstraps an empty ledger, and after a
// commit with x(k) the only token that authenticates is x(k-1), because the
// gate accepts a candidate whose digest equals the ledger tail.
package hashchain

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrChainExhausted = errors.New("hash chain exhausted")
	ErrUnknownTail    = errors.New("ledger tail is not part of this chain")
	ErrUnknownDigest  = errors.New("unknown digest")
)

// Digest maps a token to its one-way image, hex encoded.
type Digest func(token string) string

// MD5Hex is the default digest. Existing operator chains are MD5 based.
func MD5Hex(token string) string {
	sum := md5.Sum([]byte(token))
	return hex.EncodeToString(sum[:])
}

func SHA256Hex(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ByName resolves "md5" or "sha256".
func ByName(name string) (Digest, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md5":
		return MD5Hex, nil
	case "sha256":
		return SHA256Hex, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDigest, name)
	}
}

// Equal compares two tokens byte for byte in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Chain is a precomputed sequence of links derived from a seed.
type Chain struct {
	links []string
	index map[string]int
}

// NewChain applies digest length times starting at seed.
func NewChain(seed string, length int, digest Digest) (*Chain, error) {
	if seed == "" {
		return nil, errors.New("hashchain: empty seed")
	}
	if length < 1 {
		return nil, fmt.Errorf("hashchain: length must be positive, got %d", length)
	}
	if digest == nil {
		digest = MD5Hex
	}

	c := &Chain{
		links: make([]string, length+1),
		index: make(map[string]int, length+1),
	}
	c.links[0] = seed
	c.index[seed] = 0
	for i := 1; i <= length; i++ {
		c.links[i] = digest(c.links[i-1])
		c.index[c.links[i]] = i
	}
	return c, nil
}

// Len is the number of spendable tokens, the seed included.
func (c *Chain) Len() int {
	return len(c.links)
}

// Head is the bootstrap token, the top of the chain.
func (c *Chain) Head() string {
	return c.links[len(c.links)-1]
}

// Next returns the token that authenticates against tail. An empty tail means
// the ledger has no entries and the head is returned.
func (c *Chain) Next(tail string) (string, error) {
	if tail == "" {
		return c.Head(), nil
	}
	i, ok := c.index[tail]
	if !ok {
		return "", ErrUnknownTail
	}
	if i == 0 {
		return "", ErrChainExhausted
	}
	return c.links[i-1], nil
}

// Remaining reports how many tokens are left after tail has been spent.
func (c *Chain) Remaining(tail string) (int, error) {
	if tail == "" {
		return c.Len(), nil
	}
	i, ok := c.index[tail]
	if !ok {
		return 0, ErrUnknownTail
	}
	return i, nil
}
