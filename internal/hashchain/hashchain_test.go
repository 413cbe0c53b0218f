package hashchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigests(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", MD5Hex("hello"))
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", SHA256Hex("hello"))
}

func TestByName(t *testing.T) {
	d, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, MD5Hex("x"), d("x"))

	d, err = ByName("SHA256")
	require.NoError(t, err)
	assert.Equal(t, SHA256Hex("x"), d("x"))

	_, err = ByName("crc32")
	assert.ErrorIs(t, err, ErrUnknownDigest)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("abc", "abc"))
	assert.False(t, Equal("abc", "abd"))
	assert.False(t, Equal("abc", "ab"))
}

func TestChainWalk(t *testing.T) {
	c, err := NewChain("seed", 3, MD5Hex)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())

	head := c.Head()
	assert.Equal(t, MD5Hex(MD5Hex(MD5Hex("seed"))), head)

	first, err := c.Next("")
	require.NoError(t, err)
	assert.Equal(t, head, first)

	// After first is committed the tail is first; its preimage is next.
	second, err := c.Next(first)
	require.NoError(t, err)
	assert.Equal(t, first, MD5Hex(second))

	third, err := c.Next(second)
	require.NoError(t, err)
	assert.Equal(t, second, MD5Hex(third))

	last, err := c.Next(third)
	require.NoError(t, err)
	assert.Equal(t, "seed", last)

	_, err = c.Next(last)
	assert.ErrorIs(t, err, ErrChainExhausted)

	_, err = c.Next("not-in-chain")
	assert.ErrorIs(t, err, ErrUnknownTail)
}

func TestChainRemaining(t *testing.T) {
	c, err := NewChain("seed", 5, SHA256Hex)
	require.NoError(t, err)

	n, err := c.Remaining("")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = c.Remaining(c.Head())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	next, _ := c.Next(c.Head())
	n, err = c.Remaining(next)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestNewChainValidation(t *testing.T) {
	_, err := NewChain("", 3, nil)
	assert.Error(t, err)

	_, err = NewChain("seed", 0, nil)
	assert.Error(t, err)

	c, err := NewChain("seed", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, MD5Hex("seed"), c.Head())
}
