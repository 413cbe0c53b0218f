package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/punchamoorthee/ledgergate/internal/hashchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTail struct {
	token string
	ok    bool
	err   error
}

func (f fixedTail) TailToken(context.Context) (string, bool, error) {
	return f.token, f.ok, f.err
}

func TestVerify(t *testing.T) {
	g := NewGate(hashchain.MD5Hex)
	preimage := "operator-secret"
	tail := hashchain.MD5Hex(preimage)

	tests := []struct {
		name      string
		tail      string
		hasTail   bool
		candidate string
		wantErr   bool
	}{
		{name: "bootstrap accepts any non-empty", hasTail: false, candidate: "anything"},
		{name: "bootstrap rejects empty", hasTail: false, candidate: "", wantErr: true},
		{name: "preimage of tail", tail: tail, hasTail: true, candidate: preimage},
		{name: "tail itself is not its own preimage", tail: tail, hasTail: true, candidate: tail, wantErr: true},
		{name: "wrong token", tail: tail, hasTail: true, candidate: "guess", wantErr: true},
		{name: "empty with tail", tail: tail, hasTail: true, candidate: "", wantErr: true},
		{name: "oversized", hasTail: false, candidate: strings.Repeat("a", MaxCandidateLen+1), wantErr: true},
		{name: "invalid utf8", hasTail: false, candidate: "\xff\xfe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Verify(tt.tail, tt.hasTail, tt.candidate)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthenticated)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.candidate, got)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	g := NewGate(hashchain.SHA256Hex)
	ctx := context.Background()

	t.Run("Reads tail", func(t *testing.T) {
		got, err := g.Authenticate(ctx, fixedTail{token: hashchain.SHA256Hex("k"), ok: true}, "k")
		require.NoError(t, err)
		assert.Equal(t, "k", got)
	})

	t.Run("Store failure is not an auth failure", func(t *testing.T) {
		boom := errors.New("connection reset")
		_, err := g.Authenticate(ctx, fixedTail{err: boom}, "k")
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("Empty candidate never touches the store", func(t *testing.T) {
		_, err := g.Authenticate(ctx, fixedTail{err: errors.New("must not be read")}, "")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestNewGateDefaultsToMD5(t *testing.T) {
	g := NewGate(nil)
	_, err := g.Verify(hashchain.MD5Hex("x"), true, "x")
	assert.NoError(t, err)
}
