package opclient_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/punchamoorthee/ledgergate/internal/api"
	"github.com/punchamoorthee/ledgergate/internal/domain"
	"github.com/punchamoorthee/ledgergate/internal/hashchain"
	"github.com/punchamoorthee/ledgergate/internal/opclient"
	"github.com/punchamoorthee/ledgergate/internal/service"
	"github.com/punchamoorthee/ledgergate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientAgainstServer(t *testing.T) {
	st := store.NewMemoryStore()
	svc := service.NewTransferService(st, nil, nil, nil)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(svc, nil, nil), nil))
	defer srv.Close()

	ctx := context.Background()
	c := opclient.New(srv.URL, srv.Client())
	chain, err := hashchain.NewChain("client-seed", 8, hashchain.MD5Hex)
	require.NoError(t, err)

	next := func() string {
		tail, _, err := c.Tail(ctx)
		require.NoError(t, err)
		tok, err := chain.Next(tail)
		require.NoError(t, err)
		return tok
	}

	_, ok, err := c.Tail(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	first, err := svc.Stage(ctx, domain.StageRequest{SenderPhone: "+1", ReceiverPhone: "+2", Amount: 4})
	require.NoError(t, err)
	second, err := svc.Stage(ctx, domain.StageRequest{SenderPhone: "+2", ReceiverPhone: "+1", Amount: 1})
	require.NoError(t, err)

	pending, err := c.Pending(ctx, next())
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	action, err := c.Approve(ctx, first, next())
	require.NoError(t, err)
	assert.Equal(t, first, action.PendingID)

	_, err = c.Approve(ctx, first, next())
	assert.ErrorIs(t, err, opclient.ErrNotFound)

	_, err = c.Reject(ctx, second, "stale")
	assert.ErrorIs(t, err, opclient.ErrUnauthenticated)

	d, err := c.Reject(ctx, second, next())
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Amount)

	stats, err := c.Stats(ctx, next())
	require.NoError(t, err)
	assert.True(t, stats.Balanced)
	assert.Equal(t, int64(2), stats.TotalAccounts)
}
