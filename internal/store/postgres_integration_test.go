//go:build integration

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/ledgergate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate(dsn, nil))
	// Second run is a no-op.
	require.NoError(t, Migrate(dsn, nil))

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestIntegration_PostgresStore_CommitAndDiscard(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	_, ok, err := s.TailToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	var approveID, discardID int64
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if approveID, err = tx.InsertPending(ctx, &domain.PendingAction{
			SenderPhone: "+100", ReceiverPhone: "+200", Amount: 50, Comment: "lunch",
		}); err != nil {
			return err
		}
		discardID, err = tx.InsertPending(ctx, &domain.PendingAction{
			SenderPhone: "+200", ReceiverPhone: "+300", Amount: 7,
		})
		return err
	}))
	assert.Less(t, approveID, discardID)

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "lunch", pending[0].Comment)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.TakePending(ctx, approveID)
		if err != nil {
			return err
		}
		_, err = tx.Commit(ctx, &domain.CommittedAction{
			PendingID: p.ID, SenderPhone: p.SenderPhone, ReceiverPhone: p.ReceiverPhone,
			Amount: p.Amount, Comment: p.Comment, Token: "k1",
		})
		return err
	}))

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.TakePending(ctx, discardID)
		return err
	}))

	err = s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.TakePending(ctx, discardID)
		return err
	})
	assert.ErrorIs(t, err, ErrPendingNotFound)

	tail, ok, err := s.TailToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "k1", tail)

	b, err := s.Balance(ctx, "+100")
	require.NoError(t, err)
	assert.Equal(t, int64(-50), b)
	b, err = s.Balance(ctx, "+200")
	require.NoError(t, err)
	assert.Equal(t, int64(50), b)
	b, err = s.Balance(ctx, "+999")
	require.NoError(t, err)
	assert.Zero(t, b)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.TotalAccounts)
	assert.True(t, st.Balanced)
}

func TestIntegration_PostgresStore_RollbackOnError(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	var id int64
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		id, err = tx.InsertPending(ctx, &domain.PendingAction{SenderPhone: "+1", ReceiverPhone: "+2", Amount: 3})
		return err
	}))

	err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.TakePending(ctx, id); err != nil {
			return err
		}
		if _, err := tx.Commit(ctx, &domain.CommittedAction{
			PendingID: id, SenderPhone: "+1", ReceiverPhone: "+2", Amount: 3, Token: "t",
		}); err != nil {
			return err
		}
		return ErrPendingNotFound
	})
	require.ErrorIs(t, err, ErrPendingNotFound)

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	_, ok, err := s.TailToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntegration_PostgresStore_SerializedTakes(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	var id int64
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		id, err = tx.InsertPending(ctx, &domain.PendingAction{SenderPhone: "+1", ReceiverPhone: "+2", Amount: 1})
		return err
	}))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				p, err := tx.TakePending(ctx, id)
				if err != nil {
					return err
				}
				_, err = tx.Commit(ctx, &domain.CommittedAction{
					PendingID: p.ID, SenderPhone: p.SenderPhone, ReceiverPhone: p.ReceiverPhone,
					Amount: p.Amount, Token: "once",
				})
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrPendingNotFound)
	}
	assert.Equal(t, 1, succeeded)

	b, err := s.Balance(ctx, "+2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), b)
}

func TestIntegration_PostgresStore_AccountsAndChats(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.UpsertAccount(ctx, "+5", "Bob"); err != nil {
			return err
		}
		if err := tx.UpsertAccount(ctx, "+5", ""); err != nil {
			return err
		}
		acc, err := tx.Account(ctx, "+5")
		if err != nil {
			return err
		}
		assert.Equal(t, "Bob", acc.Info)
		return tx.LinkChat(ctx, 77, "+5")
	}))

	chat, ok, err := s.ChatID(ctx, "+5")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(77), chat)

	_, ok, err = s.ChatID(ctx, "+6")
	require.NoError(t, err)
	assert.False(t, ok)
}
