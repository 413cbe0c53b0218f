package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/ledgergate/internal/domain"
)

// ledgerLockKey identifies the transaction-scoped advisory lock that
// serializes every mutation of the ledger, across all API processes.
const ledgerLockKey int64 = 0x6c6564676572 // "ledger"

type PostgresStore struct {
	Db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{Db: pool}, nil
}

func (s *PostgresStore) Close() {
	s.Db.Close()
}

// InTx runs fn in a READ COMMITTED transaction holding the ledger advisory
// lock. Each statement after the lock sees every commit made before it was
// granted, so the tail read inside fn is the real tail.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey); err != nil {
		return fmt.Errorf("ledger lock failed: %w", err)
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func tailToken(ctx context.Context, q querier) (string, bool, error) {
	var token string
	err := q.QueryRow(ctx, "SELECT token FROM actions ORDER BY id DESC LIMIT 1").Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("tail query failed: %w", err)
	}
	return token, true, nil
}

func (s *PostgresStore) TailToken(ctx context.Context) (string, bool, error) {
	return tailToken(ctx, s.Db)
}

func (s *PostgresStore) Balance(ctx context.Context, phone string) (int64, error) {
	var balance int64
	err := s.Db.QueryRow(ctx, "SELECT balance FROM accounts WHERE phone = $1", phone).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance query failed: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]domain.PendingView, error) {
	rows, err := s.Db.Query(ctx, `
		SELECT p.id, p.sender_phone, p.receiver_phone, p.amount, p.comment,
		       p.sender_info, p.receiver_info, p.created_at, COALESCE(a.balance, 0)
		FROM pending_actions p
		LEFT JOIN accounts a ON a.phone = p.sender_phone
		ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("pending query failed: %w", err)
	}
	defer rows.Close()

	views := []domain.PendingView{}
	for rows.Next() {
		var v domain.PendingView
		if err := rows.Scan(&v.ID, &v.SenderPhone, &v.ReceiverPhone, &v.Amount, &v.Comment,
			&v.SenderInfo, &v.ReceiverInfo, &v.CreatedAt, &v.SenderBalance); err != nil {
			return nil, fmt.Errorf("pending scan failed: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending rows failed: %w", err)
	}
	return views, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*domain.Stats, error) {
	var st domain.Stats
	err := s.Db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE balance > 0),
		       COUNT(*) FILTER (WHERE balance = 0),
		       COUNT(*) FILTER (WHERE balance < 0),
		       COALESCE(SUM(balance), 0)::BIGINT,
		       COUNT(*) FILTER (WHERE info = '')
		FROM accounts`).Scan(&st.TotalAccounts, &st.PositiveBalances, &st.ZeroBalances,
		&st.NegativeBalances, &st.TotalBalance, &st.WithoutInfo)
	if err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}
	st.Balanced = st.TotalBalance == 0
	return &st, nil
}

func (s *PostgresStore) ChatID(ctx context.Context, phone string) (int64, bool, error) {
	var chatID int64
	err := s.Db.QueryRow(ctx,
		"SELECT chat_id FROM chats WHERE phone = $1 ORDER BY linked_at DESC LIMIT 1",
		phone).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("chat query failed: %w", err)
	}
	return chatID, true, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) TailToken(ctx context.Context) (string, bool, error) {
	return tailToken(ctx, t.tx)
}

func (t *pgTx) Account(ctx context.Context, phone string) (*domain.Account, error) {
	acc := domain.Account{Phone: phone}
	err := t.tx.QueryRow(ctx,
		"SELECT balance, info, created_at FROM accounts WHERE phone = $1",
		phone).Scan(&acc.Balance, &acc.Info, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &acc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account query failed: %w", err)
	}
	return &acc, nil
}

func (t *pgTx) InsertPending(ctx context.Context, p *domain.PendingAction) (int64, error) {
	_, err := t.tx.Exec(ctx,
		"INSERT INTO accounts (phone) VALUES ($1), ($2) ON CONFLICT (phone) DO NOTHING",
		p.SenderPhone, p.ReceiverPhone)
	if err != nil {
		return 0, fmt.Errorf("account insert failed: %w", err)
	}

	err = t.tx.QueryRow(ctx, `
		INSERT INTO pending_actions (sender_phone, receiver_phone, amount, comment, sender_info, receiver_info)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		p.SenderPhone, p.ReceiverPhone, p.Amount, p.Comment, p.SenderInfo, p.ReceiverInfo,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("pending insert failed: %w", err)
	}
	return p.ID, nil
}

func (t *pgTx) TakePending(ctx context.Context, id int64) (*domain.PendingAction, error) {
	var p domain.PendingAction
	err := t.tx.QueryRow(ctx, `
		DELETE FROM pending_actions WHERE id = $1
		RETURNING id, sender_phone, receiver_phone, amount, comment, sender_info, receiver_info, created_at`,
		id).Scan(&p.ID, &p.SenderPhone, &p.ReceiverPhone, &p.Amount, &p.Comment,
		&p.SenderInfo, &p.ReceiverInfo, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pending delete failed: %w", err)
	}
	return &p, nil
}

const applyDelta = `
	INSERT INTO accounts (phone, balance) VALUES ($1, $2)
	ON CONFLICT (phone) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`

func (t *pgTx) Commit(ctx context.Context, a *domain.CommittedAction) (int64, error) {
	if _, err := t.tx.Exec(ctx, applyDelta, a.SenderPhone, -a.Amount); err != nil {
		return 0, fmt.Errorf("debit failed: %w", err)
	}
	if _, err := t.tx.Exec(ctx, applyDelta, a.ReceiverPhone, a.Amount); err != nil {
		return 0, fmt.Errorf("credit failed: %w", err)
	}

	err := t.tx.QueryRow(ctx, `
		INSERT INTO actions (pending_id, sender_phone, receiver_phone, amount, comment, token)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		a.PendingID, a.SenderPhone, a.ReceiverPhone, a.Amount, a.Comment, a.Token,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("ledger insert failed: %w", err)
	}
	return a.ID, nil
}

func (t *pgTx) UpsertAccount(ctx context.Context, phone, info string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (phone, info) VALUES ($1, $2)
		ON CONFLICT (phone) DO UPDATE
		SET info = CASE WHEN EXCLUDED.info = '' THEN accounts.info ELSE EXCLUDED.info END`,
		phone, info)
	if err != nil {
		return fmt.Errorf("account upsert failed: %w", err)
	}
	return nil
}

func (t *pgTx) LinkChat(ctx context.Context, chatID int64, phone string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO chats (chat_id, phone) VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET phone = EXCLUDED.phone, linked_at = now()`,
		chatID, phone)
	if err != nil {
		return fmt.Errorf("chat link failed: %w", err)
	}
	return nil
}
