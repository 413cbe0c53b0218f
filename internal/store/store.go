package store

import (
	"context"
	"errors"

	"github.com/punchamoorthee/ledgergate/internal/domain"
)

// ErrPendingNotFound is returned when a pending action id does not exist,
// including when it was already approved or discarded.
var ErrPendingNotFound = errors.New("pending action not found")

// Reader is the read-only side of the ledger, used outside critical sections.
type Reader interface {
	// TailToken returns the commit token of the most recently inserted ledger
	// entry. ok is false while the ledger is empty.
	TailToken(ctx context.Context) (token string, ok bool, err error)

	// Balance returns 0 for phones that were never referenced.
	Balance(ctx context.Context, phone string) (int64, error)

	// ListPending returns every pending action, ordered by id, with the
	// sender's current balance filled in.
	ListPending(ctx context.Context) ([]domain.PendingView, error)

	Stats(ctx context.Context) (*domain.Stats, error)

	// ChatID resolves the chat most recently linked to phone.
	ChatID(ctx context.Context, phone string) (chatID int64, ok bool, err error)
}

// Tx is the set of operations available inside a critical section. All calls
// made through one Tx commit together or not at all.
type Tx interface {
	TailToken(ctx context.Context) (token string, ok bool, err error)

	// Account returns the stored account, or a zero-balance account for
	// unknown phones. It never creates rows.
	Account(ctx context.Context, phone string) (*domain.Account, error)

	// InsertPending stores p, creating both accounts if needed, and returns
	// the store-assigned id.
	InsertPending(ctx context.Context, p *domain.PendingAction) (int64, error)

	// TakePending deletes the pending action and returns it, or
	// ErrPendingNotFound.
	TakePending(ctx context.Context, id int64) (*domain.PendingAction, error)

	// Commit appends a to the ledger and applies the sender debit and the
	// receiver credit. It returns the ledger entry id.
	Commit(ctx context.Context, a *domain.CommittedAction) (int64, error)

	// UpsertAccount creates the account if absent. A non-empty info replaces
	// the stored one.
	UpsertAccount(ctx context.Context, phone, info string) error

	LinkChat(ctx context.Context, chatID int64, phone string) error
}

// Store is a ledger with an exclusive, atomic write path.
type Store interface {
	Reader

	// InTx runs fn inside an exclusive critical section. Any error returned
	// by fn discards every write fn made.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close()
}
