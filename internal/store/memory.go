package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/punchamoorthee/ledgergate/internal/domain"
)

// MemoryStore keeps the ledger in process memory behind one mutex.
// Every transaction works on a copy of the state, which replaces the live
// state only when the transaction succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type memState struct {
	accounts map[string]domain.Account
	chats    map[int64]chatLink
	pending  map[int64]domain.PendingAction
	// ledger is append-only, so copies share its backing array.
	ledger        []domain.CommittedAction
	nextPendingID int64
	linkSeq       int64
}

// chatLink mirrors a chats row; seq orders links like linked_at does.
type chatLink struct {
	phone string
	seq   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			accounts: make(map[string]domain.Account),
			chats:    make(map[int64]chatLink),
			pending:  make(map[int64]domain.PendingAction),
		},
		now: time.Now,
	}
}

func (st *memState) clone() *memState {
	return &memState{
		accounts:      maps.Clone(st.accounts),
		chats:         maps.Clone(st.chats),
		pending:       maps.Clone(st.pending),
		ledger:        st.ledger[:len(st.ledger):len(st.ledger)],
		nextPendingID: st.nextPendingID,
		linkSeq:       st.linkSeq,
	}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(ctx, &memTx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) TailToken(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.tail()
}

func (st *memState) tail() (string, bool, error) {
	if len(st.ledger) == 0 {
		return "", false, nil
	}
	return st.ledger[len(st.ledger)-1].Token, true, nil
}

func (s *MemoryStore) Balance(ctx context.Context, phone string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.accounts[phone].Balance, nil
}

func (s *MemoryStore) ListPending(ctx context.Context) ([]domain.PendingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]domain.PendingView, 0, len(s.state.pending))
	for _, p := range s.state.pending {
		views = append(views, domain.PendingView{
			PendingAction: p,
			SenderBalance: s.state.accounts[p.SenderPhone].Balance,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st domain.Stats
	for _, a := range s.state.accounts {
		st.TotalAccounts++
		st.TotalBalance += a.Balance
		switch {
		case a.Balance > 0:
			st.PositiveBalances++
		case a.Balance < 0:
			st.NegativeBalances++
		default:
			st.ZeroBalances++
		}
		if a.Info == "" {
			st.WithoutInfo++
		}
	}
	st.Balanced = st.TotalBalance == 0
	return &st, nil
}

func (s *MemoryStore) ChatID(ctx context.Context, phone string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		id   int64
		best int64
		ok   bool
	)
	for chatID, link := range s.state.chats {
		if link.phone == phone && link.seq > best {
			id, best, ok = chatID, link.seq, true
		}
	}
	return id, ok, nil
}

// Ledger returns a copy of all committed actions in insertion order.
func (s *MemoryStore) Ledger() []domain.CommittedAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CommittedAction(nil), s.state.ledger...)
}

type memTx struct {
	st  *memState
	now func() time.Time
}

func (t *memTx) TailToken(ctx context.Context) (string, bool, error) {
	return t.st.tail()
}

func (t *memTx) Account(ctx context.Context, phone string) (*domain.Account, error) {
	acc, ok := t.st.accounts[phone]
	if !ok {
		acc = domain.Account{Phone: phone}
	}
	return &acc, nil
}

func (t *memTx) ensureAccount(phone string) domain.Account {
	acc, ok := t.st.accounts[phone]
	if !ok {
		acc = domain.Account{Phone: phone, CreatedAt: t.now()}
		t.st.accounts[phone] = acc
	}
	return acc
}

func (t *memTx) InsertPending(ctx context.Context, p *domain.PendingAction) (int64, error) {
	t.ensureAccount(p.SenderPhone)
	t.ensureAccount(p.ReceiverPhone)

	t.st.nextPendingID++
	p.ID = t.st.nextPendingID
	p.CreatedAt = t.now()
	t.st.pending[p.ID] = *p
	return p.ID, nil
}

func (t *memTx) TakePending(ctx context.Context, id int64) (*domain.PendingAction, error) {
	p, ok := t.st.pending[id]
	if !ok {
		return nil, ErrPendingNotFound
	}
	delete(t.st.pending, id)
	return &p, nil
}

func (t *memTx) Commit(ctx context.Context, a *domain.CommittedAction) (int64, error) {
	sender := t.ensureAccount(a.SenderPhone)
	sender.Balance -= a.Amount
	t.st.accounts[a.SenderPhone] = sender

	receiver := t.ensureAccount(a.ReceiverPhone)
	receiver.Balance += a.Amount
	t.st.accounts[a.ReceiverPhone] = receiver

	a.ID = int64(len(t.st.ledger)) + 1
	a.CreatedAt = t.now()
	t.st.ledger = append(t.st.ledger, *a)
	return a.ID, nil
}

func (t *memTx) UpsertAccount(ctx context.Context, phone, info string) error {
	acc := t.ensureAccount(phone)
	if info != "" {
		acc.Info = info
		t.st.accounts[phone] = acc
	}
	return nil
}

func (t *memTx) LinkChat(ctx context.Context, chatID int64, phone string) error {
	t.ensureAccount(phone)
	t.st.linkSeq++
	t.st.chats[chatID] = chatLink{phone: phone, seq: t.st.linkSeq}
	return nil
}
