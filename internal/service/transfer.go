package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/punchamoorthee/ledgergate/internal/auth"
	"github.com/punchamoorthee/ledgergate/internal/domain"
	"github.com/punchamoorthee/ledgergate/internal/store"
	"go.uber.org/zap"
)

var ErrInvalidAmount = errors.New("amount must be a positive integer")

// StoreError wraps a persistence failure. Auth and not-found outcomes are
// never wrapped in it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Publisher receives the outcome of every successful approve or discard.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

type TransferService struct {
	store     store.Store
	gate      *auth.Gate
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewTransferService(s store.Store, gate *auth.Gate, publisher Publisher, logger *zap.Logger) *TransferService {
	if gate == nil {
		gate = auth.NewGate(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		store:     s,
		gate:      gate,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// classify passes auth and not-found outcomes through untouched and wraps
// everything else as a StoreError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, auth.ErrUnauthenticated) || errors.Is(err, store.ErrPendingNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Stage records a transfer intent and returns the pending id. It has no
// balance precondition. Missing display info is filled with a snapshot of
// the account taken inside the same critical section.
func (s *TransferService) Stage(ctx context.Context, req domain.StageRequest) (int64, error) {
	sender, err := domain.NormalizePhone(req.SenderPhone)
	if err != nil {
		return 0, fmt.Errorf("sender: %w", err)
	}
	receiver, err := domain.NormalizePhone(req.ReceiverPhone)
	if err != nil {
		return 0, fmt.Errorf("receiver: %w", err)
	}
	if req.Amount <= 0 {
		return 0, ErrInvalidAmount
	}

	p := &domain.PendingAction{
		SenderPhone:   sender,
		ReceiverPhone: receiver,
		Amount:        req.Amount,
		Comment:       req.Comment,
		SenderInfo:    req.SenderInfo,
		ReceiverInfo:  req.ReceiverInfo,
	}

	var id int64
	err = s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if p.SenderInfo == "" {
			info, err := snapshot(ctx, tx, sender)
			if err != nil {
				return err
			}
			p.SenderInfo = info
		}
		if p.ReceiverInfo == "" {
			info, err := snapshot(ctx, tx, receiver)
			if err != nil {
				return err
			}
			p.ReceiverInfo = info
		}

		var err error
		id, err = tx.InsertPending(ctx, p)
		return err
	})
	if err != nil {
		return 0, classify("stage", err)
	}

	s.logger.Info("transfer staged",
		zap.Int64("pending_id", id),
		zap.String("sender", sender),
		zap.String("receiver", receiver),
		zap.Int64("amount", req.Amount),
	)
	return id, nil
}

func snapshot(ctx context.Context, tx store.Tx, phone string) (string, error) {
	acc, err := tx.Account(ctx, phone)
	if err != nil {
		return "", err
	}
	info := "Balance: " + strconv.FormatInt(acc.Balance, 10)
	if acc.Info != "" {
		info += "\n" + acc.Info
	}
	return info, nil
}

// Approve authenticates candidate against the ledger tail and, on success,
// moves the pending action into the ledger and applies both balance deltas
// as one unit. Authentication happens inside the critical section, so one
// token can authenticate at most one mutation.
func (s *TransferService) Approve(ctx context.Context, id int64, candidate string) (*domain.CommittedAction, error) {
	var committed *domain.CommittedAction
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		token, err := s.gate.Authenticate(ctx, tx, candidate)
		if err != nil {
			return err
		}

		p, err := tx.TakePending(ctx, id)
		if err != nil {
			return err
		}

		a := &domain.CommittedAction{
			PendingID:     p.ID,
			SenderPhone:   p.SenderPhone,
			ReceiverPhone: p.ReceiverPhone,
			Amount:        p.Amount,
			Comment:       p.Comment,
			Token:         token,
		}
		if _, err := tx.Commit(ctx, a); err != nil {
			return err
		}
		committed = a
		return nil
	})
	if err != nil {
		s.observeFailure("approve", id, candidate, err)
		return nil, classify("approve", err)
	}

	committedTotal.Inc()
	s.logger.Info("transfer committed",
		zap.Int64("pending_id", id),
		zap.Int64("ledger_id", committed.ID),
		zap.Int64("amount", committed.Amount),
		zap.String("token", tokenPrefix(committed.Token)),
	)

	s.publish(ctx, domain.Event{
		Kind:          domain.EventApproved,
		PendingID:     committed.PendingID,
		SenderPhone:   committed.SenderPhone,
		ReceiverPhone: committed.ReceiverPhone,
		Amount:        committed.Amount,
		Comment:       committed.Comment,
		OccurredAt:    s.now(),
	})
	return committed, nil
}

// Discard authenticates like Approve and removes the pending action without
// touching the ledger or any balance.
func (s *TransferService) Discard(ctx context.Context, id int64, candidate string) (*domain.Discarded, error) {
	var p *domain.PendingAction
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := s.gate.Authenticate(ctx, tx, candidate); err != nil {
			return err
		}
		var err error
		p, err = tx.TakePending(ctx, id)
		return err
	})
	if err != nil {
		s.observeFailure("discard", id, candidate, err)
		return nil, classify("discard", err)
	}

	discardedTotal.Inc()
	s.logger.Info("transfer discarded", zap.Int64("pending_id", id), zap.Int64("amount", p.Amount))

	s.publish(ctx, domain.Event{
		Kind:          domain.EventDiscarded,
		PendingID:     p.ID,
		SenderPhone:   p.SenderPhone,
		ReceiverPhone: p.ReceiverPhone,
		Amount:        p.Amount,
		Comment:       p.Comment,
		OccurredAt:    s.now(),
	})
	return &domain.Discarded{
		PendingID:     p.ID,
		SenderPhone:   p.SenderPhone,
		ReceiverPhone: p.ReceiverPhone,
		Amount:        p.Amount,
	}, nil
}

// ListPending returns every pending action with the advisory overdraft flag.
func (s *TransferService) ListPending(ctx context.Context) ([]domain.PendingView, error) {
	views, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, classify("list pending", err)
	}
	for i := range views {
		views[i].LessThanZero = views[i].SenderBalance < views[i].Amount
	}
	return views, nil
}

// Authenticate checks candidate against the current tail without mutating
// anything. Used to guard read-only operator endpoints.
func (s *TransferService) Authenticate(ctx context.Context, candidate string) error {
	if _, err := s.gate.Authenticate(ctx, s.store, candidate); err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			authFailuresTotal.WithLabelValues("read").Inc()
		}
		return classify("authenticate", err)
	}
	return nil
}

// CurrentTailToken returns the commit token of the ledger tail; ok is false
// while the ledger is empty.
func (s *TransferService) CurrentTailToken(ctx context.Context) (string, bool, error) {
	token, ok, err := s.store.TailToken(ctx)
	if err != nil {
		return "", false, classify("tail token", err)
	}
	return token, ok, nil
}

func (s *TransferService) Balance(ctx context.Context, phone string) (int64, error) {
	normalized, err := domain.NormalizePhone(phone)
	if err != nil {
		return 0, err
	}
	balance, err := s.store.Balance(ctx, normalized)
	if err != nil {
		return 0, classify("balance", err)
	}
	return balance, nil
}

func (s *TransferService) Stats(ctx context.Context) (*domain.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, classify("stats", err)
	}
	return st, nil
}

// RegisterAccount creates the account if needed, stores non-empty info and
// links chatID to the phone for notifications. A zero chatID only upserts.
func (s *TransferService) RegisterAccount(ctx context.Context, phone string, chatID int64, info string) (*domain.Account, error) {
	normalized, err := domain.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	var acc *domain.Account
	err = s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.UpsertAccount(ctx, normalized, info); err != nil {
			return err
		}
		if chatID != 0 {
			if err := tx.LinkChat(ctx, chatID, normalized); err != nil {
				return err
			}
		}
		var err error
		acc, err = tx.Account(ctx, normalized)
		return err
	})
	if err != nil {
		return nil, classify("register account", err)
	}

	s.logger.Info("account registered", zap.String("phone", normalized), zap.Int64("chat_id", chatID))
	return acc, nil
}

func (s *TransferService) publish(ctx context.Context, ev domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("notification failed",
			zap.String("kind", string(ev.Kind)),
			zap.Int64("pending_id", ev.PendingID),
			zap.Error(err),
		)
	}
}

func (s *TransferService) observeFailure(op string, id int64, candidate string, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		authFailuresTotal.WithLabelValues(op).Inc()
		s.logger.Warn("authentication failed",
			zap.String("op", op),
			zap.Int64("pending_id", id),
			zap.String("token", tokenPrefix(candidate)),
		)
	case errors.Is(err, store.ErrPendingNotFound):
		s.logger.Info("pending action not found", zap.String("op", op), zap.Int64("pending_id", id))
	default:
		s.logger.Error("store failure", zap.String("op", op), zap.Int64("pending_id", id), zap.Error(err))
	}
}

// tokenPrefix keeps at most the first six bytes of a token for logs, cut on
// a rune boundary.
func tokenPrefix(token string) string {
	n := min(len(token)/2, 6)
	for n > 0 && !utf8.RuneStart(token[n]) {
		n--
	}
	return token[:n] + "…"
}
