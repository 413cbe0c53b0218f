package domain

import (
	"time"
)

// Account is a phone-identified balance holder.
// Balance may go negative; overdraft is only flagged on the read side.
type Account struct {
	Phone     string    `json:"phone"`
	Balance   int64     `json:"balance"`
	Info      string    `json:"info,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StageRequest is the front-end's intent to move money from Sender to Receiver.
type StageRequest struct {
	SenderPhone   string
	ReceiverPhone string
	Amount        int64
	Comment       string
	SenderInfo    string
	ReceiverInfo  string
}

// PendingAction is a staged transfer awaiting approval or rejection.
// It exists until resolved; no history is kept after that.
type PendingAction struct {
	ID            int64     `json:"id"`
	SenderPhone   string    `json:"sender_phone"`
	ReceiverPhone string    `json:"receiver_phone"`
	Amount        int64     `json:"amount"`
	Comment       string    `json:"comment"`
	SenderInfo    string    `json:"sender_info"`
	ReceiverInfo  string    `json:"receiver_info"`
	CreatedAt     time.Time `json:"created_at"`
}

// PendingView is a pending action projected with the sender's current balance.
type PendingView struct {
	PendingAction
	SenderBalance int64 `json:"-"`
	LessThanZero  bool  `json:"less_than_zero"`
}

// CommittedAction is one append-only ledger entry.
// Token is the authenticated value supplied at approval time and forms one
// link of the hash chain.
type CommittedAction struct {
	ID            int64     `json:"id"`
	PendingID     int64     `json:"pending_id"`
	SenderPhone   string    `json:"sender_phone"`
	ReceiverPhone string    `json:"receiver_phone"`
	Amount        int64     `json:"amount"`
	Comment       string    `json:"comment"`
	Token         string    `json:"token"`
	CreatedAt     time.Time `json:"created_at"`
}

// Discarded describes a pending action that was rejected before commit.
type Discarded struct {
	PendingID     int64  `json:"pending_id"`
	SenderPhone   string `json:"sender_phone"`
	ReceiverPhone string `json:"receiver_phone"`
	Amount        int64  `json:"amount"`
}

// Stats summarizes all accounts. Balanced reports whether the sum of all
// balances is zero, which must hold as long as conservation holds.
type Stats struct {
	TotalAccounts    int64 `json:"total_accounts"`
	PositiveBalances int64 `json:"positive_balance_accounts"`
	ZeroBalances     int64 `json:"zero_balance_accounts"`
	NegativeBalances int64 `json:"negative_balance_accounts"`
	TotalBalance     int64 `json:"total_balance"`
	Balanced         bool  `json:"balanced"`
	WithoutInfo      int64 `json:"accounts_without_info"`
}

// EventKind names the outcome carried by an Event.
type EventKind string

const (
	EventApproved  EventKind = "approved"
	EventDiscarded EventKind = "discarded"
)

// Event is the structured outcome handed to the notification channel after
// a successful approve or discard. Formatting and delivery happen elsewhere.
type Event struct {
	Kind          EventKind `json:"kind"`
	PendingID     int64     `json:"pending_id"`
	SenderPhone   string    `json:"sender_phone"`
	ReceiverPhone string    `json:"receiver_phone"`
	Amount        int64     `json:"amount"`
	Comment       string    `json:"comment,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
