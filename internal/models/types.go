package models

import "github.com/punchamoorthee/ledgergate/internal/domain"

// TransferRequest is the payload from the chat front-end.
type TransferRequest struct {
	SenderPhone   string `json:"sender_phone"`
	ReceiverPhone string `json:"receiver_phone"`
	Amount        int64  `json:"amount"`
	Comment       string `json:"comment"`
	SenderInfo    string `json:"sender_info,omitempty"`
	ReceiverInfo  string `json:"receiver_info,omitempty"`
}

func (r TransferRequest) StageRequest() domain.StageRequest {
	return domain.StageRequest{
		SenderPhone:   r.SenderPhone,
		ReceiverPhone: r.ReceiverPhone,
		Amount:        r.Amount,
		Comment:       r.Comment,
		SenderInfo:    r.SenderInfo,
		ReceiverInfo:  r.ReceiverInfo,
	}
}

// StagedResponse is returned once a transfer is waiting for approval.
type StagedResponse struct {
	PendingID int64  `json:"pending_id"`
	Status    string `json:"status"`
}

// RegisterAccountRequest links a chat to a phone and records display info.
type RegisterAccountRequest struct {
	Phone  string `json:"phone"`
	ChatID int64  `json:"chat_id,omitempty"`
	Info   string `json:"info,omitempty"`
}

type BalanceResponse struct {
	Phone   string `json:"phone"`
	Balance int64  `json:"balance"`
}

// TokenRequest carries the operator's candidate token. Older tooling sends
// it as "md5".
type TokenRequest struct {
	Token string `json:"token,omitempty"`
	MD5   string `json:"md5,omitempty"`
}

func (r TokenRequest) Candidate() string {
	if r.Token != "" {
		return r.Token
	}
	return r.MD5
}

type ApproveResponse struct {
	Message string                  `json:"message"`
	Action  *domain.CommittedAction `json:"action"`
}

type DiscardResponse struct {
	Message   string            `json:"message"`
	Discarded *domain.Discarded `json:"discarded"`
}

type TailResponse struct {
	Token string `json:"token"`
	Empty bool   `json:"empty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
