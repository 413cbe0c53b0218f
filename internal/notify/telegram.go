package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const DefaultTelegramURL = "https://api.telegram.org"

var ErrTelegramRejected = errors.New("telegram rejected message")

// TelegramSink sends messages through the Bot API. Calls go through a circuit
// breaker so a Telegram outage fails fast instead of holding up requests.
type TelegramSink struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

type TelegramOption func(*TelegramSink)

func WithHTTPClient(c *http.Client) TelegramOption {
	return func(s *TelegramSink) { s.client = c }
}

func WithBaseURL(u string) TelegramOption {
	return func(s *TelegramSink) { s.baseURL = strings.TrimRight(u, "/") }
}

func NewTelegramSink(token string, logger *zap.Logger, opts ...TelegramOption) *TelegramSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TelegramSink{
		baseURL: DefaultTelegramURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A rejected message is the caller's problem, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrTelegramRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return s
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *TelegramSink) Send(ctx context.Context, chatID int64, text string) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.send(ctx, chatID, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("telegram unavailable: %w", err)
	}
	return err
}

func (s *TelegramSink) send(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return s.redact(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", s.redact(err))
	}
	defer resp.Body.Close()

	var out telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("telegram response status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("telegram server error %d: %s", resp.StatusCode, out.Description)
	}
	if !out.OK {
		return fmt.Errorf("%w: %s", ErrTelegramRejected, out.Description)
	}
	return nil
}

// redact strips the bot token from URLs carried by net/http errors, which end
// up in logs.
func (s *TelegramSink) redact(err error) error {
	var uerr *url.Error
	if s.token == "" || !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{
		Op:  uerr.Op,
		URL: strings.ReplaceAll(uerr.URL, s.token, "<redacted>"),
		Err: uerr.Err,
	}
}
