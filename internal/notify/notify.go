// Package notify delivers approve and discard outcomes to the people involved
// and to downstream consumers.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/punchamoorthee/ledgergate/internal/domain"
	"go.uber.org/zap"
)

// Sink delivers a formatted text message to one chat.
type Sink interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Directory resolves the chat linked to a phone number.
type Directory interface {
	ChatID(ctx context.Context, phone string) (chatID int64, ok bool, err error)
}

// Publisher is satisfied by every event consumer in this package.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Dispatcher turns events into chat messages. An approval notifies both
// parties; a discard notifies only the sender.
type Dispatcher struct {
	dir    Directory
	sink   Sink
	logger *zap.Logger
}

func NewDispatcher(dir Directory, sink Sink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{dir: dir, sink: sink, logger: logger}
}

type message struct {
	phone string
	text  string
}

func (d *Dispatcher) Publish(ctx context.Context, ev domain.Event) error {
	var msgs []message
	switch ev.Kind {
	case domain.EventApproved:
		msgs = []message{
			{phone: ev.SenderPhone, text: SenderApproved(ev)},
			{phone: ev.ReceiverPhone, text: ReceiverApproved(ev)},
		}
	case domain.EventDiscarded:
		msgs = []message{{phone: ev.SenderPhone, text: SenderDiscarded(ev)}}
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	var errs []error
	for _, m := range msgs {
		chatID, ok, err := d.dir.ChatID(ctx, m.phone)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve chat for %s: %w", m.phone, err))
			continue
		}
		if !ok {
			d.logger.Info("no chat linked, skipping notification",
				zap.String("phone", m.phone),
				zap.Int64("pending_id", ev.PendingID))
			continue
		}
		if err := d.sink.Send(ctx, chatID, m.text); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", m.phone, err))
		}
	}
	return errors.Join(errs...)
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes messages to the log instead of a chat. Used when no chat
// transport is configured.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Send(_ context.Context, chatID int64, text string) error {
	s.Logger.Info("notification", zap.Int64("chat_id", chatID), zap.String("text", text))
	return nil
}
