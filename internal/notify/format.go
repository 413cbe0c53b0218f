package notify

import (
	"fmt"

	"github.com/punchamoorthee/ledgergate/internal/domain"
)

func SenderApproved(ev domain.Event) string {
	return withComment(fmt.Sprintf("Your transfer of %d to %s was approved.", ev.Amount, ev.ReceiverPhone), ev.Comment)
}

func ReceiverApproved(ev domain.Event) string {
	return withComment(fmt.Sprintf("You received %d from %s.", ev.Amount, ev.SenderPhone), ev.Comment)
}

func SenderDiscarded(ev domain.Event) string {
	return fmt.Sprintf("Your transfer of %d to %s was rejected.", ev.Amount, ev.ReceiverPhone)
}

func withComment(text, comment string) string {
	if comment == "" {
		return text
	}
	return text + "\nComment: " + comment
}
