package email

import (
	"context"
	"fmt"
	"strings"
)

// CompositeEmailSender fans every message out to a set of Senders, e.g. SMTP
// delivery plus a file mirror when LOG_EMAILS is set.
type CompositeEmailSender struct {
	senders []Sender
}

// NewCompositeEmailSender creates a composite over the given senders. The
// concrete type is returned so AddSender can attach optional mirrors later.
func NewCompositeEmailSender(senders ...Sender) *CompositeEmailSender {
	return &CompositeEmailSender{senders: senders}
}

// AddSender attaches another sender. Nil senders are ignored.
func (cs *CompositeEmailSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Send delivers through every registered sender. One sender failing does not
// stop the others; all failures are collected into a single error.
func (cs *CompositeEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(cs.senders) == 0 {
		return fmt.Errorf("no senders configured in CompositeEmailSender")
	}

	var failures []string
	for _, sender := range cs.senders {
		if err := sender.Send(ctx, to, subject, rawMessage); err != nil {
			failures = append(failures, err.Error())
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("composite email send failed: [ %s ]", strings.Join(failures, "; "))
	}
	return nil
}
