package bridge

import (
	"context"
	"fmt"

	"alertbridge/internal/mailbox"

	"github.com/emersion/go-imap/v2"
)

// Mailbox is the slice of an IMAP session one cycle needs.
type Mailbox interface {
	Select(mailbox string) (uint32, error)
	Search(q mailbox.Query) ([]imap.UID, error)
	Fetch(ctx context.Context, uids []imap.UID) ([]mailbox.Message, error)
	MarkSeen(uids []imap.UID) error
	Close() error
}

// Dialer opens a logged-in Mailbox; one is opened per cycle.
type Dialer func(ctx context.Context) (Mailbox, error)

// IMAPDialer dials acct with mailbox.Dial.
func IMAPDialer(acct mailbox.Account) Dialer {
	return func(ctx context.Context) (Mailbox, error) {
		s, err := mailbox.Dial(ctx, acct)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// MessageKey identifies a message for dedup: <uidvalidity>:<uid>.
func MessageKey(uidValidity uint32, uid imap.UID) string {
	return fmt.Sprintf("%d:%d", uidValidity, uid)
}
