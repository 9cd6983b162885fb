// internal/mailbox/imap.go
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"alertbridge/internal/observability"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

var ErrNotConnected = errors.New("imap session is not connected")

// Account is what Dial needs to open a session.
type Account struct {
	Addr     string // host:port
	Username string
	Password string

	// TLSConfig defaults to TLS 1.2+ with ServerName taken from Addr.
	TLSConfig *tls.Config
}

// Message is a fetched email; Raw holds the full RFC822 bytes.
type Message struct {
	UID     imap.UID
	From    string
	Subject string
	Date    time.Time
	Raw     []byte
}

// Query narrows the UID SEARCH.
type Query struct {
	From       string    // FROM header substring
	Since      time.Time // day granularity on the server side
	UnseenOnly bool
	Max        int // newest Max UIDs are kept
}

// Session is one logged-in IMAP connection.
type Session struct {
	c         *imapclient.Client
	closeOnce sync.Once
	stop      chan struct{}
}

// Dial connects over TLS and logs in. Cancelling ctx closes the connection.
func Dial(ctx context.Context, acct Account) (*Session, error) {
	if acct.Addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if acct.Username == "" || acct.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	tlsCfg := acct.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: hostOf(acct.Addr),
		}
	}

	c, err := imapclient.DialTLS(acct.Addr, &imapclient.Options{
		TLSConfig: tlsCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls %s: %w", acct.Addr, err)
	}

	s := &Session{c: c, stop: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-s.stop:
		}
	}()

	if err := c.Login(acct.Username, acct.Password).Wait(); err != nil {
		s.shutdown()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return s, nil
}

// Select opens mailbox read-write and returns its UIDVALIDITY.
func (s *Session) Select(mailbox string) (uint32, error) {
	if s == nil || s.c == nil {
		return 0, ErrNotConnected
	}
	if mailbox == "" {
		mailbox = "INBOX"
	}
	data, err := s.c.Select(mailbox, &imap.SelectOptions{ReadOnly: false}).Wait()
	if err != nil {
		return 0, fmt.Errorf("imap select %q: %w", mailbox, err)
	}
	return data.UIDValidity, nil
}

// Search returns matching UIDs, oldest first.
func (s *Session) Search(q Query) ([]imap.UID, error) {
	if s == nil || s.c == nil {
		return nil, ErrNotConnected
	}

	criteria := &imap.SearchCriteria{}
	if q.From != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key:   "From",
			Value: q.From,
		})
	}
	if !q.Since.IsZero() {
		criteria.Since = q.Since
	}
	if q.UnseenOnly {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	data, err := s.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}
	return keepNewest(data.AllUIDs(), q.Max), nil
}

func keepNewest(uids []imap.UID, max int) []imap.UID {
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if max > 0 && len(uids) > max {
		uids = uids[len(uids)-max:]
	}
	return uids
}

// Fetch pulls envelope, internal date and BODY.PEEK[] (does not set \Seen).
func (s *Session) Fetch(ctx context.Context, uids []imap.UID) ([]Message, error) {
	if s == nil || s.c == nil {
		return nil, ErrNotConnected
	}
	if len(uids) == 0 {
		return nil, nil
	}

	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchOptions := &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodyAll},
	}

	fetchCmd := s.c.Fetch(imap.UIDSetNum(uids...), fetchOptions)

	out := make([]Message, 0, len(uids))
	for {
		select {
		case <-ctx.Done():
			_ = fetchCmd.Close()
			return nil, ctx.Err()
		default:
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}

		buf, err := msgData.Collect()
		if err != nil {
			_ = fetchCmd.Close()
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		m := Message{UID: buf.UID, Date: buf.InternalDate}
		if buf.Envelope != nil {
			m.Subject = buf.Envelope.Subject
			m.From = joinAddrs(buf.Envelope.From)
			if !buf.Envelope.Date.IsZero() {
				m.Date = buf.Envelope.Date
			}
		}
		if b := buf.FindBodySection(bodyAll); b != nil {
			m.Raw = append([]byte(nil), b...)
		}
		out = append(out, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

// MarkSeen adds \Seen to the given UIDs.
func (s *Session) MarkSeen(uids []imap.UID) error {
	if s == nil || s.c == nil {
		return ErrNotConnected
	}
	if len(uids) == 0 {
		return nil
	}

	storeFlags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := s.c.Store(imap.UIDSetNum(uids...), storeFlags, nil).Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

// Close logs out then closes the connection. Safe to call twice.
func (s *Session) Close() error {
	if s == nil || s.c == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		if lerr := s.c.Logout().Wait(); lerr != nil {
			observability.Component("mailbox").WithError(lerr).Debug("imap logout")
		}
		close(s.stop)
		err = s.c.Close()
	})
	return err
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.stop)
		_ = s.c.Close()
	})
}

func joinAddrs(addrs []imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(addrs))
	for i := range addrs {
		a := &addrs[i]
		addr := strings.TrimSpace(a.Addr())
		if addr == "" {
			addr = strings.TrimSpace(a.Name)
		}
		if addr != "" {
			parts = append(parts, addr)
		}
	}
	return strings.Join(parts, ", ")
}

func hostOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}
