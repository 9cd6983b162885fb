package mailbox

import (
	"context"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
)

func TestKeepNewest(t *testing.T) {
	uids := []imap.UID{9, 3, 7, 1, 5}

	assert.Equal(t, []imap.UID{5, 7, 9}, keepNewest(append([]imap.UID(nil), uids...), 3))
	assert.Equal(t, []imap.UID{1, 3, 5, 7, 9}, keepNewest(append([]imap.UID(nil), uids...), 0))
	assert.Equal(t, []imap.UID{1, 3, 5, 7, 9}, keepNewest(append([]imap.UID(nil), uids...), 10))
	assert.Empty(t, keepNewest(nil, 5))
}

func TestJoinAddrs(t *testing.T) {
	addrs := []imap.Address{
		{Name: "TradingView", Mailbox: "noreply", Host: "tradingview.com"},
		{Name: "Only Name"},
		{},
	}
	assert.Equal(t, "noreply@tradingview.com, Only Name", joinAddrs(addrs))
	assert.Equal(t, "", joinAddrs(nil))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "imap.gmail.com", hostOf("imap.gmail.com:993"))
	assert.Equal(t, "imap.gmail.com", hostOf("imap.gmail.com"))
}

func TestDial_RequiresCredentials(t *testing.T) {
	_, err := Dial(context.Background(), Account{})
	assert.Error(t, err)

	_, err = Dial(context.Background(), Account{Addr: "imap.example.com:993", Username: "u"})
	assert.Error(t, err)
}

func TestNilSessionIsNotConnected(t *testing.T) {
	var s *Session
	_, err := s.Select("INBOX")
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.Search(Query{})
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.Fetch(context.Background(), []imap.UID{1})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, s.MarkSeen([]imap.UID{1}), ErrNotConnected)
	assert.NoError(t, s.Close())
}
