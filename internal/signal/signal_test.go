package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 5, 1, 15, 45, 9, 0, loc)
	assert.Equal(t, "2024-05-01T13:45:09Z", FormatTimestamp(ts))
}

func TestEncodeOmitsEmptyOptionalFields(t *testing.T) {
	s := Signal{Symbol: "BTCUSDT", Action: ActionBuy, Indicators: &Indicators{}}
	b, err := s.Encode()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.NotContains(t, m, "indicators")
	assert.NotContains(t, m, "secret")
	assert.Equal(t, "BTCUSDT", m["symbol"])
	assert.Equal(t, 0.0, m["price"])
}

func TestEncodeIndicatorsAndSecret(t *testing.T) {
	rsi := 27.5
	s := Signal{
		Symbol:     "ETHUSDT",
		Indicators: &Indicators{RSI: &rsi, Condition: ConditionOversold},
		Secret:     "shh",
	}
	b, err := s.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"indicators":{"rsi":27.5,"condition":"oversold"}`)
	assert.Contains(t, string(b), `"secret":"shh"`)

	assert.Empty(t, s.Redacted().Secret)
	assert.Equal(t, "shh", s.Secret)
}
