// Package extract turns free-text alert emails into trading-signal fields.
// Every extractor is best effort and falls back to a fixed default.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"alertbridge/internal/signal"
)

const (
	DefaultSymbol     = "BTCUSDT"
	DefaultConfidence = 0.7
)

var (
	// tried in order; the two captured groups are joined
	symbolPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\w+)/(\w+)`),             // BTC/USD
		regexp.MustCompile(`(?i)(\w+)(USDT|USD|BTC|ETH)`), // BTCUSDT, BTCUSD
		regexp.MustCompile(`(?i)(\w+)-(\w+)`),             // BTC-USD
	}

	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\$(\d+(?:,\d{3})*(?:\.\d+)?)`),              // $50,000.00
		regexp.MustCompile(`(?i)(\d+(?:,\d{3})*(?:\.\d+)?)\s*(?:USD|USDT)`), // 50000 USD
		regexp.MustCompile(`(?i)price[:\s]*(\d+(?:,\d{3})*(?:\.\d+)?)`),     // price: 50000
	}

	reURL = regexp.MustCompile(`(?i)(?:https?://|www\.)[^\s<>"']+`)

	reTimeframeLabel = regexp.MustCompile(`(?i)\b(?:timeframe|interval|tf)\s*[:=]?\s*(\d{1,3})\s*(minutes?|mins?|months?|mo|m|hours?|hrs?|h|days?|d|weeks?|w)\b`)
	// a bare token only counts right after or right before the symbol, e.g.
	// "BTCUSDT, 15m", "ETHUSD on 4h", "1D BTCUSDT"
	reTimeframeAfter  = regexp.MustCompile(`^\s*[,:]?\s*(?:on\s+)?(\d{1,3})([mhdwMHDW])\b`)
	reTimeframeBefore = regexp.MustCompile(`(?:^|[\s,(\[])(\d{1,3})([mhdwMHDW])[\s,:]*$`)

	buyWords   = []string{"BUY", "LONG", "BUYING"}
	sellWords  = []string{"SELL", "SHORT", "SELLING"}
	closeWords = []string{"CLOSE", "EXIT", "STOP"}
)

// Symbol infers the traded pair from subject and body.
func Symbol(subject, body string) string {
	text := stripURLs(subject + " " + body)

	for _, re := range symbolPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.ToUpper(m[1] + m[2])
		}
	}

	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "BTC"):
		return "BTCUSDT"
	case strings.Contains(upper, "ETH"):
		return "ETHUSDT"
	default:
		return DefaultSymbol
	}
}

// Price returns the first price-looking number in body, or 0.
func Price(body string) float64 {
	for _, re := range pricePatterns {
		m := re.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		return v
	}
	return 0
}

// Action maps keywords to BUY/SELL/CLOSE. Without a keyword the indicator
// condition decides (oversold buys, overbought sells), else BUY.
func Action(subject, body string, ind *signal.Indicators) string {
	text := strings.ToUpper(subject + " " + body)

	switch {
	case containsAny(text, buyWords):
		return signal.ActionBuy
	case containsAny(text, sellWords):
		return signal.ActionSell
	case containsAny(text, closeWords):
		return signal.ActionClose
	}

	if ind != nil {
		switch ind.Condition {
		case signal.ConditionOversold:
			return signal.ActionBuy
		case signal.ConditionOverbought:
			return signal.ActionSell
		}
	}
	return signal.ActionBuy
}

// Confidence reads qualifier words in the body.
func Confidence(body string) float64 {
	upper := strings.ToUpper(body)
	switch {
	case strings.Contains(upper, "STRONG") || strings.Contains(upper, "CONFIRMED"):
		return 0.9
	case strings.Contains(upper, "WEAK") || strings.Contains(upper, "POSSIBLE"):
		return 0.5
	default:
		return DefaultConfidence
	}
}

func Strength(confidence float64) string {
	switch {
	case confidence > 0.8:
		return signal.StrengthStrong
	case confidence < 0.6:
		return signal.StrengthWeak
	default:
		return signal.StrengthMedium
	}
}

// Timeframe looks for "timeframe: 15m" style labels first, then a bare 4h/1D
// token next to the symbol. "M" is a month, "m" a minute.
func Timeframe(subject, body, fallback string) string {
	text := stripURLs(subject + " " + body)

	if m := reTimeframeLabel.FindStringSubmatch(text); m != nil {
		return m[1] + unitLetter(m[2])
	}

	start, end := symbolSpan(text)
	if start < 0 {
		return fallback
	}
	if m := reTimeframeAfter.FindStringSubmatch(text[end:]); m != nil {
		return m[1] + unitLetter(m[2])
	}
	if m := reTimeframeBefore.FindStringSubmatch(text[:start]); m != nil {
		return m[1] + unitLetter(m[2])
	}
	return fallback
}

// symbolSpan is the byte range of the pair Symbol would pick, or -1, -1.
func symbolSpan(text string) (int, int) {
	for _, re := range symbolPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			return loc[0], loc[1]
		}
	}
	return -1, -1
}

func unitLetter(unit string) string {
	if unit == "M" || strings.HasPrefix(strings.ToLower(unit), "mo") {
		return "M"
	}
	return strings.ToLower(unit[:1])
}

func stripURLs(s string) string {
	return reURL.ReplaceAllString(s, " ")
}

func containsAny(upper string, words []string) bool {
	for _, w := range words {
		if strings.Contains(upper, w) {
			return true
		}
	}
	return false
}

// Preview clips body to max runes and marks the cut with "...".
func Preview(body string, max int) string {
	r := []rune(body)
	if len(r) <= max {
		return body
	}
	return string(r[:max]) + "..."
}
