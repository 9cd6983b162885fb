package extract

import (
	"regexp"
	"strconv"
	"strings"

	"alertbridge/internal/signal"
)

// Thresholds decide the condition when the text names a value but not the word.
type Thresholds struct {
	RSIOversold     float64
	RSIOverbought   float64
	StochOversold   float64
	StochOverbought float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOversold:     30,
		RSIOverbought:   70,
		StochOversold:   20,
		StochOverbought: 80,
	}
}

var (
	reRSI   = regexp.MustCompile(`(?i)\bRSI\b(?:\s*\(\s*\d+\s*\))?\s*(?:is|=|:|at|of)?\s*(\d{1,3}(?:\.\d+)?)`)
	reStoch = regexp.MustCompile(`(?i)\bstoch(?:astic)?(?:\s*RSI|\s*%?[KD])?(?:\s*\([\d,\s]+\))?\s*(?:is|=|:|at|of)?\s*(\d{1,3}(?:\.\d+)?)`)

	reOversold   = regexp.MustCompile(`(?i)\bover[\s-]?sold\b`)
	reOverbought = regexp.MustCompile(`(?i)\bover[\s-]?bought\b`)
)

// Indicators pulls RSI/stochastic readings and the oversold/overbought condition.
// It returns nil when the text carries none of them.
func Indicators(subject, body string, th Thresholds) *signal.Indicators {
	text := subject + " " + body
	ind := &signal.Indicators{
		RSI:   rsiValue(text),
		Stoch: oscillatorValue(reStoch, text),
	}

	sold := reOversold.FindStringIndex(text)
	bought := reOverbought.FindStringIndex(text)
	switch {
	case sold != nil && (bought == nil || sold[0] < bought[0]):
		ind.Condition = signal.ConditionOversold
	case bought != nil:
		ind.Condition = signal.ConditionOverbought
	case ind.RSI != nil && *ind.RSI <= th.RSIOversold:
		ind.Condition = signal.ConditionOversold
	case ind.RSI != nil && *ind.RSI >= th.RSIOverbought:
		ind.Condition = signal.ConditionOverbought
	case ind.Stoch != nil && *ind.Stoch <= th.StochOversold:
		ind.Condition = signal.ConditionOversold
	case ind.Stoch != nil && *ind.Stoch >= th.StochOverbought:
		ind.Condition = signal.ConditionOverbought
	}

	if ind.Empty() {
		return nil
	}
	return ind
}

// rsiValue skips "Stoch RSI" mentions, which belong to the stochastic reading.
func rsiValue(text string) *float64 {
	for _, m := range reRSI.FindAllStringSubmatchIndex(text, -1) {
		before := strings.ToLower(strings.TrimRight(text[:m[0]], " "))
		if strings.HasSuffix(before, "stoch") || strings.HasSuffix(before, "stochastic") {
			continue
		}
		if v, ok := parseOscillator(text[m[2]:m[3]]); ok {
			return &v
		}
	}
	return nil
}

func oscillatorValue(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	if v, ok := parseOscillator(m[1]); ok {
		return &v
	}
	return nil
}

// oscillators live in 0..100
func parseOscillator(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}
