// Package amount extracts a paid amount and its currency symbol from notification text.
package amount

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrAmbiguous is returned when the matched number cannot be turned into a value,
// e.g. "1,200.00" where both separators end up as decimal points.
var ErrAmbiguous = errors.New("ambiguous amount")

// Symbols lists the accepted currency tokens in match order.
var Symbols = []string{
	"€", "$", "£", "¥", "₹", "元", "₽", "₪", "₩", "฿", "₫", "₱", "₭", "₮", "₦", "₼",
	"G", "kf", "S/", "R$", "CHF", "kr",
}

var paidPattern = compile(Symbols)

func compile(symbols []string) *regexp.Regexp {
	quoted := make([]string, 0, len(symbols))
	for _, s := range symbols {
		quoted = append(quoted, regexp.QuoteMeta(s))
	}
	// Android formats currencies with no-break spaces, which \s alone misses.
	const space = `[\s\p{Zs}]*`
	return regexp.MustCompile(
		`Paid` + space + `(?P<symbol>` + strings.Join(quoted, "|") + `)` + space +
			`(?P<amount>\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?)`,
	)
}

// Result is a successfully extracted amount.
type Result struct {
	Amount float64
	// Currency is the symbol exactly as matched, e.g. "CHF" or "R$".
	Currency string
	// Raw is the numeric literal as it appeared in the text.
	Raw string
}

// Extract finds the first "Paid <symbol> <number>" sequence in text.
// It returns nil, nil when nothing matches and an error wrapping
// ErrAmbiguous when the number matches but does not parse.
func Extract(text string) (*Result, error) {
	if text == "" {
		return nil, nil
	}

	m := paidPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}

	symbol := m[paidPattern.SubexpIndex("symbol")]
	raw := m[paidPattern.SubexpIndex("amount")]

	// Every separator is read as a decimal point, so only single-separator
	// literals survive the parse.
	normalized := strings.ReplaceAll(raw, ",", ".")
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q after %s", ErrAmbiguous, raw, symbol)
	}

	return &Result{
		Amount:   value,
		Currency: symbol,
		Raw:      raw,
	}, nil
}
