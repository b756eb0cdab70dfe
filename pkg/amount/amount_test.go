package amount

import (
	"errors"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantAmount   float64
		wantCurrency string
	}{
		{"euro", "Paid €12.50 at coffee shop", 12.50, "€"},
		{"euro round trip", "Paid €25.00 at Mercadona 🛒", 25.00, "€"},
		{"dollar", "Paid $99.99 online", 99.99, "$"},
		{"pound", "Paid £250.00 for hotel", 250.00, "£"},
		{"euro with space", "Paid € 35.00 dinner", 35.00, "€"},
		{"no space after keyword", "Paid€8.00 tapas", 8.00, "€"},
		{"three digits", "Paid €999.00 laptop", 999.00, "€"},
		{"swiss franc verbatim", "Paid CHF 45.00 lunch", 45.00, "CHF"},
		{"brazilian real", "Paid R$150.00 shopping", 150.00, "R$"},
		{"peruvian sol", "Paid S/ 20.00 taxi", 20.00, "S/"},
		{"krona", "Paid kr 99,50 fika", 99.50, "kr"},
		{"comma decimal", "Paid €7,30 coffee", 7.30, "€"},
		{"integer amount", "Paid ₹500 groceries", 500, "₹"},
		{"first occurrence wins", "Paid $5.00 then Paid €6.00", 5.00, "$"},
		{"keyword mid sentence", "You Paid ¥300 at Lawson", 300, "¥"},
		// Bare four digit numbers only match their first three digits.
		{"four digits without separator", "Paid €1200.00 laptop", 120, "€"},
		// A single separator is always read as a decimal point.
		{"single thousands separator", "Paid €1.200 rent", 1.2, "€"},
		{"no-break space after keyword", "Paid\u00a0€25.00 at shop", 25.00, "€"},
		{"no-break space after symbol", "Paid €\u00a019.90 pharmacy", 19.90, "€"},
		{"narrow no-break space", "Paid €\u202f25.00", 25.00, "€"},
		{"narrow no-break space before symbol", "Paid\u202fCHF\u202f45.00", 45.00, "CHF"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil {
				t.Fatal("expected a match, got nil")
			}
			if got.Amount != tc.wantAmount {
				t.Errorf("amount: got %v, want %v", got.Amount, tc.wantAmount)
			}
			if got.Currency != tc.wantCurrency {
				t.Errorf("currency: got %q, want %q", got.Currency, tc.wantCurrency)
			}
		})
	}
}

func TestExtract_NoMatch(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"random text", "random text"},
		{"no keyword", "€20.00 deducted from account"},
		{"lowercase keyword", "paid €20.00 coffee"},
		{"unknown symbol", "Paid ¤20.00 coffee"},
		{"no number", "Paid € coffee"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != nil {
				t.Errorf("expected no match, got %+v", got)
			}
		})
	}
}

func TestExtract_Ambiguous(t *testing.T) {
	tests := []string{
		"Paid €1,200.00 laptop",
		"Paid $1.234.567,89 car",
		"Paid €10,000,000 yacht",
		"Paid €\u00a01,200.00 laptop",
		"Paid\u202f$\u202f1.234,56 phone",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			got, err := Extract(text)
			if !errors.Is(err, ErrAmbiguous) {
				t.Fatalf("expected ErrAmbiguous, got err=%v result=%+v", err, got)
			}
			if got != nil {
				t.Errorf("expected nil result on error, got %+v", got)
			}
		})
	}
}
