package sale

import (
	"fmt"
	"strconv"
	"strings"
)

// PaymentType enumerates how a sale was settled at the till.
type PaymentType string

const (
	PaymentCash  PaymentType = "Cash"
	PaymentGCash PaymentType = "GCash"
	PaymentTab   PaymentType = "Tab"
	PaymentSplit PaymentType = "Split"
)

// Amount is a monetary value in centavos. Amounts are kept as integers so
// that serialization is stable: 100.50 is always "100.50", never "100.5"
// or "100.499999...".
type Amount int64

// ParseAmount parses a decimal string ("100.50") into centavos.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac := s, "0"
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
		if whole == "" {
			whole = "0"
		}
		if len(frac) > 2 {
			return 0, fmt.Errorf("amount %q has more than two decimal places", s)
		}
		for len(frac) < 2 {
			frac += "0"
		}
	} else {
		frac = "00"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	v := w*100 + f
	if neg {
		v = -v
	}
	return Amount(v), nil
}

// String renders the amount with exactly two decimal places.
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders amounts as fixed two-decimal strings so the JSON form
// is byte-stable across re-serialization.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare integer
// (centavos).
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		parsed, err := ParseAmount(unquoted)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s", s)
	}
	*a = Amount(v)
	return nil
}

// Item is one cart line. Items keep the order they were rung up in; the
// ordered list is part of the transaction's identity.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice Amount `json:"unit_price"`
	Subtotal  Amount `json:"subtotal"`
}

// SplitPart is one leg of a split payment.
type SplitPart struct {
	Type   PaymentType `json:"type"`
	Amount Amount      `json:"amount"`
}

// PaymentInfo carries the payment-type specific details.
type PaymentInfo struct {
	Tendered  Amount      `json:"tendered,omitempty"`
	Change    Amount      `json:"change,omitempty"`
	Reference string      `json:"reference,omitempty"`
	Splits    []SplitPart `json:"splits,omitempty"`
}

// Transaction is the transaction-creation request body captured at the till.
// Field order is fixed by this declaration; canonical serialization depends
// on it staying stable.
type Transaction struct {
	Items       []Item      `json:"items"`
	Total       Amount      `json:"total"`
	Discount    Amount      `json:"discount,omitempty"`
	PaymentType PaymentType `json:"payment_type"`
	PaymentInfo PaymentInfo `json:"payment_info"`
	CustomerID  string      `json:"customer_id,omitempty"`
	CashierID   string      `json:"cashier_id"`
}

// Validate checks the minimal shape needed before the sale can be queued.
func (t *Transaction) Validate() error {
	if len(t.Items) == 0 {
		return fmt.Errorf("transaction has no items")
	}
	if t.Total <= 0 {
		return fmt.Errorf("transaction total must be positive")
	}
	if t.PaymentType == "" {
		return fmt.Errorf("payment type is required")
	}
	if t.CashierID == "" {
		return fmt.Errorf("cashier id is required")
	}
	return nil
}
