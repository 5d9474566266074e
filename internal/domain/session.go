package domain

import "github.com/shopspring/decimal"

// SessionConfig describes a payment link. It is fetched once per checkout
// session and read-only afterwards.
type SessionConfig struct {
	Slug               string          `json:"slug"`
	Amount             decimal.Decimal `json:"amount"`
	RecipientName      string          `json:"recipientName"`
	ProductDescription string          `json:"productDescription,omitempty"`
}
