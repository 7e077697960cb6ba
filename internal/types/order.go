package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Side is the order side on the venue.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderKind is the venue order type. Only limit orders are placed.
type OrderKind string

const (
	OrderKindLimit OrderKind = "LIMIT"
)

// OrderParams is the order submission payload sent to the venue. Size and
// price go over the wire as decimal strings.
type OrderParams struct {
	Market   string          `json:"market"`
	Side     Side            `json:"side"`
	Kind     OrderKind       `json:"type"`
	PostOnly bool            `json:"postOnly"`
	Size     decimal.Decimal `json:"size"`
	Price    decimal.Decimal `json:"price"`
	LimitFee string          `json:"limitFee"`
	// ExpirationEpochSeconds is the order expiry as epoch seconds.
	ExpirationEpochSeconds int64  `json:"expiration"`
	ClientID               string `json:"clientId"`
}

// OrderReceipt is what the venue returns for a submitted or pending order.
// Raw is kept for the position audit payload.
type OrderReceipt struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// LegExecution pairs the submitted params with the venue response for one leg.
type LegExecution struct {
	OrderParams OrderParams  `json:"order_params"`
	OrderData   OrderReceipt `json:"order_data"`
}
