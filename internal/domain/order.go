package domain

import "github.com/shopspring/decimal"

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus is the normalized lifecycle status of an exchange order.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// OrderRecord is the gateway's view of an order. The exchange owns it;
// the bot only references it by id.
type OrderRecord struct {
	ID     string
	Status OrderStatus
	Price  decimal.Decimal
	// Filled is the cumulative executed base quantity.
	Filled decimal.Decimal
	// Amount is the originally requested base quantity.
	Amount decimal.Decimal
}

// TradeRecord is a single execution from the account's trade history.
// It is used only as a fallback source of truth when an order lookup
// returns not-found.
type TradeRecord struct {
	OrderID string
	Price   decimal.Decimal
	Amount  decimal.Decimal
}

// Instrument carries the precision rules orders must be rounded to
// before submission.
type Instrument struct {
	PricePrecision    int32
	QuantityPrecision int32
}
