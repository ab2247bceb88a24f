// Package gateway defines the exchange connectivity contract the grid engine
// depends on, together with the typed error taxonomy the reconciler and
// executor branch on. Transport concerns (auth, rate limits, retries below
// the request level) live inside the per-venue implementations.
package gateway

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"gridbot/internal/domain"
)

var (
	// ErrOrderNotFound marks an order lookup for an id the exchange no
	// longer knows. The reconciler reacts with the trade-history fallback.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInsufficientFunds marks an order rejected for lack of balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrPriceViolation marks an order rejected for its price, including a
	// post-only order that would cross the book.
	ErrPriceViolation = errors.New("price violation")
)

// TransportError wraps any network or venue failure that is neither a
// not-found nor an order rejection. Such failures are retried on the next
// cycle with backoff.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// OrderRequest describes a post-only GTC limit order to rest on the book.
type OrderRequest struct {
	Pair          domain.Pair
	Side          domain.Side
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	ClientOrderID string
}

// Gateway is the exchange collaborator contract.
type Gateway interface {
	// Ticker returns the last traded price for the pair.
	Ticker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	// Balance returns the free amount of a single asset.
	Balance(ctx context.Context, asset string) (decimal.Decimal, error)
	// CreateOrder submits a post-only limit order and returns the exchange
	// order id.
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)
	// FetchOrder returns the authoritative order record, or
	// ErrOrderNotFound when the exchange no longer knows the id.
	FetchOrder(ctx context.Context, pair domain.Pair, orderID string) (*domain.OrderRecord, error)
	// CancelOrder cancels an order. Cancelling an already-terminal order is
	// not an error.
	CancelOrder(ctx context.Context, pair domain.Pair, orderID string) error
	// MyTrades returns up to limit recent executions, most recent first.
	MyTrades(ctx context.Context, pair domain.Pair, limit int) ([]domain.TradeRecord, error)
	// Instrument returns the pair's precision rules.
	Instrument(ctx context.Context, pair domain.Pair) (domain.Instrument, error)
}
