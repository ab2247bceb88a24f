// Package domain defines the core data structures of the grid trading bot.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// Base currency symbol (the asset being accumulated).
	Base string
	// Quote currency symbol (the asset being spent).
	Quote string
}

// PairFromString parses "ETH_USDC" style notation.
func PairFromString(s string) (Pair, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, errors.Errorf("invalid pair %q, expected BASE_QUOTE", s)
	}
	return Pair{Base: parts[0], Quote: parts[1]}, nil
}

// String returns the underscore-separated representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// Symbol returns the concatenated exchange symbol.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}
