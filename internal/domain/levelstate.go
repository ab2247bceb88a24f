package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Holding marks whether inventory has been acquired at a grid level.
type Holding int

const (
	// HoldingEmpty means no inventory is attributed to the level.
	HoldingEmpty Holding = iota
	// HoldingHeld means inventory was acquired and awaits exit.
	HoldingHeld
)

func (h Holding) String() string {
	if h == HoldingHeld {
		return "HOLDING"
	}
	return "EMPTY"
}

// LevelState is the lifecycle state of a single grid level. One record is
// created per level at grid-build time and lives for the whole session.
//
// All mutation goes through the Record*/Attach* methods below. Each method
// checks its precondition and returns an error instead of applying when the
// precondition fails; callers log such failures and move on, they are never
// fatal. The authoritative state always lives at the exchange, so the bot
// favors availability over strict local consistency.
type LevelState struct {
	Holding      Holding         `json:"holding"`
	BuyOrderID   string          `json:"buy_order_id,omitempty"`
	SellOrderID  string          `json:"sell_order_id,omitempty"`
	Position     decimal.Decimal `json:"position"`
	SellFilled   decimal.Decimal `json:"sell_filled,omitempty"`
	BuyPrice     decimal.Decimal `json:"buy_price,omitempty"`
	LastBuyTime  time.Time       `json:"last_buy_time,omitempty"`
	LastSellTime time.Time       `json:"last_sell_time,omitempty"`
}

// NewLevelState returns the initial empty state.
func NewLevelState() *LevelState {
	return &LevelState{Position: decimal.Zero, SellFilled: decimal.Zero}
}

// RecordBuyFilled applies a completed buy: the level starts holding the
// filled quantity and the buy order id is released.
func (s *LevelState) RecordBuyFilled(qty, price decimal.Decimal, at time.Time) error {
	if s.Holding != HoldingEmpty {
		return errors.New("record buy filled: level already holding")
	}
	s.Holding = HoldingHeld
	s.Position = s.Position.Add(qty)
	s.BuyPrice = price
	s.BuyOrderID = ""
	s.LastBuyTime = at
	return nil
}

// RecordBuyPartial accrues an incremental partial fill without flipping the
// holding flag. The caller is responsible for passing the increment, not the
// cumulative exchange-reported figure.
func (s *LevelState) RecordBuyPartial(qty decimal.Decimal) error {
	if s.BuyOrderID == "" {
		return errors.New("record buy partial: no resting buy order")
	}
	s.Position = s.Position.Add(qty)
	return nil
}

// RecordBuyCancelled releases the buy order id; holding stays empty.
func (s *LevelState) RecordBuyCancelled() error {
	if s.BuyOrderID == "" {
		return errors.New("record buy cancelled: no resting buy order")
	}
	s.BuyOrderID = ""
	return nil
}

// RecordSellFilled applies a completed sell: the level returns to empty with
// zero position and the sell order id is released.
func (s *LevelState) RecordSellFilled(at time.Time) error {
	if s.Holding != HoldingHeld {
		return errors.New("record sell filled: level not holding")
	}
	s.Holding = HoldingEmpty
	s.Position = decimal.Zero
	s.SellFilled = decimal.Zero
	s.SellOrderID = ""
	s.BuyPrice = decimal.Zero
	s.LastSellTime = at
	return nil
}

// RecordSellPartial reduces position by an incremental partial fill.
func (s *LevelState) RecordSellPartial(qty decimal.Decimal) error {
	if s.SellOrderID == "" {
		return errors.New("record sell partial: no resting sell order")
	}
	s.Position = s.Position.Sub(qty)
	if s.Position.IsNegative() {
		s.Position = decimal.Zero
	}
	s.SellFilled = s.SellFilled.Add(qty)
	return nil
}

// RecordSellCancelled releases the sell order id; position is kept.
func (s *LevelState) RecordSellCancelled() error {
	if s.SellOrderID == "" {
		return errors.New("record sell cancelled: no resting sell order")
	}
	s.SellOrderID = ""
	return nil
}

// AttachBuyOrder claims a freshly placed buy order for this level. A pending
// buy can only exist on an empty level with no position.
func (s *LevelState) AttachBuyOrder(id string, at time.Time) error {
	if s.Holding != HoldingEmpty {
		return errors.New("attach buy order: level already holding")
	}
	if s.BuyOrderID != "" {
		return errors.Errorf("attach buy order: order %s already resting", s.BuyOrderID)
	}
	if s.Position.IsPositive() {
		return errors.New("attach buy order: level has residual position")
	}
	s.BuyOrderID = id
	s.LastBuyTime = at
	return nil
}

// AttachSellOrder claims a freshly placed sell order for this level. A
// pending sell requires realized holding.
func (s *LevelState) AttachSellOrder(id string, at time.Time) error {
	if s.Holding != HoldingHeld {
		return errors.New("attach sell order: level not holding")
	}
	if s.SellOrderID != "" {
		return errors.Errorf("attach sell order: order %s already resting", s.SellOrderID)
	}
	if !s.Position.IsPositive() {
		return errors.New("attach sell order: no position to sell")
	}
	s.SellOrderID = id
	s.SellFilled = decimal.Zero
	s.LastSellTime = at
	return nil
}
