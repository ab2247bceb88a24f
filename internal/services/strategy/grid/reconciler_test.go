package grid

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gridbot/internal/domain"
	"gridbot/internal/gateway"
)

func TestSyncOrdersBuyFilledPlacesPairedSell(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStrategy(t, gw)
	st := levelState(t, s, 100)
	require.NoError(t, st.AttachBuyOrder("buy-1", s.now()))

	gw.orders["buy-1"] = &domain.OrderRecord{
		ID:     "buy-1",
		Status: domain.OrderStatusFilled,
		Price:  decimal.NewFromInt(100),
		Filled: decimal.NewFromInt(15),
		Amount: decimal.NewFromInt(15),
	}

	require.NoError(t, s.SyncOrders(context.Background()))

	require.Equal(t, domain.HoldingHeld, st.Holding)
	require.True(t, st.Position.Equal(decimal.NewFromInt(15)))
	require.Empty(t, st.BuyOrderID)

	// the paired exit rests at fill price * (1 + minProfit)
	require.Len(t, gw.created, 1)
	require.Equal(t, domain.SideSell, gw.created[0].Side)
	require.True(t, gw.created[0].Price.Equal(decimal.NewFromInt(105)),
		"paired sell price, got %s", gw.created[0].Price)
	require.True(t, gw.created[0].Quantity.Equal(decimal.NewFromInt(15)))
	require.Equal(t, gw.createdIDs[0], st.SellOrderID)
}

func TestSyncOrdersPartialFillsNeverDoubleCount(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStrategy(t, gw)
	st := levelState(t, s, 100)
	require.NoError(t, st.AttachBuyOrder("buy-1", s.now()))

	rec := &domain.OrderRecord{
		ID:     "buy-1",
		Status: domain.OrderStatusPartiallyFilled,
		Price:  decimal.NewFromInt(100),
		Filled: decimal.NewFromInt(4),
		Amount: decimal.NewFromInt(15),
	}
	gw.orders["buy-1"] = rec

	require.NoError(t, s.SyncOrders(context.Background()))
	require.True(t, st.Position.Equal(decimal.NewFromInt(4)))

	// repeated poll with unchanged cumulative fill must be a no-op
	require.NoError(t, s.SyncOrders(context.Background()))
	require.True(t, st.Position.Equal(decimal.NewFromInt(4)))

	rec.Filled = decimal.NewFromInt(6)
	require.NoError(t, s.SyncOrders(context.Background()))
	require.True(t, st.Position.Equal(decimal.NewFromInt(6)))

	rec.Status = domain.OrderStatusFilled
	rec.Filled = decimal.NewFromInt(15)
	require.NoError(t, s.SyncOrders(context.Background()))
	require.True(t, st.Position.Equal(decimal.NewFromInt(15)))
	require.Equal(t, domain.HoldingHeld, st.Holding)
}

func TestSyncOrdersNotFoundRecoveredFromTrades(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStrategy(t, gw)
	st := levelState(t, s, 100)
	require.NoError(t, st.AttachBuyOrder("buy-1", s.now()))

	// order vanished from the books but the fill shows up in trade history
	gw.trades = []domain.TradeRecord{
		{OrderID: "other", Price: decimal.NewFromInt(99), Amount: decimal.NewFromInt(1)},
		{OrderID: "buy-1", Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(15)},
	}

	require.NoError(t, s.SyncOrders(context.Background()))

	// same end state as a FILLED fetch with that trade's price and amount
	require.Equal(t, domain.HoldingHeld, st.Holding)
	require.True(t, st.Position.Equal(decimal.NewFromInt(15)))
	require.True(t, st.BuyPrice.Equal(decimal.NewFromInt(100)))
	require.Empty(t, st.BuyOrderID)
	require.Len(t, gw.created, 1, "paired sell is placed for the recovered fill")
}

func TestSyncOrdersNotFoundWithoutTradeClearsID(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStrategy(t, gw)
	st := levelState(t, s, 100)
	require.NoError(t, st.AttachBuyOrder("buy-1", s.now()))

	rec := &domain.OrderRecord{
		ID:     "buy-1",
		Status: domain.OrderStatusPartiallyFilled,
		Price:  decimal.NewFromInt(100),
		Filled: decimal.NewFromInt(4),
		Amount: decimal.NewFromInt(15),
	}
	gw.orders["buy-1"] = rec
	require.NoError(t, s.SyncOrders(context.Background()))
	require.True(t, st.Position.Equal(decimal.NewFromInt(4)))

	// order gone, no matching trade: id is dropped, recorded partials stay
	delete(gw.orders, "buy-1")
	require.NoError(t, s.SyncOrders(context.Background()))

	require.Empty(t, st.BuyOrderID)
	require.Equal(t, domain.HoldingEmpty, st.Holding)
	require.True(t, st.Position.Equal(decimal.NewFromInt(4)))
}

func TestSyncOrdersCancelledByVenue(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStrategy(t, gw)
	st := levelState(t, s, 100)
	require.NoError(t, st.AttachBuyOrder("buy-1", s.now()))

	gw.orders["buy-1"] = &domain.OrderRecord{
		ID:     "buy-1",
		Status: domain.OrderStatusCancelled,
		Price:  decimal.NewFromInt(100),
		Filled: decimal.Zero,
		Amount: decimal.NewFromInt(15),
	}

	require.NoError(t, s.SyncOrders(context.Background()))
	require.Empty(t, st.BuyOrderID)
	require.Equal(t, domain.HoldingEmpty, st.Holding)
}

func TestSyncOrdersOneBadLevelDoesNotBlockOthers(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStrategy(t, gw)

	lowSt := levelState(t, s, 100)
	require.NoError(t, lowSt.AttachBuyOrder("buy-1", s.now()))
	gw.fetchErr["buy-1"] = &gateway.TransportError{Op: "fetch order", Err: context.DeadlineExceeded}

	midSt := levelState(t, s, 110)
	require.NoError(t, midSt.RecordBuyFilled(decimal.NewFromInt(9), decimal.NewFromInt(110), s.now()))
	require.NoError(t, midSt.AttachSellOrder("sell-1", s.now()))
	gw.orders["sell-1"] = &domain.OrderRecord{
		ID:     "sell-1",
		Status: domain.OrderStatusFilled,
		Price:  decimal.NewFromInt(120),
		Filled: decimal.NewFromInt(9),
		Amount: decimal.NewFromInt(9),
	}

	err := s.SyncOrders(context.Background())
	require.True(t, gateway.IsTransport(err), "the failing level's error surfaces for backoff")

	// the healthy level was still reconciled
	require.Equal(t, domain.HoldingEmpty, midSt.Holding)
	require.True(t, midSt.Position.IsZero())
	require.Equal(t, "buy-1", lowSt.BuyOrderID, "failed level is retried next cycle")
}

func TestSyncOrdersSellPartialDiffing(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStrategy(t, gw)
	st := levelState(t, s, 100)
	require.NoError(t, st.RecordBuyFilled(decimal.NewFromInt(10), decimal.NewFromInt(100), s.now()))
	require.NoError(t, st.AttachSellOrder("sell-1", s.now()))

	rec := &domain.OrderRecord{
		ID:     "sell-1",
		Status: domain.OrderStatusPartiallyFilled,
		Price:  decimal.NewFromInt(110),
		Filled: decimal.NewFromInt(2),
		Amount: decimal.NewFromInt(10),
	}
	gw.orders["sell-1"] = rec

	require.NoError(t, s.SyncOrders(context.Background()))
	require.True(t, st.Position.Equal(decimal.NewFromInt(8)))

	require.NoError(t, s.SyncOrders(context.Background()))
	require.True(t, st.Position.Equal(decimal.NewFromInt(8)), "unchanged cumulative fill is not re-applied")

	rec.Filled = decimal.NewFromInt(5)
	require.NoError(t, s.SyncOrders(context.Background()))
	require.True(t, st.Position.Equal(decimal.NewFromInt(5)))

	rec.Status = domain.OrderStatusFilled
	rec.Filled = decimal.NewFromInt(10)
	require.NoError(t, s.SyncOrders(context.Background()))
	require.Equal(t, domain.HoldingEmpty, st.Holding)
	require.True(t, st.Position.IsZero())
	require.Empty(t, st.SellOrderID)
}

func TestSyncOrdersSellNotFoundRecoveredFromTrades(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStrategy(t, gw)
	st := levelState(t, s, 100)
	require.NoError(t, st.RecordBuyFilled(decimal.NewFromInt(10), decimal.NewFromInt(100), s.now()))
	require.NoError(t, st.AttachSellOrder("sell-1", s.now()))

	gw.trades = []domain.TradeRecord{
		{OrderID: "sell-1", Price: decimal.NewFromInt(110), Amount: decimal.NewFromInt(10)},
	}

	require.NoError(t, s.SyncOrders(context.Background()))
	require.Equal(t, domain.HoldingEmpty, st.Holding)
	require.True(t, st.Position.IsZero())
	require.Empty(t, st.SellOrderID)
}
