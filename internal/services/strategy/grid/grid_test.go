package grid

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridbot/internal/domain"
	"gridbot/internal/gateway"
)

// fakeGateway is an in-memory exchange. Orders appear in its books exactly
// as tests stage them.
type fakeGateway struct {
	ticker      decimal.Decimal
	tickerErr   error
	balance     decimal.Decimal
	orders      map[string]*domain.OrderRecord
	fetchErr    map[string]error
	trades      []domain.TradeRecord
	tradesErr   error
	created     []gateway.OrderRequest
	createdIDs  []string
	createErr   error
	cancelled   []string
	nextOrderID int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		ticker:   decimal.NewFromInt(115),
		balance:  decimal.NewFromInt(1000000),
		orders:   make(map[string]*domain.OrderRecord),
		fetchErr: make(map[string]error),
	}
}

func (f *fakeGateway) Ticker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if f.tickerErr != nil {
		return decimal.Zero, f.tickerErr
	}
	return f.ticker, nil
}

func (f *fakeGateway) Balance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextOrderID++
	id := fmt.Sprintf("order-%d", f.nextOrderID)
	f.created = append(f.created, req)
	f.createdIDs = append(f.createdIDs, id)
	return id, nil
}

func (f *fakeGateway) FetchOrder(ctx context.Context, pair domain.Pair, orderID string) (*domain.OrderRecord, error) {
	if err, ok := f.fetchErr[orderID]; ok {
		return nil, err
	}
	if rec, ok := f.orders[orderID]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, gateway.ErrOrderNotFound
}

func (f *fakeGateway) CancelOrder(ctx context.Context, pair domain.Pair, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeGateway) MyTrades(ctx context.Context, pair domain.Pair, limit int) ([]domain.TradeRecord, error) {
	if f.tradesErr != nil {
		return nil, f.tradesErr
	}
	return f.trades, nil
}

func (f *fakeGateway) Instrument(ctx context.Context, pair domain.Pair) (domain.Instrument, error) {
	return domain.Instrument{PricePrecision: 2, QuantityPrecision: 4}, nil
}

// newTestStrategy builds a three-level grid [100, 110, 120] with 1000 quote
// per level. Level 100 is the accumulation zone with the aggressive tier.
func newTestStrategy(t *testing.T, gw *fakeGateway) *Strategy {
	t.Helper()

	g, err := domain.BuildGrid(domain.Pair{Base: "ETH", Quote: "USDC"},
		decimal.NewFromInt(100), decimal.NewFromInt(130),
		decimal.NewFromInt(3000), 3)
	require.NoError(t, err)

	s, err := NewStrategy(zap.NewNop(), g, gw, nil, Config{
		MinProfit:      decimal.NewFromFloat(0.05),
		MakerFee:       decimal.NewFromFloat(0.001),
		TakerFee:       decimal.NewFromFloat(0.001),
		TradeScanLimit: 10,
	})
	require.NoError(t, err)

	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func levelState(t *testing.T, s *Strategy, price int64) *domain.LevelState {
	t.Helper()
	st, err := s.book.Get(decimal.NewFromInt(price))
	require.NoError(t, err)
	return st
}
