package gateway

import (
	"context"
	"strings"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"gridbot/internal/domain"
)

// BybitGateway implements Gateway on the Bybit V5 spot API. Post-only
// semantics use the PostOnly time in force; the venue cancels such an
// order instead of letting it take liquidity.
type BybitGateway struct {
	client *bybit.Client
}

func NewBybitGateway(apiKey, apiSecret string) *BybitGateway {
	client := bybit.NewClient().WithAuth(apiKey, apiSecret)
	return &BybitGateway{client: client}
}

func (g *BybitGateway) Ticker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(pair.Symbol())
	result, err := g.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, &TransportError{Op: "ticker", Err: err}
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Zero, &TransportError{Op: "ticker", Err: errors.Errorf("no price for %s", pair.Symbol())}
	}
	last, err := decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to parse ticker price")
	}
	return last, nil
}

func (g *BybitGateway) Balance(ctx context.Context, asset string) (decimal.Decimal, error) {
	res, err := g.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return decimal.Zero, &TransportError{Op: "balance", Err: err}
	}
	if len(res.Result.List) == 0 {
		return decimal.Zero, nil
	}
	for _, coin := range res.Result.List[0].Coin {
		if string(coin.Coin) == asset {
			free, err := freeBalance(coin.AvailableToWithdraw, coin.WalletBalance)
			if err != nil {
				return decimal.Zero, errors.Wrap(err, "failed to parse balance")
			}
			return free, nil
		}
	}
	return decimal.Zero, nil
}

// freeBalance picks the spendable figure: the wallet balance includes funds
// locked in resting orders, so the available amount wins when reported.
func freeBalance(available, wallet string) (decimal.Decimal, error) {
	if available != "" {
		return decimal.NewFromString(available)
	}
	return decimal.NewFromString(wallet)
}

func (g *BybitGateway) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	side := bybit.SideBuy
	if req.Side == domain.SideSell {
		side = bybit.SideSell
	}

	price := req.Price.String()
	tif := bybit.TimeInForcePostOnly
	linkID := req.ClientOrderID

	res, err := g.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    bybit.CategoryV5Spot,
		Symbol:      bybit.SymbolV5(req.Pair.Symbol()),
		Side:        side,
		OrderType:   bybit.OrderTypeLimit,
		Qty:         req.Quantity.String(),
		Price:       &price,
		TimeInForce: &tif,
		OrderLinkID: &linkID,
	})
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "insufficient") {
			return "", errors.Wrap(ErrInsufficientFunds, err.Error())
		}
		return "", &TransportError{Op: "create order", Err: err}
	}
	return res.Result.OrderID, nil
}

func (g *BybitGateway) FetchOrder(ctx context.Context, pair domain.Pair, orderID string) (*domain.OrderRecord, error) {
	symbol := bybit.SymbolV5(pair.Symbol())

	open, err := g.client.V5().Order().GetOpenOrders(bybit.V5GetOpenOrdersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
		OrderID:  &orderID,
	})
	if err != nil {
		return nil, &TransportError{Op: "fetch order", Err: err}
	}
	if len(open.Result.List) > 0 {
		return bybitOrderRecord(orderID, open.Result.List[0].Price,
			open.Result.List[0].CumExecQty, open.Result.List[0].Qty, open.Result.List[0].OrderStatus)
	}

	// realtime query only covers live orders, terminal ones live in history
	hist, err := g.client.V5().Order().GetHistoryOrders(bybit.V5GetHistoryOrdersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
		OrderID:  &orderID,
	})
	if err != nil {
		return nil, &TransportError{Op: "fetch order", Err: err}
	}
	if len(hist.Result.List) == 0 {
		return nil, errors.Wrapf(ErrOrderNotFound, "order %s", orderID)
	}
	return bybitOrderRecord(orderID, hist.Result.List[0].Price,
		hist.Result.List[0].CumExecQty, hist.Result.List[0].Qty, hist.Result.List[0].OrderStatus)
}

func bybitOrderRecord(orderID, price, cumExec, qty string, status bybit.OrderStatus) (*domain.OrderRecord, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse order price")
	}
	filled := decimal.Zero
	if cumExec != "" {
		filled, err = decimal.NewFromString(cumExec)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse executed quantity")
		}
	}
	amount, err := decimal.NewFromString(qty)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse order quantity")
	}
	return &domain.OrderRecord{
		ID:     orderID,
		Status: mapBybitStatus(status),
		Price:  p,
		Filled: filled,
		Amount: amount,
	}, nil
}

func mapBybitStatus(s bybit.OrderStatus) domain.OrderStatus {
	switch s {
	case bybit.OrderStatusFilled:
		return domain.OrderStatusFilled
	case bybit.OrderStatusPartiallyFilled:
		return domain.OrderStatusPartiallyFilled
	case bybit.OrderStatusCancelled, bybit.OrderStatusRejected, bybit.OrderStatusDeactivated:
		return domain.OrderStatusCancelled
	default:
		return domain.OrderStatusOpen
	}
}

func (g *BybitGateway) CancelOrder(ctx context.Context, pair domain.Pair, orderID string) error {
	_, err := g.client.V5().Order().CancelOrder(bybit.V5CancelOrderParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(pair.Symbol()),
		OrderID:  &orderID,
	})
	if err != nil {
		msg := strings.ToLower(err.Error())
		// already filled or already cancelled: cancel is idempotent
		if strings.Contains(msg, "not exists") || strings.Contains(msg, "too late") {
			return nil
		}
		return &TransportError{Op: "cancel order", Err: err}
	}
	return nil
}

func (g *BybitGateway) MyTrades(ctx context.Context, pair domain.Pair, limit int) ([]domain.TradeRecord, error) {
	symbol := bybit.SymbolV5(pair.Symbol())
	res, err := g.client.V5().Execution().GetExecutionList(bybit.V5GetExecutionParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
		Limit:    &limit,
	})
	if err != nil {
		return nil, &TransportError{Op: "my trades", Err: err}
	}

	// bybit already returns most recent first
	records := make([]domain.TradeRecord, 0, len(res.Result.List))
	for _, e := range res.Result.List {
		price, err := decimal.NewFromString(e.ExecPrice)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse execution price")
		}
		qty, err := decimal.NewFromString(e.ExecQty)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse execution quantity")
		}
		records = append(records, domain.TradeRecord{
			OrderID: e.OrderID,
			Price:   price,
			Amount:  qty,
		})
	}
	return records, nil
}

func (g *BybitGateway) Instrument(ctx context.Context, pair domain.Pair) (domain.Instrument, error) {
	symbol := bybit.SymbolV5(pair.Symbol())
	res, err := g.client.V5().Market().GetInstrumentsInfo(bybit.V5GetInstrumentsInfoParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return domain.Instrument{}, &TransportError{Op: "instrument", Err: err}
	}
	if res.Result.Spot == nil || len(res.Result.Spot.List) == 0 {
		return domain.Instrument{}, errors.Errorf("instrument %s not found", pair.Symbol())
	}
	info := res.Result.Spot.List[0]
	return bybitInstrument(info.PriceFilter, info.LotSizeFilter), nil
}

// bybitInstrument derives precision from the instrument filters; empty
// filter fields keep the defaults.
func bybitInstrument(price bybit.SpotPriceFilterV5, lot bybit.SpotLotSizeFilterV5) domain.Instrument {
	inst := domain.Instrument{PricePrecision: 2, QuantityPrecision: 4}
	if price.TickSize != "" {
		inst.PricePrecision = stepPrecision(price.TickSize)
	}
	if lot.BasePrecision != "" {
		inst.QuantityPrecision = stepPrecision(lot.BasePrecision)
	}
	return inst
}
