package gateway

import (
	"context"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"gridbot/internal/domain"
)

// binance API error codes of interest
const (
	binanceCodeOrderRejected = -2010
	binanceCodeUnknownOrder  = -2011
	binanceCodeNoSuchOrder   = -2013
)

// BinanceGateway implements Gateway on the Binance spot API. Post-only
// semantics use the LIMIT_MAKER order type, which the venue rejects
// outright when the price would cross the book.
type BinanceGateway struct {
	client *binance.Client
}

func NewBinanceGateway(apiKey, apiSecret string) *BinanceGateway {
	return &BinanceGateway{client: binance.NewClient(apiKey, apiSecret)}
}

func (g *BinanceGateway) Ticker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := g.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Zero, &TransportError{Op: "ticker", Err: err}
	}
	if len(prices) == 0 {
		return decimal.Zero, &TransportError{Op: "ticker", Err: errors.Errorf("no price for %s", pair.Symbol())}
	}
	last, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to parse ticker price")
	}
	return last, nil
}

func (g *BinanceGateway) Balance(ctx context.Context, asset string) (decimal.Decimal, error) {
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, &TransportError{Op: "balance", Err: err}
	}
	for _, b := range account.Balances {
		if b.Asset == asset {
			free, err := decimal.NewFromString(b.Free)
			if err != nil {
				return decimal.Zero, errors.Wrap(err, "failed to parse balance")
			}
			return free, nil
		}
	}
	return decimal.Zero, nil
}

func (g *BinanceGateway) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	side := binance.SideTypeBuy
	if req.Side == domain.SideSell {
		side = binance.SideTypeSell
	}

	res, err := g.client.NewCreateOrderService().
		Symbol(req.Pair.Symbol()).
		Side(side).
		Type(binance.OrderTypeLimitMaker).
		Quantity(req.Quantity.String()).
		Price(req.Price.String()).
		NewClientOrderID(req.ClientOrderID).
		Do(ctx)
	if err != nil {
		return "", g.mapCreateError(err)
	}
	return strconv.FormatInt(res.OrderID, 10), nil
}

// mapCreateError translates the venue's rejection code into the typed
// taxonomy. Binance reports both balance and price rejections under -2010,
// so the message disambiguates; that text never leaves this adapter.
func (g *BinanceGateway) mapCreateError(err error) error {
	apiErr, ok := err.(*common.APIError)
	if !ok {
		return &TransportError{Op: "create order", Err: err}
	}
	if apiErr.Code == binanceCodeOrderRejected {
		if strings.Contains(strings.ToLower(apiErr.Message), "insufficient") {
			return errors.Wrap(ErrInsufficientFunds, apiErr.Message)
		}
		return errors.Wrap(ErrPriceViolation, apiErr.Message)
	}
	return &TransportError{Op: "create order", Err: err}
}

func (g *BinanceGateway) FetchOrder(ctx context.Context, pair domain.Pair, orderID string) (*domain.OrderRecord, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid binance order id %q", orderID)
	}

	order, err := g.client.NewGetOrderService().
		Symbol(pair.Symbol()).
		OrderID(id).
		Do(ctx)
	if err != nil {
		if apiErr, ok := err.(*common.APIError); ok && apiErr.Code == binanceCodeNoSuchOrder {
			return nil, errors.Wrapf(ErrOrderNotFound, "order %s", orderID)
		}
		return nil, &TransportError{Op: "fetch order", Err: err}
	}

	price, err := decimal.NewFromString(order.Price)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse order price")
	}
	filled, err := decimal.NewFromString(order.ExecutedQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse executed quantity")
	}
	amount, err := decimal.NewFromString(order.OrigQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse original quantity")
	}

	return &domain.OrderRecord{
		ID:     orderID,
		Status: mapBinanceStatus(order.Status),
		Price:  price,
		Filled: filled,
		Amount: amount,
	}, nil
}

func mapBinanceStatus(s binance.OrderStatusType) domain.OrderStatus {
	switch s {
	case binance.OrderStatusTypeFilled:
		return domain.OrderStatusFilled
	case binance.OrderStatusTypePartiallyFilled:
		return domain.OrderStatusPartiallyFilled
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeRejected, binance.OrderStatusTypeExpired:
		return domain.OrderStatusCancelled
	default:
		return domain.OrderStatusOpen
	}
}

func (g *BinanceGateway) CancelOrder(ctx context.Context, pair domain.Pair, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid binance order id %q", orderID)
	}

	_, err = g.client.NewCancelOrderService().
		Symbol(pair.Symbol()).
		OrderID(id).
		Do(ctx)
	if err != nil {
		if apiErr, ok := err.(*common.APIError); ok {
			// already gone or already terminal: cancel is idempotent
			if apiErr.Code == binanceCodeUnknownOrder || apiErr.Code == binanceCodeNoSuchOrder {
				return nil
			}
		}
		return &TransportError{Op: "cancel order", Err: err}
	}
	return nil
}

func (g *BinanceGateway) MyTrades(ctx context.Context, pair domain.Pair, limit int) ([]domain.TradeRecord, error) {
	trades, err := g.client.NewListTradesService().
		Symbol(pair.Symbol()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, &TransportError{Op: "my trades", Err: err}
	}

	// binance returns oldest first; the contract is most recent first
	records := make([]domain.TradeRecord, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse trade price")
		}
		qty, err := decimal.NewFromString(t.Quantity)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse trade quantity")
		}
		records = append(records, domain.TradeRecord{
			OrderID: strconv.FormatInt(t.OrderID, 10),
			Price:   price,
			Amount:  qty,
		})
	}
	return records, nil
}

func (g *BinanceGateway) Instrument(ctx context.Context, pair domain.Pair) (domain.Instrument, error) {
	info, err := g.client.NewExchangeInfoService().Symbols(pair.Symbol()).Do(ctx)
	if err != nil {
		return domain.Instrument{}, &TransportError{Op: "instrument", Err: err}
	}
	for _, s := range info.Symbols {
		if s.Symbol != pair.Symbol() {
			continue
		}
		inst := domain.Instrument{PricePrecision: 2, QuantityPrecision: 4}
		if f := s.PriceFilter(); f != nil {
			inst.PricePrecision = stepPrecision(f.TickSize)
		}
		if f := s.LotSizeFilter(); f != nil {
			inst.QuantityPrecision = stepPrecision(f.StepSize)
		}
		return inst, nil
	}
	return domain.Instrument{}, errors.Errorf("symbol %s not found in exchange info", pair.Symbol())
}

// stepPrecision derives decimal places from a filter step such as
// "0.00100000" (-> 3).
func stepPrecision(step string) int32 {
	step = strings.TrimRight(step, "0")
	dot := strings.Index(step, ".")
	if dot < 0 {
		return 0
	}
	return int32(len(step) - dot - 1)
}
