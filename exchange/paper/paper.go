// Package paper implements an in-memory exchange for tests and paper
// trading. Market orders fill at the last set price; stop exits rest on a
// book and trigger when SetPrice crosses them.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gabrielgyns/trading-bot/exchange"
	"github.com/gabrielgyns/trading-bot/internal/id"
	"github.com/gabrielgyns/trading-bot/market"
)

type Venue struct {
	mu       sync.Mutex
	balances map[string]float64
	orders   map[string]*exchange.Order
	last     map[market.Symbol]float64
	candles  map[string][]market.Candle

	tickSize float64
	stepSize float64
}

// New returns a venue with the given starting balances (asset -> free amount).
func New(balances map[string]float64) *Venue {
	v := &Venue{
		balances: make(map[string]float64, len(balances)),
		orders:   make(map[string]*exchange.Order),
		last:     make(map[market.Symbol]float64),
		candles:  make(map[string][]market.Candle),
		tickSize: 0.0001,
		stepSize: 0.1,
	}
	for asset, free := range balances {
		v.balances[asset] = free
	}
	return v
}

// SetPrecision overrides the default tick and lot increments.
func (v *Venue) SetPrecision(tickSize, stepSize float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tickSize = tickSize
	v.stepSize = stepSize
}

// SetPrice updates the last trade price and triggers any resting stop exits
// the move crosses. Triggered exits fill at their limit price.
func (v *Venue) SetPrice(symbol market.Symbol, price float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.last[symbol] = price

	for _, o := range v.orders {
		if o.Symbol != symbol || o.Status != exchange.StatusNew {
			continue
		}
		if triggered(o, price) {
			v.fillLocked(o, o.Price)
		}
	}
}

// triggered reports whether price crosses the order's trigger. The condition
// depends on order type and closing direction:
//
//	take-profit sell (long exit above entry)  -> price >= trigger
//	stop-loss   sell (long exit below entry)  -> price <= trigger
//	take-profit buy  (short exit below entry) -> price <= trigger
//	stop-loss   buy  (short exit above entry) -> price >= trigger
func triggered(o *exchange.Order, price float64) bool {
	above := price >= o.StopPrice
	below := price <= o.StopPrice

	switch o.Type {
	case exchange.TakeProfitLimit:
		if o.Side == exchange.Sell {
			return above
		}
		return below
	case exchange.StopLossLimit:
		if o.Side == exchange.Sell {
			return below
		}
		return above
	default:
		return false
	}
}

// fillLocked settles an order at px and moves balances.
func (v *Venue) fillLocked(o *exchange.Order, px float64) {
	base := o.Symbol.Base()
	quote := o.Symbol.Quote()

	if o.Side == exchange.Buy {
		v.balances[quote] -= o.Size * px
		v.balances[base] += o.Size
	} else {
		v.balances[base] -= o.Size
		v.balances[quote] += o.Size * px
	}

	o.Status = exchange.StatusFilled
	o.FillPrice = px
}

// SeedCandles installs the candle history returned by GetCandles for the
// given symbol and timeframe.
func (v *Venue) SeedCandles(symbol market.Symbol, timeframe string, candles []market.Candle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.candles[candleKey(symbol, timeframe)] = candles
}

func candleKey(symbol market.Symbol, timeframe string) string {
	return string(symbol) + "@" + timeframe
}

func (v *Venue) GetBalance(ctx context.Context, asset string) (exchange.Balance, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return exchange.Balance{Asset: asset, Free: v.balances[asset]}, nil
}

func (v *Venue) PlaceMarketOrder(ctx context.Context, symbol market.Symbol, side exchange.Side, size float64) (exchange.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	px, ok := v.last[symbol]
	if !ok {
		return exchange.Order{}, exchange.ErrNoPrice
	}

	if side == exchange.Buy {
		if v.balances[symbol.Quote()] < size*px {
			return exchange.Order{}, fmt.Errorf("paper: insufficient %s balance", symbol.Quote())
		}
	} else {
		if v.balances[symbol.Base()] < size {
			return exchange.Order{}, fmt.Errorf("paper: insufficient %s balance", symbol.Base())
		}
	}

	o := &exchange.Order{
		ID:     id.New(),
		Symbol: symbol,
		Side:   side,
		Type:   exchange.Market,
		Size:   size,
		Status: exchange.StatusNew,
		Time:   time.Now(),
	}
	v.fillLocked(o, px)
	v.orders[o.ID] = o
	return *o, nil
}

func (v *Venue) PlaceStopOrder(ctx context.Context, req exchange.StopOrderRequest) (exchange.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	o := &exchange.Order{
		ID:        id.New(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Size:      req.Size,
		Price:     req.LimitPrice,
		StopPrice: req.TriggerPrice,
		Status:    exchange.StatusNew,
		Time:      time.Now(),
	}
	v.orders[o.ID] = o
	return *o, nil
}

func (v *Venue) CancelOrder(ctx context.Context, symbol market.Symbol, orderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.orders[orderID]
	if !ok || o.Symbol != symbol {
		return exchange.ErrOrderNotFound
	}
	if o.Status == exchange.StatusNew {
		o.Status = exchange.StatusCanceled
	}
	return nil
}

func (v *Venue) CancelAllOrders(ctx context.Context, symbol market.Symbol) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, o := range v.orders {
		if o.Symbol == symbol && o.Status == exchange.StatusNew {
			o.Status = exchange.StatusCanceled
		}
	}
	return nil
}

func (v *Venue) ListOpenOrders(ctx context.Context, symbol market.Symbol) ([]exchange.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []exchange.Order
	for _, o := range v.orders {
		if o.Symbol == symbol && o.Status == exchange.StatusNew {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (v *Venue) GetOrder(ctx context.Context, symbol market.Symbol, orderID string) (exchange.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.orders[orderID]
	if !ok || o.Symbol != symbol {
		return exchange.Order{}, exchange.ErrOrderNotFound
	}
	return *o, nil
}

func (v *Venue) GetCandles(ctx context.Context, symbol market.Symbol, timeframe string, limit int) ([]market.Candle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	candles := v.candles[candleKey(symbol, timeframe)]
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]market.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (v *Venue) RoundPrice(symbol market.Symbol, price float64) float64 {
	return exchange.SnapDown(price, v.tickSize)
}

func (v *Venue) RoundSize(symbol market.Symbol, size float64) float64 {
	return exchange.SnapDown(size, v.stepSize)
}
