// Package binance implements the exchange surface against the Binance spot
// REST API. Requests that touch the account are HMAC-SHA256 signed; price and
// candle reads are public.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielgyns/trading-bot/exchange"
	"github.com/gabrielgyns/trading-bot/market"
)

const (
	BaseURL        = "https://api.binance.com"
	TestnetBaseURL = "https://testnet.binance.vision"
)

// Config for the client.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	BaseURL   string // overrides Testnet when set; used by tests
}

// Client is a signed REST client for Binance spot.
type Client struct {
	cfg  Config
	base string
	http *http.Client

	mu      sync.Mutex
	filters map[string]symbolFilters
}

// symbolFilters caches the precision rules from /api/v3/exchangeInfo.
type symbolFilters struct {
	tickSize float64 // PRICE_FILTER
	stepSize float64 // LOT_SIZE
}

func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = BaseURL
		if cfg.Testnet {
			base = TestnetBaseURL
		}
	}
	return &Client{
		cfg:     cfg,
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		filters: make(map[string]symbolFilters),
	}
}

// apiError is a Binance error payload: {"code":-2013,"msg":"..."}.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("binance: code %d: %s", e.Code, e.Msg)
}

const (
	codeOrderNotFound = -2013
	codeNoOpenOrders  = -2011 // "Unknown order sent" on cancel of nothing
)

func (c *Client) sign(q url.Values) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	io.WriteString(mac, q.Encode())
	return hex.EncodeToString(mac.Sum(nil))
}

// do performs one API call. Signed requests get timestamp and signature
// appended; the payload always travels in the query string.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, signed bool, result any) error {
	if q == nil {
		q = url.Values{}
	}
	if signed {
		q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		q.Set("recvWindow", "5000")
		q.Set("signature", c.sign(q))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("binance: %s %s: %w", method, path, err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("binance: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("binance: %s %s: read: %w", method, path, err)
	}

	if resp.StatusCode/100 != 2 {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Code != 0 {
			return &ae
		}
		return fmt.Errorf("binance: %s %s: HTTP %d: %s", method, path, resp.StatusCode, body)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("binance: %s %s: decode: %w", method, path, err)
		}
	}
	return nil
}

// Warmup loads the symbol's precision filters so RoundPrice and RoundSize
// work without network access. Call once at startup.
func (c *Client) Warmup(ctx context.Context, symbol market.Symbol) error {
	q := url.Values{}
	q.Set("symbol", symbol.Compact())

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				TickSize   string `json:"tickSize"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", q, false, &info); err != nil {
		return err
	}
	if len(info.Symbols) == 0 {
		return fmt.Errorf("binance: symbol %s not found", symbol)
	}

	var sf symbolFilters
	for _, f := range info.Symbols[0].Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			sf.tickSize, _ = strconv.ParseFloat(f.TickSize, 64)
		case "LOT_SIZE":
			sf.stepSize, _ = strconv.ParseFloat(f.StepSize, 64)
		}
	}

	c.mu.Lock()
	c.filters[symbol.Compact()] = sf
	c.mu.Unlock()
	return nil
}

func (c *Client) symbolFilters(symbol market.Symbol) symbolFilters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters[symbol.Compact()]
}

func (c *Client) RoundPrice(symbol market.Symbol, price float64) float64 {
	return exchange.SnapDown(price, c.symbolFilters(symbol).tickSize)
}

func (c *Client) RoundSize(symbol market.Symbol, size float64) float64 {
	return exchange.SnapDown(size, c.symbolFilters(symbol).stepSize)
}

func (c *Client) GetBalance(ctx context.Context, asset string) (exchange.Balance, error) {
	var acct struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v3/account", nil, true, &acct); err != nil {
		return exchange.Balance{}, err
	}

	for _, b := range acct.Balances {
		if strings.EqualFold(b.Asset, asset) {
			free, _ := strconv.ParseFloat(b.Free, 64)
			return exchange.Balance{Asset: asset, Free: free}, nil
		}
	}
	return exchange.Balance{Asset: asset}, nil
}

// orderResponse is the shared shape of order placement and query responses.
type orderResponse struct {
	OrderID          int64  `json:"orderId"`
	Symbol           string `json:"symbol"`
	Side             string `json:"side"`
	Type             string `json:"type"`
	Status           string `json:"status"`
	Price            string `json:"price"`
	StopPrice        string `json:"stopPrice"`
	OrigQty          string `json:"origQty"`
	ExecutedQty      string `json:"executedQty"`
	CummulativeQuote string `json:"cummulativeQuoteQty"`
	TransactTime     int64  `json:"transactTime"`
	Time             int64  `json:"time"`
}

func (r orderResponse) toOrder(symbol market.Symbol) exchange.Order {
	price, _ := strconv.ParseFloat(r.Price, 64)
	stop, _ := strconv.ParseFloat(r.StopPrice, 64)
	size, _ := strconv.ParseFloat(r.OrigQty, 64)

	o := exchange.Order{
		ID:        strconv.FormatInt(r.OrderID, 10),
		Symbol:    symbol,
		Side:      exchange.Side(r.Side),
		Type:      exchange.OrderType(r.Type),
		Size:      size,
		Price:     price,
		StopPrice: stop,
		Status:    mapStatus(r.Status),
	}

	if ms := r.TransactTime; ms > 0 {
		o.Time = time.UnixMilli(ms)
	} else if r.Time > 0 {
		o.Time = time.UnixMilli(r.Time)
	}

	// Average fill price from the cumulative quote amount.
	executed, _ := strconv.ParseFloat(r.ExecutedQty, 64)
	quote, _ := strconv.ParseFloat(r.CummulativeQuote, 64)
	if executed > 0 && quote > 0 {
		o.FillPrice = quote / executed
	}
	return o
}

func mapStatus(s string) exchange.OrderStatus {
	switch s {
	case "NEW", "PARTIALLY_FILLED":
		return exchange.StatusNew
	case "FILLED":
		return exchange.StatusFilled
	case "CANCELED", "EXPIRED", "PENDING_CANCEL":
		return exchange.StatusCanceled
	default:
		return exchange.StatusRejected
	}
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *Client) PlaceMarketOrder(ctx context.Context, symbol market.Symbol, side exchange.Side, size float64) (exchange.Order, error) {
	q := url.Values{}
	q.Set("symbol", symbol.Compact())
	q.Set("side", string(side))
	q.Set("type", "MARKET")
	q.Set("quantity", formatQty(size))
	q.Set("newClientOrderId", uuid.NewString())
	q.Set("newOrderRespType", "FULL")

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/api/v3/order", q, true, &resp); err != nil {
		return exchange.Order{}, err
	}
	return resp.toOrder(symbol), nil
}

func (c *Client) PlaceStopOrder(ctx context.Context, req exchange.StopOrderRequest) (exchange.Order, error) {
	q := url.Values{}
	q.Set("symbol", req.Symbol.Compact())
	q.Set("side", string(req.Side))
	q.Set("type", string(req.Type))
	q.Set("timeInForce", "GTC")
	q.Set("quantity", formatQty(req.Size))
	q.Set("price", formatQty(req.LimitPrice))
	q.Set("stopPrice", formatQty(req.TriggerPrice))
	q.Set("newClientOrderId", uuid.NewString())

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/api/v3/order", q, true, &resp); err != nil {
		return exchange.Order{}, err
	}
	return resp.toOrder(req.Symbol), nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol market.Symbol, orderID string) error {
	q := url.Values{}
	q.Set("symbol", symbol.Compact())
	q.Set("orderId", orderID)

	err := c.do(ctx, http.MethodDelete, "/api/v3/order", q, true, nil)
	var ae *apiError
	if asAPIError(err, &ae) && (ae.Code == codeOrderNotFound || ae.Code == codeNoOpenOrders) {
		return exchange.ErrOrderNotFound
	}
	return err
}

func (c *Client) CancelAllOrders(ctx context.Context, symbol market.Symbol) error {
	q := url.Values{}
	q.Set("symbol", symbol.Compact())

	err := c.do(ctx, http.MethodDelete, "/api/v3/openOrders", q, true, nil)
	var ae *apiError
	if asAPIError(err, &ae) && ae.Code == codeNoOpenOrders {
		// Nothing resting; cancel-all is idempotent.
		return nil
	}
	return err
}

func (c *Client) ListOpenOrders(ctx context.Context, symbol market.Symbol) ([]exchange.Order, error) {
	q := url.Values{}
	q.Set("symbol", symbol.Compact())

	var resp []orderResponse
	if err := c.do(ctx, http.MethodGet, "/api/v3/openOrders", q, true, &resp); err != nil {
		return nil, err
	}

	out := make([]exchange.Order, 0, len(resp))
	for _, r := range resp {
		out = append(out, r.toOrder(symbol))
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, symbol market.Symbol, orderID string) (exchange.Order, error) {
	q := url.Values{}
	q.Set("symbol", symbol.Compact())
	q.Set("orderId", orderID)

	var resp orderResponse
	err := c.do(ctx, http.MethodGet, "/api/v3/order", q, true, &resp)
	var ae *apiError
	if asAPIError(err, &ae) && ae.Code == codeOrderNotFound {
		return exchange.Order{}, exchange.ErrOrderNotFound
	}
	if err != nil {
		return exchange.Order{}, err
	}
	return resp.toOrder(symbol), nil
}

func (c *Client) GetCandles(ctx context.Context, symbol market.Symbol, timeframe string, limit int) ([]market.Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	q := url.Values{}
	q.Set("symbol", symbol.Compact())
	q.Set("interval", timeframe)
	q.Set("limit", strconv.Itoa(limit))

	// kline row: [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]any
	if err := c.do(ctx, http.MethodGet, "/api/v3/klines", q, false, &raw); err != nil {
		return nil, err
	}

	out := make([]market.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		openMs, ok := row[0].(float64)
		if !ok {
			continue
		}
		out = append(out, market.Candle{
			Time:   time.UnixMilli(int64(openMs)).UTC(),
			Open:   parseAny(row[1]),
			High:   parseAny(row[2]),
			Low:    parseAny(row[3]),
			Close:  parseAny(row[4]),
			Volume: parseAny(row[5]),
		})
	}
	return out, nil
}

func parseAny(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	default:
		return 0
	}
}

// asAPIError extracts an apiError from err, if that is what it is.
func asAPIError(err error, target **apiError) bool {
	if err == nil {
		return false
	}
	ae, ok := err.(*apiError)
	if ok {
		*target = ae
	}
	return ok
}
