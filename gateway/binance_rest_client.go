package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ladder-trader-go/market"
	"ladder-trader-go/order"
)

// BinanceRESTClient 一个可签名的简化客户端；默认不发起真实网络调用，
// HTTPClient 可注入 httptest。
type BinanceRESTClient struct {
	BaseURL    string
	APIKey     string
	Secret     string
	HTTPClient *http.Client
	Limiter    RateLimiter
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e apiError) Error() string {
	return fmt.Sprintf("binance error %d: %s", e.Code, e.Msg)
}

// mapAPIError 把交易所参数拒绝映射到包级错误，供重试层分类。
func mapAPIError(e apiError) error {
	msg := strings.ToLower(e.Msg)
	if strings.Contains(msg, "reduceonly") || strings.Contains(msg, "reduce only") || e.Code == -2022 {
		return fmt.Errorf("%w: %v", order.ErrReduceOnlyRejected, e)
	}
	return e
}

func (c *BinanceRESTClient) do(method, path string, params map[string]string, signed bool, out interface{}) error {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	endpoint := c.BaseURL + path
	if params == nil {
		params = map[string]string{}
	}
	if signed {
		query, sig := SignParams(params, c.Secret)
		endpoint += "?" + query + "&signature=" + url.QueryEscape(sig)
	} else if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		endpoint += "?" + values.Encode()
	}
	req, err := http.NewRequest(method, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Msg != "" {
			return mapAPIError(ae)
		}
		return fmt.Errorf("%s %s status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

type ticker24hr struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	OpenPrice          string `json:"openPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
}

// GetTicker 调用 /fapi/v1/ticker/24hr。
func (c *BinanceRESTClient) GetTicker(symbol string) (*Ticker, error) {
	var t ticker24hr
	if err := c.do(http.MethodGet, "/fapi/v1/ticker/24hr", map[string]string{"symbol": symbol}, false, &t); err != nil {
		return nil, fmt.Errorf("get ticker: %w", err)
	}
	last := parseFloat(t.LastPrice)
	if last <= 0 {
		return nil, fmt.Errorf("get ticker: non-positive lastPrice %q", t.LastPrice)
	}
	return &Ticker{
		Symbol:             t.Symbol,
		LastPrice:          last,
		OpenPrice:          parseFloat(t.OpenPrice),
		PriceChangePercent: parseFloat(t.PriceChangePercent),
	}, nil
}

type positionRisk struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	PositionSide     string `json:"positionSide"`
	LiquidationPrice string `json:"liquidationPrice"`
}

// GetPositions 调用 /fapi/v2/positionRisk；失败返回 nil, err，
// 调用方须与空仓区分开。
func (c *BinanceRESTClient) GetPositions(symbol string) ([]Position, error) {
	var raw []positionRisk
	if err := c.do(http.MethodGet, "/fapi/v2/positionRisk", map[string]string{"symbol": symbol}, true, &raw); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	out := make([]Position, 0, len(raw))
	for _, p := range raw {
		out = append(out, Position{
			Symbol:           p.Symbol,
			PositionSide:     order.PositionSide(p.PositionSide),
			PositionAmt:      parseFloat(p.PositionAmt),
			LiquidationPrice: parseFloat(p.LiquidationPrice),
		})
	}
	return out, nil
}

type openOrderResp struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	PositionSide  string `json:"positionSide"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
	ReduceOnly    bool   `json:"reduceOnly"`
}

func (o openOrderResp) toOrder() order.Order {
	return order.Order{
		ID:           strconv.FormatInt(o.OrderID, 10),
		ClientID:     o.ClientOrderID,
		Symbol:       o.Symbol,
		Side:         order.Side(o.Side),
		PositionSide: order.PositionSide(o.PositionSide),
		Type:         order.Type(o.Type),
		Status:       order.Status(o.Status),
		Price:        parseFloat(o.Price),
		Quantity:     parseFloat(o.OrigQty),
		ExecutedQty:  parseFloat(o.ExecutedQty),
		AvgPrice:     parseFloat(o.AvgPrice),
		ReduceOnly:   o.ReduceOnly,
	}
}

// GetOpenOrders 调用 /fapi/v1/openOrders。
func (c *BinanceRESTClient) GetOpenOrders(symbol string) ([]order.Order, error) {
	var raw []openOrderResp
	if err := c.do(http.MethodGet, "/fapi/v1/openOrders", map[string]string{"symbol": symbol}, true, &raw); err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	out := make([]order.Order, 0, len(raw))
	for _, o := range raw {
		out = append(out, o.toOrder())
	}
	return out, nil
}

// GetKlines 调用 /fapi/v1/klines；binance 返回数组嵌套数组。
func (c *BinanceRESTClient) GetKlines(symbol, interval string, limit int) ([]market.Kline, error) {
	params := map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}
	// 行格式混合了数字与字符串：[openTime, "open", "high", "low", "close", ...]
	var raw [][]interface{}
	if err := c.do(http.MethodGet, "/fapi/v1/klines", params, false, &raw); err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}
	out := make([]market.Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 5 {
			continue
		}
		out = append(out, market.Kline{
			Open:  cellFloat(row[1]),
			High:  cellFloat(row[2]),
			Low:   cellFloat(row[3]),
			Close: cellFloat(row[4]),
			Ts:    time.UnixMilli(int64(cellFloat(row[0]))),
		})
	}
	return out, nil
}

type balanceResp struct {
	Asset            string `json:"asset"`
	AvailableBalance string `json:"availableBalance"`
}

// GetBalance 返回指定币种的可用余额。
func (c *BinanceRESTClient) GetBalance(currency string) (float64, error) {
	var raw []balanceResp
	if err := c.do(http.MethodGet, "/fapi/v2/balance", nil, true, &raw); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	for _, b := range raw {
		if strings.EqualFold(b.Asset, currency) {
			return parseFloat(b.AvailableBalance), nil
		}
	}
	return 0, fmt.Errorf("get balance: asset %s not found", currency)
}

type placeResp struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
}

func (c *BinanceRESTClient) placeParams(req order.Request) map[string]string {
	params := map[string]string{
		"symbol":       req.Symbol,
		"side":         string(req.Side),
		"positionSide": string(req.PositionSide),
		"quantity":     formatFloat(req.Quantity),
	}
	if req.ClientID != "" {
		params["newClientOrderId"] = req.ClientID
	}
	if req.ReduceOnly {
		params["reduceOnly"] = "true"
	}
	return params
}

// CreateOrder 统一下单端点：一律作为限价单提交。条件单走该路径时退化为
// 目标价位的限价单。
func (c *BinanceRESTClient) CreateOrder(req order.Request) (*order.Order, error) {
	params := c.placeParams(req)
	params["type"] = "LIMIT"
	params["timeInForce"] = "GTC"
	params["price"] = formatFloat(req.Price)
	var pr placeResp
	if err := c.do(http.MethodPost, "/fapi/v1/order", params, true, &pr); err != nil {
		return nil, err
	}
	return c.placed(req, pr), nil
}

// CreateConditionalOrder 条件单端点：带触发价的 STOP / TAKE_PROFIT 类型。
func (c *BinanceRESTClient) CreateConditionalOrder(req order.Request) (*order.Order, error) {
	if !req.Type.IsConditional() {
		return nil, fmt.Errorf("order type %s is not conditional", req.Type)
	}
	params := c.placeParams(req)
	params["type"] = string(req.Type)
	params["price"] = formatFloat(req.Price)
	trigger := req.TriggerPrice
	if trigger <= 0 {
		trigger = req.Price
	}
	params["stopPrice"] = formatFloat(trigger)
	var pr placeResp
	if err := c.do(http.MethodPost, "/fapi/v1/order", params, true, &pr); err != nil {
		return nil, err
	}
	return c.placed(req, pr), nil
}

func (c *BinanceRESTClient) placed(req order.Request, pr placeResp) *order.Order {
	status := order.StatusNew
	if pr.Status != "" {
		status = order.Status(pr.Status)
	}
	return &order.Order{
		ID:           strconv.FormatInt(pr.OrderID, 10),
		ClientID:     pr.ClientOrderID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		PositionSide: req.PositionSide,
		Type:         req.Type,
		Price:        req.Price,
		Quantity:     req.Quantity,
		ReduceOnly:   req.ReduceOnly,
		Status:       status,
	}
}

// CancelOrder 调用 DELETE /fapi/v1/order。
func (c *BinanceRESTClient) CancelOrder(id, symbol string) error {
	params := map[string]string{"symbol": symbol, "orderId": id}
	if err := c.do(http.MethodDelete, "/fapi/v1/order", params, true, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", id, err)
	}
	return nil
}

// CancelAllOrders 调用 DELETE /fapi/v1/allOpenOrders。
func (c *BinanceRESTClient) CancelAllOrders(symbol string) error {
	if err := c.do(http.MethodDelete, "/fapi/v1/allOpenOrders", map[string]string{"symbol": symbol}, true, nil); err != nil {
		return fmt.Errorf("cancel all orders: %w", err)
	}
	return nil
}

// SetLeverage 调用 POST /fapi/v1/leverage。
func (c *BinanceRESTClient) SetLeverage(symbol string, leverage int) error {
	params := map[string]string{"symbol": symbol, "leverage": strconv.Itoa(leverage)}
	if err := c.do(http.MethodPost, "/fapi/v1/leverage", params, true, nil); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	return nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func cellFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		return parseFloat(x)
	case json.Number:
		f, _ := x.Float64()
		return f
	default:
		return 0
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ Exchange = (*BinanceRESTClient)(nil)
