package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ladder-trader-go/market"
)

// BinanceFuturesWSEndpoint 默认推送端点。
const BinanceFuturesWSEndpoint = "wss://fstream.binance.com"

// UserStream 组合订阅 bookTicker 与用户数据流并连接真实 WS。
//
// 行情推送只写入 TickerCache（只读的顾问性缓存）；订单回报通过
// OnOrderUpdate 回调交给上层，由上层保证与轮询路径的互斥。
type UserStream struct {
	BaseEndpoint string
	Dialer       *websocket.Dialer
	Log          *zap.Logger

	tickerStreams []string
	listenKey     string

	Ticks         *market.TickerCache
	OnOrderUpdate func(OrderUpdate)
}

func NewUserStream() *UserStream {
	return &UserStream{
		BaseEndpoint: BinanceFuturesWSEndpoint,
		Dialer:       websocket.DefaultDialer,
		Log:          zap.NewNop(),
	}
}

// SubscribeBookTicker 订阅某交易对的最优买卖价推送。
func (s *UserStream) SubscribeBookTicker(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol required")
	}
	s.tickerStreams = append(s.tickerStreams, strings.ToLower(symbol)+"@bookTicker")
	return nil
}

// SubscribeUserData 订阅用户数据流（订单回报）。
func (s *UserStream) SubscribeUserData(listenKey string) error {
	if listenKey == "" {
		return fmt.Errorf("listenKey required")
	}
	s.listenKey = listenKey
	return nil
}

// Run 连接 combined stream 并循环读取，直到 ctx 取消或连接出错。
// 断线重连由调用方负责（带固定间隔重试即可）。
func (s *UserStream) Run(ctx context.Context) error {
	streams := make([]string, 0, len(s.tickerStreams)+1)
	streams = append(streams, s.tickerStreams...)
	if s.listenKey != "" {
		streams = append(streams, s.listenKey)
	}
	if len(streams) == 0 {
		return fmt.Errorf("no streams subscribed")
	}
	u := url.URL{
		Scheme: "wss",
		Host:   strings.TrimPrefix(s.BaseEndpoint, "wss://"),
		Path:   "/stream",
	}
	q := u.Query()
	q.Set("streams", strings.Join(streams, "/"))
	u.RawQuery = q.Encode()

	conn, _, err := s.Dialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.dispatch(message)
	}
}

func (s *UserStream) dispatch(raw []byte) {
	if upd, ok := ParseOrderUpdate(raw); ok {
		if s.OnOrderUpdate != nil {
			s.OnOrderUpdate(upd)
		}
		return
	}
	if tick, ok := ParseBookTicker(raw); ok {
		if s.Ticks != nil {
			s.Ticks.Update(tick.Symbol, tick.Price, tick.Ts)
		}
		return
	}
	s.Log.Debug("unhandled ws message", zap.ByteString("raw", raw))
}
