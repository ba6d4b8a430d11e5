package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"ladder-trader-go/gateway"
	"ladder-trader-go/market"
)

// 行情/回报联调探针：连上 WS 把收到的 tick 与订单回报打到日志，
// 不下任何单。排查推送断流时用。

func main() {
	symbols := flag.String("symbols", "ETHUSDT", "逗号分隔的交易对列表")
	baseURL := flag.String("baseURL", "https://fapi.binance.com", "REST 端点（listenKey 用）")
	wsEndpoint := flag.String("ws", gateway.BinanceFuturesWSEndpoint, "WS 端点")
	userData := flag.Bool("userData", false, "同时订阅用户数据流（需要 API key）")
	flag.Parse()

	zlog, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	stream := gateway.NewUserStream()
	stream.BaseEndpoint = *wsEndpoint
	stream.Log = zlog
	stream.Ticks = market.NewTickerCache()
	stream.OnOrderUpdate = func(upd gateway.OrderUpdate) {
		zlog.Info("order update",
			zap.String("symbol", upd.Symbol),
			zap.String("client_id", upd.ClientID),
			zap.String("status", string(upd.Status)),
			zap.Float64("avg_price", upd.AvgPrice),
			zap.Float64("executed", upd.ExecutedQty))
	}

	for _, sym := range strings.Split(*symbols, ",") {
		if err := stream.SubscribeBookTicker(strings.ToUpper(strings.TrimSpace(sym))); err != nil {
			log.Fatalf("订阅失败: %v", err)
		}
	}

	if *userData {
		apiKey := os.Getenv("LT_GATEWAY_API_KEY")
		if apiKey == "" {
			log.Fatal("userData 模式需要 LT_GATEWAY_API_KEY")
		}
		lk := &gateway.ListenKeyClient{
			BaseURL:    *baseURL,
			APIKey:     apiKey,
			HTTPClient: gateway.NewListenKeyHTTPClient(),
		}
		key, err := lk.Create()
		if err != nil {
			log.Fatalf("listenKey 创建失败: %v", err)
		}
		if err := stream.SubscribeUserData(key); err != nil {
			log.Fatalf("订阅用户数据流失败: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
		zlog.Warn("stream closed", zap.Error(err))
	}
}
