package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ladder-trader-go/config"
	"ladder-trader-go/gateway"
	"ladder-trader-go/infrastructure/alert"
	"ladder-trader-go/infrastructure/logger"
	"ladder-trader-go/internal/ladder"
	"ladder-trader-go/internal/supervisor"
	"ladder-trader-go/market"
	"ladder-trader-go/metrics"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	restRate := flag.Float64("restRate", 5, "REST 限流：每秒令牌数")
	restBurst := flag.Int("restBurst", 10, "REST 限流：最大突发令牌数")
	watch := flag.Bool("watch", true, "监听配置文件变更并热更新参数")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	met := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Addr != "" {
		metrics.StartMetricsServer(cfg.Metrics.Addr)
	}

	throttle := time.Duration(cfg.Alert.ThrottleSeconds) * time.Second
	if throttle <= 0 {
		throttle = time.Minute
	}
	alerts := alert.NewManager([]alert.Channel{alert.NewZapChannel("log", zlog.Logger)}, throttle)
	if cfg.Alert.WebhookURL != "" {
		alerts.AddChannel(alert.NewWebhookChannel("webhook", cfg.Alert.WebhookURL))
	}

	rest := &gateway.BinanceRESTClient{
		BaseURL:    cfg.Gateway.BaseURL,
		APIKey:     cfg.Gateway.APIKey,
		Secret:     cfg.Gateway.APISecret,
		HTTPClient: gateway.NewDefaultHTTPClient(),
		Limiter:    restLimiter(cfg.Gateway, *restRate, *restBurst),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticks := market.NewTickerCache()
	sup := supervisor.New(zlog.Logger, ticks, alerts, cfg.TickInterval())

	// 每交易对状态跨热更新保留；重建的只是参数快照
	states := make(map[string]*ladder.SymbolState)
	startSymbols(ctx, cfg, rest, zlog.Logger, met, sup, states)

	streamLog := zlog.WithFields(map[string]interface{}{"component": "user_stream"})
	go runUserStream(ctx, cfg, ticks, sup, streamLog.Logger, alerts)

	if *watch {
		go runConfigWatcher(ctx, *cfgPath, func(next config.AppConfig) {
			zlog.Info("config reloaded, rebuilding symbol strategies")
			startSymbols(ctx, next, rest, zlog.Logger, met, sup, states)
		}, zlog.Logger)
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	go watchdogLoop(ctx)

	zlog.Info("ladder trader started",
		zap.String("env", cfg.Env), zap.Strings("symbols", sup.ActiveSymbols()))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	sup.Wait()
	zlog.Info("ladder trader stopped")
}

func restLimiter(gc config.GatewayConfig, rate float64, burst int) *gateway.TokenBucketLimiter {
	if gc.RequestsPerSec > 0 {
		rate = gc.RequestsPerSec
	}
	if gc.Burst > 0 {
		burst = gc.Burst
	}
	return gateway.NewTokenBucketLimiter(rate, burst)
}

// startSymbols 为配置里的每个交易对构建策略并交给 supervisor；已有
// 的交易对沿用原状态对象，热更新不丢在途追踪。
func startSymbols(ctx context.Context, cfg config.AppConfig, ex gateway.Exchange,
	zlog *zap.Logger, met *metrics.Collectors, sup *supervisor.Supervisor,
	states map[string]*ladder.SymbolState) {

	for sym, sc := range cfg.Symbols {
		symbol := strings.ToUpper(sym)
		p := sc.LadderParams(symbol)

		if p.Leverage > 1 {
			if err := ex.SetLeverage(symbol, int(p.Leverage)); err != nil {
				zlog.Warn("set leverage failed",
					zap.String("symbol", symbol), zap.Error(err))
			}
		}

		st, ok := states[symbol]
		if !ok {
			st = ladder.NewSymbolState(symbol)
			states[symbol] = st
		}
		sup.Add(ctx, ladder.New(p, st, ex, zlog, met))
	}
}

// runUserStream 维护 listenKey 与 WS 连接：固定间隔重连，listenKey
// 每 30 分钟保活一次。连接反复失败时告警但不退出，策略退回 REST 轮询。
func runUserStream(ctx context.Context, cfg config.AppConfig,
	ticks *market.TickerCache, sup *supervisor.Supervisor,
	zlog *zap.Logger, alerts *alert.Manager) {

	lk := &gateway.ListenKeyClient{
		BaseURL:    cfg.Gateway.BaseURL,
		APIKey:     cfg.Gateway.APIKey,
		HTTPClient: gateway.NewListenKeyHTTPClient(),
	}

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lk.KeepAlive(); err != nil {
					zlog.Warn("listenKey keepalive failed", zap.Error(err))
				}
			}
		}
	}()

	for ctx.Err() == nil {
		key, err := lk.Create()
		if err != nil {
			zlog.Warn("listenKey create failed, retrying", zap.Error(err))
			_ = alerts.SendWarning("user stream unavailable", map[string]interface{}{"error": err.Error()})
			sleepCtx(ctx, 5*time.Second)
			continue
		}

		stream := gateway.NewUserStream()
		if cfg.Gateway.WSEndpoint != "" {
			stream.BaseEndpoint = cfg.Gateway.WSEndpoint
		}
		stream.Log = zlog
		stream.Ticks = ticks
		stream.OnOrderUpdate = sup.OnOrderUpdate
		for sym := range cfg.Symbols {
			_ = stream.SubscribeBookTicker(strings.ToUpper(sym))
		}
		if err := stream.SubscribeUserData(key); err != nil {
			zlog.Error("subscribe user data failed", zap.Error(err))
			sleepCtx(ctx, 5*time.Second)
			continue
		}

		if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
			zlog.Warn("user stream disconnected, reconnecting", zap.Error(err))
		}
		sleepCtx(ctx, 5*time.Second)
	}
}

func runConfigWatcher(ctx context.Context, path string, onUpdate func(config.AppConfig), zlog *zap.Logger) {
	w, err := config.NewWatcher(path, config.DefaultWatchConfig())
	if err != nil {
		zlog.Warn("config watcher unavailable", zap.Error(err))
		return
	}
	if err := w.Start(ctx, onUpdate); err != nil && ctx.Err() == nil {
		zlog.Warn("config watcher stopped", zap.Error(err))
	}
}

// watchdogLoop systemd watchdog 心跳；未启用时探测返回 0 直接退出。
func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
