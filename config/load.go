package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ladder-trader-go/infrastructure/logger"
	"ladder-trader-go/internal/ladder"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string                  `yaml:"env"`
	Log     logger.Config           `yaml:"log"`
	Gateway GatewayConfig           `yaml:"gateway"`
	Metrics MetricsConfig           `yaml:"metrics"`
	Alert   AlertConfig             `yaml:"alert"`
	Engine  EngineConfig            `yaml:"engine"`
	Symbols map[string]SymbolConfig `yaml:"symbols"`
}

type GatewayConfig struct {
	APIKey     string `yaml:"apiKey"`
	APISecret  string `yaml:"apiSecret"`
	BaseURL    string `yaml:"baseURL"`
	WSEndpoint string `yaml:"wsEndpoint"`
	// REST 限速；零值表示用网关默认
	RequestsPerSec float64 `yaml:"requestsPerSec"`
	Burst          int     `yaml:"burst"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 空字符串关闭指标服务
}

type AlertConfig struct {
	ThrottleSeconds int    `yaml:"throttleSeconds"`
	WebhookURL      string `yaml:"webhookURL"` // 空字符串只走日志通道
}

type EngineConfig struct {
	TickIntervalMs int `yaml:"tickIntervalMs"`
}

// SymbolConfig 单交易对的阶梯参数与精度限制。
type SymbolConfig struct {
	TradeMode     string `yaml:"tradeMode"` // long_only / short_only
	QuoteCurrency string `yaml:"quoteCurrency"`

	FirstEntryOffset float64 `yaml:"firstEntryOffset"`
	StepPct          float64 `yaml:"stepPct"`
	CooldownSec      int     `yaml:"cooldownSec"`

	PauseMinutes int     `yaml:"pauseMinutes"`
	VolThreshold float64 `yaml:"volThreshold"`
	VolInterval  string  `yaml:"volInterval"`
	VolCandles   int     `yaml:"volCandles"`

	InternalStops       bool    `yaml:"internalStops"`
	StopLossOffsetLong  float64 `yaml:"stopLossOffsetLong"`
	StopLossOffsetShort float64 `yaml:"stopLossOffsetShort"`
	StopSlippage        float64 `yaml:"stopSlippage"`

	TPOffsetLong  float64 `yaml:"tpOffsetLong"`
	TPOffsetShort float64 `yaml:"tpOffsetShort"`

	Leverage     float64 `yaml:"leverage"`
	FundingRatio float64 `yaml:"fundingRatio"`
	MinQty       float64 `yaml:"minQty"`
	StepSize     float64 `yaml:"stepSize"`
	MinNotional  float64 `yaml:"minNotional"`

	MaxCreateAttempts int `yaml:"maxCreateAttempts"`

	LevelsLong  []LevelConfig `yaml:"levelsLong"`
	LevelsShort []LevelConfig `yaml:"levelsShort"`
}

// LevelConfig 单个阶梯档位。tpOffset 缺省时回退到方向默认偏移。
type LevelConfig struct {
	Tag         string   `yaml:"tag"`
	Enabled     *bool    `yaml:"enabled"`
	EntryOffset float64  `yaml:"entryOffset"`
	TPOffset    *float64 `yaml:"tpOffset"`
	SizeFactor  float64  `yaml:"sizeFactor"`
	FixedQty    float64  `yaml:"fixedQty"`
}

// Load reads YAML config from path and applies validation.
func Load(path string) (AppConfig, error) {
	cfg, err := loadRaw(path)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env
// vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := loadRaw(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("LT_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("LT_GATEWAY_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	return cfg, Validate(cfg)
}

func loadRaw(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// TickInterval 返回引擎 tick 周期（缺省 1s）。
func (c AppConfig) TickInterval() time.Duration {
	if c.Engine.TickIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(c.Engine.TickIntervalMs) * time.Millisecond
}

// LadderParams 把交易对配置转换为策略参数；缺省值由 Normalize 填充。
func (sc SymbolConfig) LadderParams(symbol string) ladder.Params {
	p := ladder.Params{
		Symbol:              symbol,
		QuoteCurrency:       sc.QuoteCurrency,
		TradeMode:           ladder.TradeMode(sc.TradeMode),
		FirstEntryOffset:    sc.FirstEntryOffset,
		StepPct:             sc.StepPct,
		Cooldown:            time.Duration(sc.CooldownSec) * time.Second,
		PauseDuration:       time.Duration(sc.PauseMinutes) * time.Minute,
		VolThreshold:        sc.VolThreshold,
		VolInterval:         sc.VolInterval,
		VolCandles:          sc.VolCandles,
		InternalStops:       sc.InternalStops,
		StopLossOffsetLong:  sc.StopLossOffsetLong,
		StopLossOffsetShort: sc.StopLossOffsetShort,
		StopSlippage:        sc.StopSlippage,
		TPOffsetLong:        sc.TPOffsetLong,
		TPOffsetShort:       sc.TPOffsetShort,
		Leverage:            sc.Leverage,
		FundingRatio:        sc.FundingRatio,
		MinQty:              sc.MinQty,
		QtyStep:             sc.StepSize,
		MinNotional:         sc.MinNotional,
		MaxCreateAttempts:   sc.MaxCreateAttempts,
	}
	p.Levels = ladder.Levels{
		Long:  levelList(sc.LevelsLong),
		Short: levelList(sc.LevelsShort),
	}
	return p.Normalize()
}

func levelList(in []LevelConfig) []ladder.Level {
	out := make([]ladder.Level, 0, len(in))
	for _, lc := range in {
		lvl := ladder.Level{
			EntryOffset: lc.EntryOffset,
			SizeFactor:  lc.SizeFactor,
			FixedQty:    lc.FixedQty,
			Enabled:     true,
		}
		if lc.Tag != "" {
			lvl.Tag = lc.Tag[0]
		}
		if lc.Enabled != nil {
			lvl.Enabled = *lc.Enabled
		}
		if lc.TPOffset != nil {
			lvl.TPOffset = *lc.TPOffset
			lvl.TPOffsetSet = true
		}
		if lvl.SizeFactor <= 0 {
			lvl.SizeFactor = 1
		}
		out = append(out, lvl)
	}
	return out
}
