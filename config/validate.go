package config

import (
	"errors"
	"fmt"
)

// Validate ensures required fields are present and offsets follow their
// sign conventions before anything touches the exchange.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		return errors.New("gateway.apiKey/apiSecret is required (or env overrides)")
	}
	if len(cfg.Symbols) == 0 {
		return errors.New("symbols config is required")
	}
	for sym, sc := range cfg.Symbols {
		if err := validateSymbol(sc); err != nil {
			return fmt.Errorf("symbol %s: %w", sym, err)
		}
	}
	return nil
}

func validateSymbol(sc SymbolConfig) error {
	switch sc.TradeMode {
	case "", "long_only", "short_only":
	case "dynamic_reversal":
		// 曾经设想的自动反向模式；方向切换语义没定义清楚，明确拒绝
		return errors.New("tradeMode dynamic_reversal is not supported, use long_only or short_only")
	default:
		return fmt.Errorf("unknown tradeMode %q", sc.TradeMode)
	}

	if sc.FirstEntryOffset < 0 {
		return errors.New("firstEntryOffset must be >= 0")
	}
	if sc.StepPct < 0 || sc.StepPct >= 1 {
		return errors.New("stepPct must be in [0, 1)")
	}
	if sc.CooldownSec < 0 || sc.PauseMinutes < 0 {
		return errors.New("cooldownSec/pauseMinutes must be >= 0")
	}
	if sc.VolThreshold < 0 {
		return errors.New("volThreshold must be >= 0")
	}
	if sc.InternalStops {
		if sc.StopLossOffsetLong >= 0 {
			return errors.New("stopLossOffsetLong must be negative (trigger below anchor)")
		}
		if sc.StopLossOffsetShort <= 0 {
			return errors.New("stopLossOffsetShort must be positive (trigger above anchor)")
		}
	}
	if sc.StopSlippage < 0 || sc.StopSlippage >= 1 {
		return errors.New("stopSlippage must be in [0, 1)")
	}
	if sc.TPOffsetLong < 0 {
		return errors.New("tpOffsetLong must be >= 0")
	}
	if sc.TPOffsetShort > 0 {
		return errors.New("tpOffsetShort must be <= 0")
	}
	if sc.Leverage < 0 || sc.FundingRatio < 0 || sc.FundingRatio > 1 {
		return errors.New("leverage must be >= 0 and fundingRatio in [0, 1]")
	}
	if sc.MinQty < 0 || sc.StepSize < 0 || sc.MinNotional < 0 {
		return errors.New("minQty/stepSize/minNotional must be >= 0")
	}
	if err := validateLevels(sc.LevelsLong); err != nil {
		return fmt.Errorf("levelsLong: %w", err)
	}
	if err := validateLevels(sc.LevelsShort); err != nil {
		return fmt.Errorf("levelsShort: %w", err)
	}
	return nil
}

func validateLevels(levels []LevelConfig) error {
	seen := map[string]bool{}
	for i, lc := range levels {
		if len(lc.Tag) != 1 || lc.Tag < "A" || lc.Tag > "Z" {
			return fmt.Errorf("level %d: tag must be a single letter A-Z, got %q", i, lc.Tag)
		}
		if seen[lc.Tag] {
			return fmt.Errorf("duplicate level tag %q", lc.Tag)
		}
		seen[lc.Tag] = true
		if lc.SizeFactor < 0 || lc.FixedQty < 0 {
			return fmt.Errorf("level %q: sizeFactor/fixedQty must be >= 0", lc.Tag)
		}
	}
	return nil
}
