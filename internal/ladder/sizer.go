package ladder

import "ladder-trader-go/order"

// Quantity 计算入场数量，纯函数：
//
//	raw = balance × fundingRatio × leverage / price
//
// 结果抬升到最小下单量与最小名义对应数量，再向上取整到数量步长。
// 只向上取整，保证取整后最小名义约束仍然成立。price ≤ 0 返回 0。
func Quantity(price, balance, leverage, fundingRatio, minQty, step, minNotional float64) float64 {
	if price <= 0 {
		return 0
	}
	if balance < 0 {
		balance = 0
	}
	if leverage <= 0 {
		leverage = 1
	}
	qty := balance * fundingRatio * leverage / price
	if qty < minQty {
		qty = minQty
	}
	if minNotional > 0 {
		if floor := minNotional / price; qty < floor {
			qty = floor
		}
	}
	return order.RoundUpToStep(qty, step)
}
