package ladder

import "ladder-trader-go/order"

// Level 阶梯中的一个档位。档位表是配置，运行期不可变；
// 档位当前挂着的订单是运行态，由 SymbolState 追踪。
type Level struct {
	Tag         byte    // 'A'..'H'，顺序即阶梯顺序
	Enabled     bool
	EntryOffset float64 // 相对锚定价（或上一档成交价）的入场偏移
	TPOffset    float64 // 止盈偏移，带符号
	TPOffsetSet bool    // false 时回退到方向默认止盈偏移
	SizeFactor  float64 // 数量倍数
	FixedQty    float64 // >0 时覆盖 Sizer 结果
}

// Levels holds the per-side ladder tables.
type Levels struct {
	Long  []Level
	Short []Level
}

func (l Levels) side(pos order.PositionSide) []Level {
	if pos == order.Long {
		return l.Long
	}
	return l.Short
}

// LevelTags 返回某方向所有档位字母，供 tag 解析使用。
func (l Levels) LevelTags() string {
	seen := map[byte]bool{}
	out := make([]byte, 0, len(l.Long)+len(l.Short))
	for _, lvl := range append(append([]Level{}, l.Long...), l.Short...) {
		if !seen[lvl.Tag] {
			seen[lvl.Tag] = true
			out = append(out, lvl.Tag)
		}
	}
	return string(out)
}

// First 返回该方向第一个启用档位。
func (l Levels) First(pos order.PositionSide) (Level, bool) {
	for _, lvl := range l.side(pos) {
		if lvl.Enabled {
			return lvl, true
		}
	}
	return Level{}, false
}

// ByTag 按档位字母查找。
func (l Levels) ByTag(pos order.PositionSide, tag byte) (Level, bool) {
	for _, lvl := range l.side(pos) {
		if lvl.Tag == tag {
			return lvl, true
		}
	}
	return Level{}, false
}

// Next 返回 tag 之后下一个启用档位；阶梯走完返回 false，这不是错误。
func (l Levels) Next(pos order.PositionSide, tag byte) (Level, bool) {
	side := l.side(pos)
	for i, lvl := range side {
		if lvl.Tag != tag {
			continue
		}
		for _, next := range side[i+1:] {
			if next.Enabled {
				return next, true
			}
		}
		return Level{}, false
	}
	return Level{}, false
}

// DefaultLevels 默认八档阶梯：数量逐档倍增，入场偏移逐档放大。
// A 档止盈偏移显式配置为 0（保本出场），两侧相同。
func DefaultLevels() Levels {
	build := func(sign float64) []Level {
		tags := []byte("ABCDEFGH")
		factors := []float64{1, 1, 2, 4, 8, 16, 32, 64}
		out := make([]Level, 0, len(tags))
		for i, tag := range tags {
			out = append(out, Level{
				Tag:         tag,
				Enabled:     true,
				EntryOffset: sign * 0.01 * float64(i+1),
				TPOffset:    0,
				TPOffsetSet: i == 0, // A 档显式 0，其余回退方向默认
				SizeFactor:  factors[i],
			})
		}
		return out
	}
	return Levels{
		Long:  build(-1),
		Short: build(+1),
	}
}
