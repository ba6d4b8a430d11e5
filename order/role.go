package order

import (
	"fmt"
	"strings"
)

// RoleKind 枚举订单在阶梯策略中的角色。
type RoleKind int

const (
	RoleEntry RoleKind = iota
	RoleAutoTakeProfit
	RoleAutoStopLoss
	RoleManualStopLoss
)

// Role is the structured identity attached to every order at creation time.
// It round-trips through the client order id so the exchange's own order
// records stay classifiable by the same string convention.
type Role struct {
	Kind  RoleKind
	Level byte // ladder level tag, entries and manual stops only
	Pos   PositionSide
}

func sideDigit(p PositionSide) byte {
	if p == Long {
		return '1'
	}
	return '2'
}

func digitSide(b byte) (PositionSide, bool) {
	switch b {
	case '1':
		return Long, true
	case '2':
		return Short, true
	default:
		return "", false
	}
}

// ClientID 把角色编码进客户端订单号；nonce 保证同档位重复下单时 id 唯一。
func (r Role) ClientID(nonce int64) string {
	switch r.Kind {
	case RoleEntry:
		return fmt.Sprintf("%c%c_%d", r.Level, sideDigit(r.Pos), nonce)
	case RoleAutoTakeProfit:
		return fmt.Sprintf("AUTO_TP%c_%d", sideDigit(r.Pos), nonce)
	case RoleAutoStopLoss:
		return fmt.Sprintf("AUTO_SL%c_%d", sideDigit(r.Pos), nonce)
	case RoleManualStopLoss:
		return fmt.Sprintf("MANUAL_%c%c_SL_%d", r.Level, sideDigit(r.Pos), nonce)
	default:
		return fmt.Sprintf("X_%d", nonce)
	}
}

// Composite builds the classification string from the venue-reported tag and
// the client order id. Either source alone is sufficient.
func Composite(tag, clientID string) string {
	return strings.ToUpper(tag) + strings.ToUpper(clientID)
}

// IsAutomated reports whether the composite carries any of our managed-order
// markers (auto protection or manual stop), as opposed to a bare entry code.
func IsAutomated(s string) bool {
	return strings.Contains(s, "AUTO") || strings.Contains(s, "MANUAL")
}

// MatchManualStop 识别自管理止损单（例如 MANUAL_A1_SL）并返回持仓方向。
func MatchManualStop(s string) (PositionSide, bool) {
	idx := strings.Index(s, "MANUAL_")
	if idx < 0 || !strings.Contains(s, "SL") {
		return "", false
	}
	rest := s[idx+len("MANUAL_"):]
	if len(rest) >= 2 {
		if pos, ok := digitSide(rest[1]); ok {
			return pos, true
		}
	}
	return "", false
}

// MatchAutoTakeProfit 识别自动止盈单（AUTO + TP + 方向数字）。
func MatchAutoTakeProfit(s string) (PositionSide, bool) {
	if !strings.Contains(s, "AUTO") {
		return "", false
	}
	return matchDigitMarker(s, "TP")
}

// MatchAutoStopLoss 识别自动止损单（AUTO + SL + 方向数字）。
func MatchAutoStopLoss(s string) (PositionSide, bool) {
	if !strings.Contains(s, "AUTO") {
		return "", false
	}
	return matchDigitMarker(s, "SL")
}

// IsAutoProtective catches automated stop/take-profit tags whose side digit
// is missing or malformed; callers fall back to a full reset for these.
func IsAutoProtective(s string) bool {
	if !strings.Contains(s, "AUTO") {
		return false
	}
	return strings.Contains(s, "SL") || strings.Contains(s, "TP") ||
		strings.Contains(s, "STOP") || strings.Contains(s, "PROFIT")
}

func matchDigitMarker(s, marker string) (PositionSide, bool) {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return "", false
	}
	rest := s[idx+len(marker):]
	if len(rest) >= 1 {
		if pos, ok := digitSide(rest[0]); ok {
			return pos, true
		}
	}
	return "", false
}

// MatchEntry scans for a ladder level code: one letter from the configured
// level set followed by a side digit. Callers must exclude automated tags
// first; MANUAL_A1_SL would otherwise match its embedded "A1".
func MatchEntry(s, levelSet string) (byte, PositionSide, bool) {
	for i := 0; i+1 < len(s); i++ {
		if !strings.ContainsRune(levelSet, rune(s[i])) {
			continue
		}
		if pos, ok := digitSide(s[i+1]); ok {
			return s[i], pos, true
		}
	}
	return 0, "", false
}
