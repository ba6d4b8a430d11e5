package order

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Request 一次下单请求；重试时不原地修改，派生新的变体。
type Request struct {
	Symbol       string
	Side         Side
	PositionSide PositionSide
	Type         Type
	Quantity     float64
	Price        float64
	TriggerPrice float64
	ReduceOnly   bool
	ClientID     string
	Role         Role
}

// WithoutReduceOnly 返回去掉 reduceOnly 标记的请求副本。
func (r Request) WithoutReduceOnly() Request {
	r.ReduceOnly = false
	return r
}

// Placer is the unified order endpoint.
type Placer interface {
	CreateOrder(req Request) (*Order, error)
}

// ConditionalPlacer is the dedicated conditional/algo endpoint. Venues that
// fold stop orders into the unified endpoint simply don't implement it.
type ConditionalPlacer interface {
	CreateConditionalOrder(req Request) (*Order, error)
}

// ErrReduceOnlyRejected 交易所拒绝 reduceOnly 参数时由网关映射到该错误。
var ErrReduceOnlyRejected = errors.New("reduce-only flag rejected")

// DefaultMaxAttempts 下单重试上限（不做退避，超限即放弃并上报）。
const DefaultMaxAttempts = 3

// Submitter drives the attempt -> classify failure -> transform -> retry
// loop for order creation, bounded by a fixed attempt count.
type Submitter struct {
	placer      Placer
	maxAttempts int
	log         *zap.Logger
}

func NewSubmitter(placer Placer, maxAttempts int, log *zap.Logger) *Submitter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{placer: placer, maxAttempts: maxAttempts, log: log}
}

// Submit 提交订单，失败时在上限内重试。
//
// reduceOnly 参数被拒时允许去掉该标记重试一次；止损单除外——止损一旦
// 失去 reduceOnly 可能变成反向开仓单，宁可失败也不脱掉。
func (s *Submitter) Submit(req Request) (*Order, error) {
	var lastErr error
	cur := req
	stripped := false
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ord, err := s.place(cur)
		if err == nil {
			return ord, nil
		}
		lastErr = err
		s.log.Warn("create order attempt failed",
			zap.String("symbol", cur.Symbol),
			zap.String("client_id", cur.ClientID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if errors.Is(err, ErrReduceOnlyRejected) && cur.ReduceOnly && !stripped {
			if cur.Role.Kind == RoleAutoStopLoss || cur.Role.Kind == RoleManualStopLoss {
				return nil, fmt.Errorf("stop-loss order %s: refusing to strip reduceOnly: %w", cur.ClientID, err)
			}
			cur = cur.WithoutReduceOnly()
			stripped = true
		}
	}
	return nil, fmt.Errorf("create order %s failed after %d attempts: %w", req.ClientID, s.maxAttempts, lastErr)
}

// place 按能力顺序尝试端点：条件单先走专用端点，失败再退回统一端点。
func (s *Submitter) place(req Request) (*Order, error) {
	if req.Type.IsConditional() {
		if cp, ok := s.placer.(ConditionalPlacer); ok {
			ord, err := cp.CreateConditionalOrder(req)
			if err == nil {
				return ord, nil
			}
			s.log.Warn("conditional endpoint failed, falling back to unified",
				zap.String("client_id", req.ClientID), zap.Error(err))
		}
	}
	return s.placer.CreateOrder(req)
}
