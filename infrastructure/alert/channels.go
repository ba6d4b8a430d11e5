package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ZapChannel 把告警写进结构化日志。
type ZapChannel struct {
	log  *zap.Logger
	name string
}

// NewZapChannel 创建日志告警通道
func NewZapChannel(name string, log *zap.Logger) *ZapChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapChannel{log: log, name: name}
}

// Send 发送告警到日志
func (c *ZapChannel) Send(alert Alert) error {
	fields := []zap.Field{
		zap.String("level", string(alert.Level)),
		zap.Time("at", alert.Timestamp),
	}
	for k, v := range alert.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch alert.Level {
	case LevelError, LevelCritical:
		c.log.Error(alert.Message, fields...)
	case LevelWarning:
		c.log.Warn(alert.Message, fields...)
	default:
		c.log.Info(alert.Message, fields...)
	}
	return nil
}

// Name 返回通道名称
func (c *ZapChannel) Name() string { return c.name }

// WebhookChannel 把告警 POST 到外部 webhook（值班通知用）。
type WebhookChannel struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhookChannel 创建 webhook 告警通道
func NewWebhookChannel(name, url string) *WebhookChannel {
	return &WebhookChannel{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type webhookPayload struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Send 发送告警到 webhook
func (c *WebhookChannel) Send(alert Alert) error {
	body, err := json.Marshal(webhookPayload{
		Level:     string(alert.Level),
		Message:   alert.Message,
		Timestamp: alert.Timestamp,
		Fields:    alert.Fields,
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Name 返回通道名称
func (c *WebhookChannel) Name() string { return c.name }

// MockChannel 模拟告警通道（用于测试）
type MockChannel struct {
	name      string
	alerts    []Alert
	shouldErr bool
}

// NewMockChannel 创建模拟告警通道
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

// Send 记录告警（用于测试验证）
func (c *MockChannel) Send(alert Alert) error {
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

// Name 返回通道名称
func (c *MockChannel) Name() string { return c.name }

// SetShouldError 设置是否返回错误
func (c *MockChannel) SetShouldError(shouldErr bool) { c.shouldErr = shouldErr }

// Count 返回接收到的告警数量
func (c *MockChannel) Count() int { return len(c.alerts) }

// Last 返回最近一条告警
func (c *MockChannel) Last() (Alert, bool) {
	if len(c.alerts) == 0 {
		return Alert{}, false
	}
	return c.alerts[len(c.alerts)-1], true
}
