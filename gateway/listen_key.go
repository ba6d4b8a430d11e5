package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ListenKeyClient 管理用户数据流的 listenKey（创建 + 保活）。
type ListenKeyClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func (c *ListenKeyClient) do(method string) ([]byte, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	req, err := http.NewRequest(method, c.BaseURL+"/fapi/v1/listenKey", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("listenKey %s status %d", method, resp.StatusCode)
	}
	return body, nil
}

// Create 申请新的 listenKey。
func (c *ListenKeyClient) Create() (string, error) {
	body, err := c.do(http.MethodPost)
	if err != nil {
		return "", err
	}
	var out struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.ListenKey == "" {
		return "", fmt.Errorf("empty listenKey")
	}
	return out.ListenKey, nil
}

// KeepAlive 续期 listenKey；binance 要求 60 分钟内至少一次。
func (c *ListenKeyClient) KeepAlive() error {
	_, err := c.do(http.MethodPut)
	return err
}

// NewListenKeyHTTPClient 保活请求用的短超时客户端。
func NewListenKeyHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}
