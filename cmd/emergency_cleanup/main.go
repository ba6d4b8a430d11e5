package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"ladder-trader-go/gateway"
	"ladder-trader-go/order"
)

// 紧急清场工具：撤掉全部挂单并以市价减仓到零。独立于 runner 运行，
// 策略状态机卡死时的最后手段。

func main() {
	symbol := flag.String("symbol", "ETHUSDT", "要清场的交易对")
	baseURL := flag.String("baseURL", "https://fapi.binance.com", "REST 端点")
	flag.Parse()

	apiKey := os.Getenv("LT_GATEWAY_API_KEY")
	apiSecret := os.Getenv("LT_GATEWAY_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		log.Fatal("需要 LT_GATEWAY_API_KEY 和 LT_GATEWAY_API_SECRET")
	}

	sym := strings.ToUpper(*symbol)
	client := &gateway.BinanceRESTClient{
		BaseURL:    *baseURL,
		APIKey:     apiKey,
		Secret:     apiSecret,
		HTTPClient: gateway.NewDefaultHTTPClient(),
	}

	fmt.Printf("撤销 %s 全部挂单...\n", sym)
	if err := client.CancelAllOrders(sym); err != nil {
		log.Printf("撤单失败: %v", err)
	} else {
		fmt.Println("挂单已撤销")
	}

	fmt.Println("查询当前持仓...")
	positions, err := client.GetPositions(sym)
	if err != nil {
		log.Fatalf("查询持仓失败: %v", err)
	}

	closed := 0
	for _, p := range positions {
		amt := p.PositionAmt
		if amt < 0 {
			amt = -amt
		}
		if amt == 0 {
			continue
		}
		fmt.Printf("市价平 %s %s %.6f...\n", sym, p.PositionSide, amt)
		if err := closeMarket(*baseURL, apiKey, apiSecret, sym, p.PositionSide, amt); err != nil {
			log.Fatalf("平仓失败: %v", err)
		}
		closed++
	}
	if closed == 0 {
		fmt.Println("没有持仓，无需平仓")
		return
	}

	time.Sleep(3 * time.Second)
	final, err := client.GetPositions(sym)
	if err != nil {
		log.Printf("复查持仓失败: %v", err)
		return
	}
	for _, p := range final {
		fmt.Printf("最终持仓 %s: %.6f\n", p.PositionSide, p.PositionAmt)
	}
}

// closeMarket 以市价减仓；网关客户端只暴露限价/条件单，市价收尾
// 这里直接拼请求。
func closeMarket(baseURL, apiKey, secret, symbol string, pos order.PositionSide, qty float64) error {
	params := map[string]string{
		"symbol":       symbol,
		"side":         string(pos.CloseSide()),
		"positionSide": string(pos),
		"type":         "MARKET",
		"quantity":     fmt.Sprintf("%.6f", qty),
	}
	query, sig := gateway.SignParams(params, secret)

	url := fmt.Sprintf("%s/fapi/v1/order?%s&signature=%s", baseURL, query, sig)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", apiKey)

	resp, err := gateway.NewDefaultHTTPClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return nil
}
