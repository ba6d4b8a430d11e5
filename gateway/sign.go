package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// SignParams 对请求参数做字典序编码并计算 HMAC-SHA256 签名。
// 自动附加 timestamp 字段（毫秒）。
func SignParams(params map[string]string, secret string) (query, signature string) {
	if _, ok := params["timestamp"]; !ok {
		params["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		values.Set(k, params[k])
	}
	query = values.Encode()

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprint(mac, query)
	signature = hex.EncodeToString(mac.Sum(nil))
	return query, signature
}
