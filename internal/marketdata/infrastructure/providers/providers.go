// Package providers 包含各上游行情数据源的适配器实现。
// 每个适配器负责本源的符号转换、请求构造与响应标准化，
// 网络成功但载荷为空一律归一为 domain.ErrSymbolNotFound。
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config 单个适配器的构造配置
type Config struct {
	// APIKey 上游凭证，需要凭证的源为空时视为不可用
	APIKey string
	// BaseURL 上游地址，为空使用各适配器默认值
	BaseURL string
	// Timeout 单次请求超时
	Timeout time.Duration
}

func (c Config) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// splitSymbol 拆分交易所前缀形式的符号（EXCH:SYM）。
// 无前缀时交易所为空串。
func splitSymbol(symbol string) (exchange, ticker string) {
	if i := strings.IndexByte(symbol, ':'); i >= 0 {
		return strings.ToUpper(symbol[:i]), symbol[i+1:]
	}
	return "", symbol
}

// joinSymbol splitSymbol 的逆操作，用于把本源符号还原为规范形式
func joinSymbol(exchange, ticker string) string {
	if exchange == "" {
		return ticker
	}
	return exchange + ":" + ticker
}

// getJSON 发起 GET 请求并反序列化 JSON 响应
func getJSON(ctx context.Context, client *http.Client, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
