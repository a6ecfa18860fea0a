package domain

import (
	"context"
	"errors"
	"fmt"
)

// 行情子系统的错误分类。适配器内部的网络/解析错误在轮询器边界被记录
// 并吞掉，只有聚合后的耗尽条件向上传播。
var (
	// ErrSymbolNotFound 上游正常响应但没有该标的的数据
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrProviderUnavailable 数据源缺少凭证或单次调用失败
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProvidersExhausted 一整轮扫描没有任何可用且未超配额的数据源
	ErrProvidersExhausted = errors.New("all market data providers exhausted")
)

// ProviderError 携带数据源身份的调用错误
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError 包装数据源调用错误
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

// Provider 统一的行情数据源契约。每个上游集成是一个独立实现，
// 在构造时按优先级装入轮询器。
type Provider interface {
	// Name 数据源标识
	Name() string
	// IsAvailable 是否具备调用所需的凭证/配置，不得发起网络请求
	IsAvailable() bool
	// GetQuote 抓取单个标的的实时报价
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	// GetHistorical 抓取历史 K 线，结果可短于 size，不视为错误
	GetHistorical(ctx context.Context, symbol string, interval Interval, size int) ([]Candle, error)
	// GetMovers 抓取涨跌幅榜，不支持时返回空结果
	GetMovers(ctx context.Context) (*Movers, error)
}

// ProviderStatus 数据源在轮询器中的运行状态
type ProviderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Calls     int    `json:"calls"`
	Quota     int    `json:"quota"`
	ResetAt   string `json:"reset_at"`
}
