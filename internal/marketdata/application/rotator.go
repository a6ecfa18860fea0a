// Package application 行情子系统的应用服务：数据源轮询器与报价服务
package application

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
)

// quotaResetWindow 配额重置窗口，从上次重置起算而非自然日
const quotaResetWindow = 24 * time.Hour

// Rotator 数据源轮询器。维护轮询游标与每源当日调用计数，
// 跳过不可用或配额耗尽的源。所有可变状态由单把互斥锁保护。
type Rotator struct {
	mu        sync.Mutex
	providers []domain.Provider
	quotas    map[string]int
	calls     map[string]int
	cursor    int
	lastReset time.Time

	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRotator 创建轮询器。providers 按优先级排列，免费源在前；
// quotas 为每源每日配额，0 表示不限额。
func NewRotator(providers []domain.Provider, quotas map[string]int, m *metrics.Metrics, now func() time.Time) *Rotator {
	if now == nil {
		now = time.Now
	}
	if quotas == nil {
		quotas = map[string]int{}
	}
	return &Rotator{
		providers: providers,
		quotas:    quotas,
		calls:     make(map[string]int, len(providers)),
		lastReset: now(),
		metrics:   m,
		now:       now,
	}
}

// Len 数据源数量，调用方以此限定单次请求的重试轮次
func (r *Rotator) Len() int {
	return len(r.providers)
}

// Next 返回下一个可用且未超配额的数据源并为其记一次调用。
// 一整轮扫描无果时返回 domain.ErrProvidersExhausted。
func (r *Rotator) Next(ctx context.Context) (domain.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.maybeResetLocked()

	for i := 0; i < len(r.providers); i++ {
		idx := (r.cursor + i) % len(r.providers)
		p := r.providers[idx]

		if !p.IsAvailable() {
			continue
		}
		if quota := r.quotas[p.Name()]; quota > 0 && r.calls[p.Name()] >= quota {
			// 配额耗尽不是错误，继续扫描
			if r.metrics != nil {
				r.metrics.ProviderQuotaSkips.WithLabelValues(p.Name()).Inc()
			}
			continue
		}

		r.calls[p.Name()]++
		r.cursor = (idx + 1) % len(r.providers)
		return p, nil
	}

	if r.metrics != nil {
		r.metrics.ProvidersExhaustedTotal.Inc()
	}
	logger.Warn(ctx, "no eligible market data provider", "providers", len(r.providers))
	return nil, domain.ErrProvidersExhausted
}

// Status 各数据源的可用性与配额使用情况
func (r *Rotator) Status() []domain.ProviderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.maybeResetLocked()

	statuses := make([]domain.ProviderStatus, 0, len(r.providers))
	for _, p := range r.providers {
		statuses = append(statuses, domain.ProviderStatus{
			Name:      p.Name(),
			Available: p.IsAvailable(),
			Calls:     r.calls[p.Name()],
			Quota:     r.quotas[p.Name()],
			ResetAt:   r.lastReset.Add(quotaResetWindow).UTC().Format(time.RFC3339),
		})
	}
	return statuses
}

// maybeResetLocked 距上次重置超过 24 小时则清零全部计数，调用方须持锁
func (r *Rotator) maybeResetLocked() {
	now := r.now()
	if now.Sub(r.lastReset) < quotaResetWindow {
		return
	}
	r.calls = make(map[string]int, len(r.providers))
	r.lastReset = now
}
