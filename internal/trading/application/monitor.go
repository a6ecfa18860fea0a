package application

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/papertrading/internal/trading/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
)

// CycleSummary 单轮挂单评估的结果汇总
type CycleSummary struct {
	// Pending 本轮枚举到的挂单数
	Pending int `json:"pending"`
	// Evaluated 实际完成评估的挂单数
	Evaluated int `json:"evaluated"`
	// Filled 本轮成交数
	Filled int `json:"filled"`
	// Rejected 本轮拒绝数（如卖出超持仓）
	Rejected int `json:"rejected"`
	// QuoteFailures 取数失败被跳过的标的数
	QuoteFailures int `json:"quote_failures"`
}

// Monitor 挂单监控。由外部调度器周期性调用 RunCycle，
// 对全部挂单按标的取一次报价快照并逐单评估。
type Monitor struct {
	engine  *Engine
	orders  domain.OrderRepository
	quotes  QuoteGetter
	metrics *metrics.Metrics

	// 同一实例不允许重叠执行，进行中的一轮总是跑完
	mu sync.Mutex
}

// NewMonitor 创建挂单监控
func NewMonitor(engine *Engine, orders domain.OrderRepository, quotes QuoteGetter, m *metrics.Metrics) *Monitor {
	return &Monitor{engine: engine, orders: orders, quotes: quotes, metrics: m}
}

// RunCycle 执行一轮评估。上一轮尚未结束时返回 nil 摘要并直接跳过。
// 单个订单在并发路径下已迁移到终态的情况由引擎静默跳过，不会重复成交。
func (m *Monitor) RunCycle(ctx context.Context) (*CycleSummary, error) {
	if !m.mu.TryLock() {
		logger.Warn(ctx, "monitor cycle still running, skipping this invocation")
		return nil, nil
	}
	defer m.mu.Unlock()

	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.MonitorCycleDuration.Observe(time.Since(start).Seconds())
		}
	}()

	pending, err := m.orders.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	summary := &CycleSummary{Pending: len(pending)}
	if len(pending) == 0 {
		return summary, nil
	}

	// 按标的分组，每标的每轮只取一次报价快照
	bySymbol := make(map[string][]*domain.Order)
	for _, order := range pending {
		bySymbol[order.Symbol] = append(bySymbol[order.Symbol], order)
	}

	for symbol, orders := range bySymbol {
		quote, err := m.quotes.GetQuote(ctx, symbol)
		if err != nil {
			// 取数失败只影响本标的，订单保持挂单等下一轮
			logger.Warn(ctx, "monitor quote fetch failed", "symbol", symbol, "orders", len(orders), "error", err)
			summary.QuoteFailures++
			continue
		}

		for _, order := range orders {
			result, err := m.engine.EvaluateOrder(ctx, order, quote.Price)
			if err != nil {
				logger.Error(ctx, "monitor order evaluation failed", "order_id", order.OrderID, "error", err)
				continue
			}
			summary.Evaluated++
			switch result.Status {
			case domain.OrderStatusFilled:
				summary.Filled++
			case domain.OrderStatusRejected:
				summary.Rejected++
			}
		}
	}

	logger.Info(ctx, "monitor cycle finished",
		"pending", summary.Pending,
		"evaluated", summary.Evaluated,
		"filled", summary.Filled,
		"rejected", summary.Rejected,
		"quote_failures", summary.QuoteFailures,
		"duration", time.Since(start),
	)
	return summary, nil
}
