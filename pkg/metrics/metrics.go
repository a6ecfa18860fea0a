// Package metrics 提供 Prometheus 指标集合
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 指标集合
type Metrics struct {
	// 数据源调用计数，按数据源与结果区分
	ProviderCallsTotal *prometheus.CounterVec
	// 数据源调用耗时
	ProviderCallDuration *prometheus.HistogramVec
	// 数据源配额耗尽被跳过的次数
	ProviderQuotaSkips *prometheus.CounterVec
	// 全部数据源耗尽的次数
	ProvidersExhaustedTotal prometheus.Counter

	// 行情缓存命中/未命中
	QuoteCacheHits   prometheus.Counter
	QuoteCacheMisses prometheus.Counter

	// 订单计数，按终态区分
	OrdersTotal *prometheus.CounterVec
	// 当前挂单数
	OrdersPending prometheus.Gauge
	// 成交计数
	FillsTotal *prometheus.CounterVec

	// 挂单监控单轮耗时
	MonitorCycleDuration prometheus.Histogram
}

// New 创建并注册指标实例
func New(serviceName string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "provider_calls_total",
			Help:      "Upstream market data calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "provider_call_duration_seconds",
			Help:      "Upstream market data call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		ProviderQuotaSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "provider_quota_skips_total",
			Help:      "Times a provider was skipped because its daily quota was reached",
		}, []string{"provider"}),
		ProvidersExhaustedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "providers_exhausted_total",
			Help:      "Times a quote request found no eligible provider",
		}),
		QuoteCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "quote_cache_hits_total",
			Help:      "Quote cache hits",
		}),
		QuoteCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "quote_cache_misses_total",
			Help:      "Quote cache misses",
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "orders_total",
			Help:      "Orders by terminal status",
		}, []string{"status"}),
		OrdersPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "orders_pending",
			Help:      "Number of pending orders",
		}),
		FillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "fills_total",
			Help:      "Order fills by side",
		}, []string{"side"}),
		MonitorCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "monitor_cycle_duration_seconds",
			Help:      "Pending order monitor cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ProviderCallsTotal,
			m.ProviderCallDuration,
			m.ProviderQuotaSkips,
			m.ProvidersExhaustedTotal,
			m.QuoteCacheHits,
			m.QuoteCacheMisses,
			m.OrdersTotal,
			m.OrdersPending,
			m.FillsTotal,
			m.MonitorCycleDuration,
		)
	}

	return m
}
