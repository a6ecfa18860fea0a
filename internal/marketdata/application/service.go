package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/cache"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
)

// QuoteServiceConfig 报价服务配置
type QuoteServiceConfig struct {
	// QuoteTTL 报价缓存存活时间
	QuoteTTL time.Duration
	// HistoryTTL 历史行情缓存存活时间
	HistoryTTL time.Duration
	// RequestTimeout 单次上游调用超时，防止单个慢源拖死轮询
	RequestTimeout time.Duration
}

func (c *QuoteServiceConfig) withDefaults() {
	if c.QuoteTTL <= 0 {
		c.QuoteTTL = time.Minute
	}
	if c.HistoryTTL <= 0 {
		c.HistoryTTL = 10 * time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

// QuoteService 报价读取的唯一入口。先查缓存，未命中经轮询器取数，
// 标准化后回填缓存。适配器错误在此边界记录并吞掉，只有整轮
// 耗尽才向调用方传播。
type QuoteService struct {
	rotator *Rotator
	cache   *cache.Store
	cfg     QuoteServiceConfig
	metrics *metrics.Metrics
}

// NewQuoteService 创建报价服务
func NewQuoteService(rotator *Rotator, store *cache.Store, cfg QuoteServiceConfig, m *metrics.Metrics) *QuoteService {
	cfg.withDefaults()
	return &QuoteService{rotator: rotator, cache: store, cfg: cfg, metrics: m}
}

// GetQuote 获取标的的最新报价
func (s *QuoteService) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	key := "quote:" + symbol

	var cached domain.Quote
	if s.cache.GetJSON(ctx, key, &cached) {
		if s.metrics != nil {
			s.metrics.QuoteCacheHits.Inc()
		}
		return &cached, nil
	}
	if s.metrics != nil {
		s.metrics.QuoteCacheMisses.Inc()
	}

	var quote *domain.Quote
	err := s.fetch(ctx, func(callCtx context.Context, p domain.Provider) error {
		q, err := p.GetQuote(callCtx, symbol)
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.SetJSON(ctx, key, quote, s.cfg.QuoteTTL)
	return quote, nil
}

// GetHistorical 获取标的的历史 K 线
func (s *QuoteService) GetHistorical(ctx context.Context, symbol string, interval domain.Interval, size int) ([]domain.Candle, error) {
	key := fmt.Sprintf("history:%s:%s:%d", symbol, interval, size)

	var cached []domain.Candle
	if s.cache.GetJSON(ctx, key, &cached) {
		if s.metrics != nil {
			s.metrics.QuoteCacheHits.Inc()
		}
		return cached, nil
	}
	if s.metrics != nil {
		s.metrics.QuoteCacheMisses.Inc()
	}

	var candles []domain.Candle
	err := s.fetch(ctx, func(callCtx context.Context, p domain.Provider) error {
		c, err := p.GetHistorical(callCtx, symbol, interval, size)
		if err != nil {
			return err
		}
		candles = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.SetJSON(ctx, key, candles, s.cfg.HistoryTTL)
	return candles, nil
}

// GetMovers 获取涨跌幅榜。逐源尝试，跳过不支持该能力（返回空榜）的源。
func (s *QuoteService) GetMovers(ctx context.Context) (*domain.Movers, error) {
	key := "movers"

	var cached domain.Movers
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	var movers *domain.Movers
	err := s.fetch(ctx, func(callCtx context.Context, p domain.Provider) error {
		m, err := p.GetMovers(callCtx)
		if err != nil {
			return err
		}
		if len(m.Gainers) == 0 && len(m.Losers) == 0 {
			return fmt.Errorf("provider %s has no movers data: %w", p.Name(), domain.ErrSymbolNotFound)
		}
		movers = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.SetJSON(ctx, key, movers, s.cfg.QuoteTTL)
	return movers, nil
}

// ProviderStatus 各数据源状态
func (s *QuoteService) ProviderStatus() []domain.ProviderStatus {
	return s.rotator.Status()
}

// CacheStats 缓存状态
func (s *QuoteService) CacheStats(ctx context.Context) cache.Stats {
	return s.cache.Stats(ctx)
}

// fetch 经轮询器逐源调用 call，最多尝试一整轮。单源失败记录后继续，
// 整轮无果返回 domain.ErrProvidersExhausted。
func (s *QuoteService) fetch(ctx context.Context, call func(context.Context, domain.Provider) error) error {
	for attempt := 0; attempt < s.rotator.Len(); attempt++ {
		p, err := s.rotator.Next(ctx)
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		start := time.Now()
		err = call(callCtx, p)
		cancel()

		if s.metrics != nil {
			s.metrics.ProviderCallDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
		}
		if err == nil {
			if s.metrics != nil {
				s.metrics.ProviderCallsTotal.WithLabelValues(p.Name(), "success").Inc()
			}
			return nil
		}
		if s.metrics != nil {
			s.metrics.ProviderCallsTotal.WithLabelValues(p.Name(), "failure").Inc()
		}
		logger.Warn(ctx, "provider call failed, trying next", "provider", p.Name(), "error", err)

		// 调用方的截止时间已到，只影响本次请求
		if ctx.Err() != nil {
			return domain.ErrProvidersExhausted
		}
	}
	return domain.ErrProvidersExhausted
}
