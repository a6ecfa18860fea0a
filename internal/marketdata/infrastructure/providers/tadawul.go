package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

const (
	tadawulDefaultBaseURL = "https://api.tadawulquotes.sa"
	tadawulExchange       = "TADAWUL"
)

// Tadawul 沙特本地市场源，只覆盖 TADAWUL 前缀的符号，提供本市场涨跌幅榜
type Tadawul struct {
	baseURL string
	client  *http.Client
}

// NewTadawul 创建 Tadawul 适配器
func NewTadawul(cfg Config) *Tadawul {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = tadawulDefaultBaseURL
	}
	return &Tadawul{baseURL: baseURL, client: cfg.httpClient()}
}

func (t *Tadawul) Name() string { return "tadawul" }

// IsAvailable 公开接口，不需要凭证
func (t *Tadawul) IsAvailable() bool { return true }

// nativeSymbol TADAWUL:2222 -> 2222，非本市场符号返回空串
func (t *Tadawul) nativeSymbol(symbol string) string {
	exchange, ticker := splitSymbol(symbol)
	if exchange != tadawulExchange {
		return ""
	}
	return ticker
}

type tadawulQuoteResponse struct {
	Symbol        string  `json:"symbol"`
	Last          float64 `json:"last"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PrevClose     float64 `json:"prev_close"`
	Volume        int64   `json:"volume"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	LastUpdate    int64   `json:"last_update"`
}

// GetQuote 抓取实时报价
func (t *Tadawul) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	native := t.nativeSymbol(symbol)
	if native == "" {
		return nil, domain.NewProviderError(t.Name(), fmt.Errorf("symbol %s outside tadawul market: %w", symbol, domain.ErrSymbolNotFound))
	}
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", t.baseURL, url.QueryEscape(native))

	var resp tadawulQuoteResponse
	if err := getJSON(ctx, t.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(t.Name(), err)
	}
	if resp.Last <= 0 {
		return nil, domain.NewProviderError(t.Name(), domain.ErrSymbolNotFound)
	}

	quote := &domain.Quote{
		Symbol:        joinSymbol(tadawulExchange, native),
		Price:         decimal.NewFromFloat(resp.Last),
		Open:          decimal.NewFromFloat(resp.Open),
		High:          decimal.NewFromFloat(resp.High),
		Low:           decimal.NewFromFloat(resp.Low),
		PrevClose:     decimal.NewFromFloat(resp.PrevClose),
		Volume:        resp.Volume,
		Change:        decimal.NewFromFloat(resp.Change),
		ChangePercent: decimal.NewFromFloat(resp.ChangePercent),
		Source:        t.Name(),
		Timestamp:     time.Unix(resp.LastUpdate, 0).UTC(),
	}
	if resp.LastUpdate == 0 {
		quote.Timestamp = time.Now().UTC()
	}
	return quote, nil
}

type tadawulSeriesResponse struct {
	Candles []struct {
		Time   int64   `json:"t"`
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume int64   `json:"v"`
	} `json:"candles"`
}

// GetHistorical 抓取历史 K 线，本源只有日线
func (t *Tadawul) GetHistorical(ctx context.Context, symbol string, interval domain.Interval, size int) ([]domain.Candle, error) {
	native := t.nativeSymbol(symbol)
	if native == "" {
		return nil, domain.NewProviderError(t.Name(), fmt.Errorf("symbol %s outside tadawul market: %w", symbol, domain.ErrSymbolNotFound))
	}
	if interval != domain.IntervalDaily {
		return nil, domain.NewProviderError(t.Name(), fmt.Errorf("interval %s unsupported: %w", interval, domain.ErrSymbolNotFound))
	}
	if size <= 0 {
		size = 30
	}
	endpoint := fmt.Sprintf("%s/api/v1/history?symbol=%s&days=%d", t.baseURL, url.QueryEscape(native), size)

	var resp tadawulSeriesResponse
	if err := getJSON(ctx, t.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(t.Name(), err)
	}
	if len(resp.Candles) == 0 {
		return nil, domain.NewProviderError(t.Name(), domain.ErrSymbolNotFound)
	}

	candles := make([]domain.Candle, 0, len(resp.Candles))
	for _, c := range resp.Candles {
		candles = append(candles, domain.Candle{
			Timestamp: time.Unix(c.Time, 0).UTC(),
			Open:      decimal.NewFromFloat(c.Open),
			High:      decimal.NewFromFloat(c.High),
			Low:       decimal.NewFromFloat(c.Low),
			Close:     decimal.NewFromFloat(c.Close),
			Volume:    c.Volume,
		})
	}
	if len(candles) > size {
		candles = candles[len(candles)-size:]
	}
	return candles, nil
}

type tadawulMoversResponse struct {
	Gainers []tadawulMover `json:"gainers"`
	Losers  []tadawulMover `json:"losers"`
}

type tadawulMover struct {
	Symbol        string  `json:"symbol"`
	Last          float64 `json:"last"`
	ChangePercent float64 `json:"change_percent"`
}

// GetMovers 抓取本市场涨跌幅榜
func (t *Tadawul) GetMovers(ctx context.Context) (*domain.Movers, error) {
	endpoint := fmt.Sprintf("%s/api/v1/market/movers", t.baseURL)

	var resp tadawulMoversResponse
	if err := getJSON(ctx, t.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(t.Name(), err)
	}

	movers := &domain.Movers{Gainers: []domain.Mover{}, Losers: []domain.Mover{}}
	for _, g := range resp.Gainers {
		movers.Gainers = append(movers.Gainers, domain.Mover{
			Symbol:        joinSymbol(tadawulExchange, g.Symbol),
			Price:         decimal.NewFromFloat(g.Last),
			ChangePercent: decimal.NewFromFloat(g.ChangePercent),
		})
	}
	for _, l := range resp.Losers {
		movers.Losers = append(movers.Losers, domain.Mover{
			Symbol:        joinSymbol(tadawulExchange, l.Symbol),
			Price:         decimal.NewFromFloat(l.Last),
			ChangePercent: decimal.NewFromFloat(l.ChangePercent),
		})
	}
	return movers, nil
}
