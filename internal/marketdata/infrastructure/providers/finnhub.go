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

const finnhubDefaultBaseURL = "https://finnhub.io/api/v1"

// Finnhub 限额商业源，只覆盖美股符号
type Finnhub struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewFinnhub 创建 Finnhub 适配器
func NewFinnhub(cfg Config) *Finnhub {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = finnhubDefaultBaseURL
	}
	return &Finnhub{apiKey: cfg.APIKey, baseURL: baseURL, client: cfg.httpClient()}
}

func (f *Finnhub) Name() string { return "finnhub" }

// IsAvailable 凭证存在即可用
func (f *Finnhub) IsAvailable() bool { return f.apiKey != "" }

// nativeSymbol Finnhub 只认裸 ticker，前缀直接剥离
func (f *Finnhub) nativeSymbol(symbol string) string {
	_, ticker := splitSymbol(symbol)
	return ticker
}

type finnhubQuoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// GetQuote 抓取实时报价。未知符号时 Finnhub 返回全零载荷。
func (f *Finnhub) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	native := f.nativeSymbol(symbol)
	endpoint := fmt.Sprintf("%s/quote?symbol=%s&token=%s", f.baseURL, url.QueryEscape(native), url.QueryEscape(f.apiKey))

	var resp finnhubQuoteResponse
	if err := getJSON(ctx, f.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(f.Name(), err)
	}
	if resp.Current <= 0 {
		return nil, domain.NewProviderError(f.Name(), domain.ErrSymbolNotFound)
	}

	quote := &domain.Quote{
		Symbol:        symbol,
		Price:         decimal.NewFromFloat(resp.Current),
		Open:          decimal.NewFromFloat(resp.Open),
		High:          decimal.NewFromFloat(resp.High),
		Low:           decimal.NewFromFloat(resp.Low),
		PrevClose:     decimal.NewFromFloat(resp.PrevClose),
		Change:        decimal.NewFromFloat(resp.Change),
		ChangePercent: decimal.NewFromFloat(resp.ChangePercent),
		Source:        f.Name(),
		Timestamp:     time.Unix(resp.Timestamp, 0).UTC(),
	}
	if resp.Timestamp == 0 {
		quote.Timestamp = time.Now().UTC()
	}
	return quote, nil
}

type finnhubCandleResponse struct {
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []int64   `json:"v"`
}

// GetHistorical 抓取历史 K 线
func (f *Finnhub) GetHistorical(ctx context.Context, symbol string, interval domain.Interval, size int) ([]domain.Candle, error) {
	resolution := "D"
	span := time.Duration(size+1) * 24 * time.Hour
	switch interval {
	case domain.IntervalWeekly:
		resolution = "W"
		span = time.Duration(size+1) * 7 * 24 * time.Hour
	case domain.Interval1Min:
		resolution = "1"
		span = time.Duration(size+1) * time.Minute
	case domain.Interval5Min:
		resolution = "5"
		span = time.Duration(size+1) * 5 * time.Minute
	case domain.Interval1Hour:
		resolution = "60"
		span = time.Duration(size+1) * time.Hour
	}
	now := time.Now().UTC()
	native := f.nativeSymbol(symbol)
	endpoint := fmt.Sprintf("%s/stock/candle?symbol=%s&resolution=%s&from=%d&to=%d&token=%s",
		f.baseURL, url.QueryEscape(native), resolution, now.Add(-span).Unix(), now.Unix(), url.QueryEscape(f.apiKey))

	var resp finnhubCandleResponse
	if err := getJSON(ctx, f.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(f.Name(), err)
	}
	if resp.Status != "ok" || len(resp.Time) == 0 {
		return nil, domain.NewProviderError(f.Name(), domain.ErrSymbolNotFound)
	}

	candles := make([]domain.Candle, 0, len(resp.Time))
	for i, ts := range resp.Time {
		candles = append(candles, domain.Candle{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      decimal.NewFromFloat(at(resp.Open, i)),
			High:      decimal.NewFromFloat(at(resp.High, i)),
			Low:       decimal.NewFromFloat(at(resp.Low, i)),
			Close:     decimal.NewFromFloat(at(resp.Close, i)),
			Volume:    atInt(resp.Volume, i),
		})
	}
	if size > 0 && len(candles) > size {
		candles = candles[len(candles)-size:]
	}
	return candles, nil
}

// GetMovers Finnhub 免费档不提供涨跌幅榜
func (f *Finnhub) GetMovers(ctx context.Context) (*domain.Movers, error) {
	return &domain.Movers{Gainers: []domain.Mover{}, Losers: []domain.Mover{}}, nil
}
