package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

const twelveDataDefaultBaseURL = "https://api.twelvedata.com"

// TwelveData 限额商业源，符号形式与规范形式一致（EXCH:SYM）
type TwelveData struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewTwelveData 创建 Twelve Data 适配器
func NewTwelveData(cfg Config) *TwelveData {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twelveDataDefaultBaseURL
	}
	return &TwelveData{apiKey: cfg.APIKey, baseURL: baseURL, client: cfg.httpClient()}
}

func (t *TwelveData) Name() string { return "twelvedata" }

// IsAvailable 凭证存在即可用
func (t *TwelveData) IsAvailable() bool { return t.apiKey != "" }

// nativeSymbol Twelve Data 接受裸 ticker，交易所通过单独参数传递
func (t *TwelveData) nativeSymbol(symbol string) (ticker, exchange string) {
	exchange, ticker = splitSymbol(symbol)
	return ticker, exchange
}

type twelveDataQuoteResponse struct {
	Symbol        string `json:"symbol"`
	Open          string `json:"open"`
	High          string `json:"high"`
	Low           string `json:"low"`
	Close         string `json:"close"`
	PreviousClose string `json:"previous_close"`
	Change        string `json:"change"`
	PercentChange string `json:"percent_change"`
	Volume        string `json:"volume"`
	Timestamp     int64  `json:"timestamp"`
	// 错误响应复用同一结构
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GetQuote 抓取实时报价
func (t *TwelveData) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	ticker, exchange := t.nativeSymbol(symbol)
	endpoint := fmt.Sprintf("%s/quote?symbol=%s&apikey=%s", t.baseURL, url.QueryEscape(ticker), url.QueryEscape(t.apiKey))
	if exchange != "" {
		endpoint += "&exchange=" + url.QueryEscape(exchange)
	}

	var resp twelveDataQuoteResponse
	if err := getJSON(ctx, t.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(t.Name(), err)
	}
	if resp.Status == "error" {
		if resp.Code == 404 {
			return nil, domain.NewProviderError(t.Name(), domain.ErrSymbolNotFound)
		}
		return nil, domain.NewProviderError(t.Name(), fmt.Errorf("%s: %w", resp.Message, domain.ErrProviderUnavailable))
	}
	if resp.Close == "" {
		return nil, domain.NewProviderError(t.Name(), domain.ErrSymbolNotFound)
	}

	volume, _ := strconv.ParseInt(resp.Volume, 10, 64)
	quote := &domain.Quote{
		Symbol:        symbol,
		Price:         parseDecimalField(resp.Close),
		Open:          parseDecimalField(resp.Open),
		High:          parseDecimalField(resp.High),
		Low:           parseDecimalField(resp.Low),
		PrevClose:     parseDecimalField(resp.PreviousClose),
		Change:        parseDecimalField(resp.Change),
		ChangePercent: parseDecimalField(resp.PercentChange),
		Volume:        volume,
		Source:        t.Name(),
		Timestamp:     time.Unix(resp.Timestamp, 0).UTC(),
	}
	if resp.Timestamp == 0 {
		quote.Timestamp = time.Now().UTC()
	}
	if !quote.Price.IsPositive() {
		return nil, domain.NewProviderError(t.Name(), domain.ErrSymbolNotFound)
	}
	return quote, nil
}

type twelveDataSeriesResponse struct {
	Values []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GetHistorical 抓取历史 K 线
func (t *TwelveData) GetHistorical(ctx context.Context, symbol string, interval domain.Interval, size int) ([]domain.Candle, error) {
	tdInterval := "1day"
	switch interval {
	case domain.IntervalWeekly:
		tdInterval = "1week"
	case domain.Interval1Min:
		tdInterval = "1min"
	case domain.Interval5Min:
		tdInterval = "5min"
	case domain.Interval1Hour:
		tdInterval = "1h"
	}
	if size <= 0 {
		size = 30
	}
	ticker, exchange := t.nativeSymbol(symbol)
	endpoint := fmt.Sprintf("%s/time_series?symbol=%s&interval=%s&outputsize=%d&apikey=%s",
		t.baseURL, url.QueryEscape(ticker), tdInterval, size, url.QueryEscape(t.apiKey))
	if exchange != "" {
		endpoint += "&exchange=" + url.QueryEscape(exchange)
	}

	var resp twelveDataSeriesResponse
	if err := getJSON(ctx, t.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(t.Name(), err)
	}
	if resp.Status == "error" || len(resp.Values) == 0 {
		return nil, domain.NewProviderError(t.Name(), domain.ErrSymbolNotFound)
	}

	// 上游按时间倒序返回，翻转为正序
	candles := make([]domain.Candle, 0, len(resp.Values))
	for i := len(resp.Values) - 1; i >= 0; i-- {
		v := resp.Values[i]
		ts, err := time.Parse("2006-01-02 15:04:05", v.Datetime)
		if err != nil {
			if ts, err = time.Parse("2006-01-02", v.Datetime); err != nil {
				continue
			}
		}
		volume, _ := strconv.ParseInt(v.Volume, 10, 64)
		candles = append(candles, domain.Candle{
			Timestamp: ts.UTC(),
			Open:      parseDecimalField(v.Open),
			High:      parseDecimalField(v.High),
			Low:       parseDecimalField(v.Low),
			Close:     parseDecimalField(v.Close),
			Volume:    volume,
		})
	}
	return candles, nil
}

// GetMovers Twelve Data 免费档不提供涨跌幅榜
func (t *TwelveData) GetMovers(ctx context.Context) (*domain.Movers, error) {
	return &domain.Movers{Gainers: []domain.Mover{}, Losers: []domain.Mover{}}, nil
}
