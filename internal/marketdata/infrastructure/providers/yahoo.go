package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

const yahooDefaultBaseURL = "https://query1.finance.yahoo.com"

// 交易所前缀到 Yahoo 后缀的映射，转换需可逆以便日志对账
var yahooSuffixes = map[string]string{
	"TADAWUL": ".SR",
	"EGX":     ".CA",
	"LSE":     ".L",
}

// Yahoo 免费且不限额的数据源，排在轮询优先级首位
type Yahoo struct {
	baseURL string
	client  *http.Client
}

// NewYahoo 创建 Yahoo 适配器
func NewYahoo(cfg Config) *Yahoo {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = yahooDefaultBaseURL
	}
	return &Yahoo{baseURL: baseURL, client: cfg.httpClient()}
}

func (y *Yahoo) Name() string { return "yahoo" }

// IsAvailable Yahoo 不需要凭证
func (y *Yahoo) IsAvailable() bool { return true }

// nativeSymbol TADAWUL:2222 -> 2222.SR，美股符号原样
func (y *Yahoo) nativeSymbol(symbol string) string {
	exchange, ticker := splitSymbol(symbol)
	if suffix, ok := yahooSuffixes[exchange]; ok {
		return ticker + suffix
	}
	return ticker
}

// canonicalSymbol nativeSymbol 的逆操作
func (y *Yahoo) canonicalSymbol(native string) string {
	for exchange, suffix := range yahooSuffixes {
		if strings.HasSuffix(native, suffix) {
			return joinSymbol(exchange, strings.TrimSuffix(native, suffix))
		}
	}
	return native
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				ChartPreviousClose  float64 `json:"chartPreviousClose"`
				RegularMarketVolume int64   `json:"regularMarketVolume"`
				RegularMarketTime   int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetQuote 抓取实时报价
func (y *Yahoo) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	native := y.nativeSymbol(symbol)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=1d", y.baseURL, url.PathEscape(native))

	var resp yahooChartResponse
	if err := getJSON(ctx, y.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(y.Name(), err)
	}
	if resp.Chart.Error != nil {
		return nil, domain.NewProviderError(y.Name(), fmt.Errorf("%s: %w", resp.Chart.Error.Code, domain.ErrSymbolNotFound))
	}
	if len(resp.Chart.Result) == 0 {
		return nil, domain.NewProviderError(y.Name(), domain.ErrSymbolNotFound)
	}

	result := resp.Chart.Result[0]
	if result.Meta.RegularMarketPrice <= 0 {
		return nil, domain.NewProviderError(y.Name(), domain.ErrSymbolNotFound)
	}

	price := decimal.NewFromFloat(result.Meta.RegularMarketPrice)
	prevClose := decimal.NewFromFloat(result.Meta.ChartPreviousClose)
	change := price.Sub(prevClose)
	changePct := decimal.Zero
	if prevClose.IsPositive() {
		changePct = change.Div(prevClose).Mul(decimal.NewFromInt(100)).Round(4)
	}

	quote := &domain.Quote{
		Symbol:        symbol,
		Price:         price,
		PrevClose:     prevClose,
		Volume:        result.Meta.RegularMarketVolume,
		Change:        change,
		ChangePercent: changePct,
		Source:        y.Name(),
		Timestamp:     time.Unix(result.Meta.RegularMarketTime, 0).UTC(),
	}
	if result.Meta.RegularMarketTime == 0 {
		quote.Timestamp = time.Now().UTC()
	}
	if len(result.Timestamp) > 0 && len(result.Indicators.Quote) > 0 {
		bar := result.Indicators.Quote[0]
		if len(bar.Open) > 0 {
			quote.Open = decimal.NewFromFloat(bar.Open[0])
		}
		if len(bar.High) > 0 {
			quote.High = decimal.NewFromFloat(bar.High[0])
		}
		if len(bar.Low) > 0 {
			quote.Low = decimal.NewFromFloat(bar.Low[0])
		}
	}
	return quote, nil
}

// GetHistorical 抓取历史 K 线
func (y *Yahoo) GetHistorical(ctx context.Context, symbol string, interval domain.Interval, size int) ([]domain.Candle, error) {
	native := y.nativeSymbol(symbol)
	yInterval, yRange := "1d", "3mo"
	switch interval {
	case domain.IntervalWeekly:
		yInterval, yRange = "1wk", "2y"
	case domain.Interval1Min:
		yInterval, yRange = "1m", "1d"
	case domain.Interval5Min:
		yInterval, yRange = "5m", "5d"
	case domain.Interval1Hour:
		yInterval, yRange = "60m", "1mo"
	}
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s", y.baseURL, url.PathEscape(native), yRange, yInterval)

	var resp yahooChartResponse
	if err := getJSON(ctx, y.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(y.Name(), err)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, domain.NewProviderError(y.Name(), domain.ErrSymbolNotFound)
	}

	result := resp.Chart.Result[0]
	bar := result.Indicators.Quote[0]
	candles := make([]domain.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(bar.Close) {
			break
		}
		candles = append(candles, domain.Candle{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      decimal.NewFromFloat(at(bar.Open, i)),
			High:      decimal.NewFromFloat(at(bar.High, i)),
			Low:       decimal.NewFromFloat(at(bar.Low, i)),
			Close:     decimal.NewFromFloat(at(bar.Close, i)),
			Volume:    atInt(bar.Volume, i),
		})
	}
	// 结果短于请求量不是错误，保留最近 size 根
	if size > 0 && len(candles) > size {
		candles = candles[len(candles)-size:]
	}
	return candles, nil
}

// GetMovers Yahoo 适配器不提供涨跌幅榜
func (y *Yahoo) GetMovers(ctx context.Context) (*domain.Movers, error) {
	return &domain.Movers{Gainers: []domain.Mover{}, Losers: []domain.Mover{}}, nil
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func atInt(values []int64, i int) int64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
