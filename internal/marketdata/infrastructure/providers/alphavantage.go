package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

const alphaVantageDefaultBaseURL = "https://www.alphavantage.co"

var alphaVantageSuffixes = map[string]string{
	"TADAWUL": ".SAU",
	"EGX":     ".CAI",
	"LSE":     ".LON",
}

// AlphaVantage 限额商业源，免费档每日调用量很小，由轮询器按配额管控
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAlphaVantage 创建 Alpha Vantage 适配器
func NewAlphaVantage(cfg Config) *AlphaVantage {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = alphaVantageDefaultBaseURL
	}
	return &AlphaVantage{apiKey: cfg.APIKey, baseURL: baseURL, client: cfg.httpClient()}
}

func (a *AlphaVantage) Name() string { return "alphavantage" }

// IsAvailable 凭证存在即可用，不发起网络请求
func (a *AlphaVantage) IsAvailable() bool { return a.apiKey != "" }

func (a *AlphaVantage) nativeSymbol(symbol string) string {
	exchange, ticker := splitSymbol(symbol)
	if suffix, ok := alphaVantageSuffixes[exchange]; ok {
		return ticker + suffix
	}
	return ticker
}

type alphaVantageQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
}

// GetQuote 抓取实时报价
func (a *AlphaVantage) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	native := a.nativeSymbol(symbol)
	endpoint := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		a.baseURL, url.QueryEscape(native), url.QueryEscape(a.apiKey))

	var resp alphaVantageQuoteResponse
	if err := getJSON(ctx, a.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(a.Name(), err)
	}
	// 上游超限时返回 200 + Note 字段
	if resp.Note != "" || resp.Information != "" {
		return nil, domain.NewProviderError(a.Name(), fmt.Errorf("rate limited by upstream: %w", domain.ErrProviderUnavailable))
	}
	if len(resp.GlobalQuote) == 0 || resp.GlobalQuote["05. price"] == "" {
		return nil, domain.NewProviderError(a.Name(), domain.ErrSymbolNotFound)
	}

	quote := &domain.Quote{
		Symbol:    symbol,
		Source:    a.Name(),
		Timestamp: time.Now().UTC(),
	}
	var err error
	if quote.Price, err = decimal.NewFromString(resp.GlobalQuote["05. price"]); err != nil {
		return nil, domain.NewProviderError(a.Name(), fmt.Errorf("malformed price %q: %w", resp.GlobalQuote["05. price"], err))
	}
	quote.Open = parseDecimalField(resp.GlobalQuote["02. open"])
	quote.High = parseDecimalField(resp.GlobalQuote["03. high"])
	quote.Low = parseDecimalField(resp.GlobalQuote["04. low"])
	quote.PrevClose = parseDecimalField(resp.GlobalQuote["08. previous close"])
	quote.Change = parseDecimalField(resp.GlobalQuote["09. change"])
	quote.ChangePercent = parseDecimalField(strings.TrimSuffix(resp.GlobalQuote["10. change percent"], "%"))
	quote.Volume, _ = strconv.ParseInt(resp.GlobalQuote["06. volume"], 10, 64)
	return quote, nil
}

type alphaVantageSeriesResponse struct {
	Daily  map[string]map[string]string `json:"Time Series (Daily)"`
	Weekly map[string]map[string]string `json:"Weekly Time Series"`
	Note   string                       `json:"Note"`
}

// GetHistorical 抓取历史 K 线
func (a *AlphaVantage) GetHistorical(ctx context.Context, symbol string, interval domain.Interval, size int) ([]domain.Candle, error) {
	function := "TIME_SERIES_DAILY"
	if interval == domain.IntervalWeekly {
		function = "TIME_SERIES_WEEKLY"
	}
	native := a.nativeSymbol(symbol)
	endpoint := fmt.Sprintf("%s/query?function=%s&symbol=%s&apikey=%s",
		a.baseURL, function, url.QueryEscape(native), url.QueryEscape(a.apiKey))

	var resp alphaVantageSeriesResponse
	if err := getJSON(ctx, a.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(a.Name(), err)
	}
	if resp.Note != "" {
		return nil, domain.NewProviderError(a.Name(), fmt.Errorf("rate limited by upstream: %w", domain.ErrProviderUnavailable))
	}
	series := resp.Daily
	if interval == domain.IntervalWeekly {
		series = resp.Weekly
	}
	if len(series) == 0 {
		return nil, domain.NewProviderError(a.Name(), domain.ErrSymbolNotFound)
	}

	dates := make([]string, 0, len(series))
	for date := range series {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	candles := make([]domain.Candle, 0, len(dates))
	for _, date := range dates {
		bar := series[date]
		ts, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseInt(bar["5. volume"], 10, 64)
		candles = append(candles, domain.Candle{
			Timestamp: ts.UTC(),
			Open:      parseDecimalField(bar["1. open"]),
			High:      parseDecimalField(bar["2. high"]),
			Low:       parseDecimalField(bar["3. low"]),
			Close:     parseDecimalField(bar["4. close"]),
			Volume:    volume,
		})
	}
	if size > 0 && len(candles) > size {
		candles = candles[len(candles)-size:]
	}
	return candles, nil
}

type alphaVantageMoversResponse struct {
	TopGainers []alphaVantageMover `json:"top_gainers"`
	TopLosers  []alphaVantageMover `json:"top_losers"`
}

type alphaVantageMover struct {
	Ticker           string `json:"ticker"`
	Price            string `json:"price"`
	ChangePercentage string `json:"change_percentage"`
}

// GetMovers 抓取美股涨跌幅榜
func (a *AlphaVantage) GetMovers(ctx context.Context) (*domain.Movers, error) {
	endpoint := fmt.Sprintf("%s/query?function=TOP_GAINERS_LOSERS&apikey=%s", a.baseURL, url.QueryEscape(a.apiKey))

	var resp alphaVantageMoversResponse
	if err := getJSON(ctx, a.client, endpoint, &resp); err != nil {
		return nil, domain.NewProviderError(a.Name(), err)
	}

	movers := &domain.Movers{Gainers: []domain.Mover{}, Losers: []domain.Mover{}}
	for _, g := range resp.TopGainers {
		movers.Gainers = append(movers.Gainers, convertAlphaVantageMover(g))
	}
	for _, l := range resp.TopLosers {
		movers.Losers = append(movers.Losers, convertAlphaVantageMover(l))
	}
	return movers, nil
}

func convertAlphaVantageMover(m alphaVantageMover) domain.Mover {
	return domain.Mover{
		Symbol:        m.Ticker,
		Price:         parseDecimalField(m.Price),
		ChangePercent: parseDecimalField(strings.TrimSuffix(m.ChangePercentage, "%")),
	}
}

// parseDecimalField 解析可能为空的十进制字段，解析失败返回零值
func parseDecimalField(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
