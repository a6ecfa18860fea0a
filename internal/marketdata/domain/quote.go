// Package domain 行情子系统的领域模型：报价、K 线、涨跌幅榜与数据源契约
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote 标准化报价快照。构造后不可变，每次抓取产生新实例。
type Quote struct {
	// Symbol 交易所前缀形式的标的符号（如 TADAWUL:2222）
	Symbol string `json:"symbol"`
	// Price 最新成交价
	Price decimal.Decimal `json:"price"`
	// Open 开盘价
	Open decimal.Decimal `json:"open"`
	// High 最高价
	High decimal.Decimal `json:"high"`
	// Low 最低价
	Low decimal.Decimal `json:"low"`
	// PrevClose 昨日收盘价
	PrevClose decimal.Decimal `json:"prev_close"`
	// Volume 成交量
	Volume int64 `json:"volume"`
	// Change 涨跌额
	Change decimal.Decimal `json:"change"`
	// ChangePercent 涨跌幅（百分比）
	ChangePercent decimal.Decimal `json:"change_percent"`
	// Source 数据来源
	Source string `json:"source"`
	// Timestamp 报价时间
	Timestamp time.Time `json:"timestamp"`
}

// Candle 单根 OHLCV K 线
type Candle struct {
	// Timestamp 开盘时间
	Timestamp time.Time `json:"timestamp"`
	// Open 开盘价
	Open decimal.Decimal `json:"open"`
	// High 最高价
	High decimal.Decimal `json:"high"`
	// Low 最低价
	Low decimal.Decimal `json:"low"`
	// Close 收盘价
	Close decimal.Decimal `json:"close"`
	// Volume 成交量
	Volume int64 `json:"volume"`
}

// Mover 涨跌幅榜单条目
type Mover struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// Movers 涨跌幅榜。不支持该能力的数据源返回空列表而非错误。
type Movers struct {
	Gainers []Mover `json:"gainers"`
	Losers  []Mover `json:"losers"`
}

// Interval 历史行情的时间周期
type Interval string

const (
	IntervalDaily  Interval = "daily"
	IntervalWeekly Interval = "weekly"
	Interval1Min   Interval = "1min"
	Interval5Min   Interval = "5min"
	Interval1Hour  Interval = "60min"
)
