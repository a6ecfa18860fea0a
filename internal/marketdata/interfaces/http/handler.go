package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/papertrading/internal/marketdata/application"
	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/response"
)

// MarketDataHandler HTTP 处理器
// 负责处理行情查询相关的 HTTP 请求
type MarketDataHandler struct {
	quotes *application.QuoteService
}

// 创建 HTTP 处理器实例
func NewMarketDataHandler(quotes *application.QuoteService) *MarketDataHandler {
	return &MarketDataHandler{quotes: quotes}
}

// 注册路由
func (h *MarketDataHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1")
	{
		api.GET("/quotes/:symbol", h.GetQuote)                // 实时报价
		api.GET("/quotes/:symbol/history", h.GetHistory)      // 历史行情
		api.GET("/movers", h.GetMovers)                       // 涨跌幅榜
		api.GET("/providers", h.GetProviders)                 // 数据源状态
		api.GET("/cache/stats", h.GetCacheStats)              // 缓存状态
	}
}

// GetQuote 获取实时报价
func (h *MarketDataHandler) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")
	if symbol == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "symbol is required")
		return
	}

	quote, err := h.quotes.GetQuote(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, domain.ErrProvidersExhausted) {
			response.ErrorWithStatus(c, http.StatusServiceUnavailable, "market data temporarily unavailable")
			return
		}
		logger.Error(c.Request.Context(), "failed to get quote", "symbol", symbol, "error", err)
		response.Error(c, err.Error())
		return
	}

	response.Success(c, quote)
}

// GetHistory 获取历史行情
func (h *MarketDataHandler) GetHistory(c *gin.Context) {
	symbol := c.Param("symbol")
	interval := domain.Interval(c.DefaultQuery("interval", string(domain.IntervalDaily)))
	size, err := strconv.Atoi(c.DefaultQuery("size", "30"))
	if err != nil || size <= 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "size must be a positive integer")
		return
	}

	candles, err := h.quotes.GetHistorical(c.Request.Context(), symbol, interval, size)
	if err != nil {
		if errors.Is(err, domain.ErrProvidersExhausted) {
			response.ErrorWithStatus(c, http.StatusServiceUnavailable, "market data temporarily unavailable")
			return
		}
		logger.Error(c.Request.Context(), "failed to get history", "symbol", symbol, "error", err)
		response.Error(c, err.Error())
		return
	}

	response.Success(c, gin.H{"symbol": symbol, "interval": interval, "candles": candles})
}

// GetMovers 获取涨跌幅榜
func (h *MarketDataHandler) GetMovers(c *gin.Context) {
	movers, err := h.quotes.GetMovers(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrProvidersExhausted) {
			response.ErrorWithStatus(c, http.StatusServiceUnavailable, "market data temporarily unavailable")
			return
		}
		logger.Error(c.Request.Context(), "failed to get movers", "error", err)
		response.Error(c, err.Error())
		return
	}

	response.Success(c, movers)
}

// GetProviders 获取数据源状态
func (h *MarketDataHandler) GetProviders(c *gin.Context) {
	response.Success(c, h.quotes.ProviderStatus())
}

// GetCacheStats 获取缓存状态
func (h *MarketDataHandler) GetCacheStats(c *gin.Context) {
	response.Success(c, h.quotes.CacheStats(c.Request.Context()))
}
