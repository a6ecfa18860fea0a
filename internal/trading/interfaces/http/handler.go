package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/trading/application"
	"github.com/wyfcoding/papertrading/internal/trading/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/response"
)

// TradingHandler HTTP 处理器
// 负责处理下单、撤改与订单/持仓查询的 HTTP 请求。
// 用户身份由上游网关认证后以 user_id 传入，本层不做认证。
type TradingHandler struct {
	trading *application.TradingService
	monitor *application.Monitor
}

// 创建 HTTP 处理器实例
func NewTradingHandler(trading *application.TradingService, monitor *application.Monitor) *TradingHandler {
	return &TradingHandler{trading: trading, monitor: monitor}
}

// 注册路由
func (h *TradingHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1")
	{
		api.POST("/orders", h.PlaceOrder)          // 下单
		api.DELETE("/orders/:id", h.CancelOrder)   // 取消订单
		api.PATCH("/orders/:id", h.ModifyOrder)    // 修改订单
		api.GET("/orders/:id", h.GetOrder)         // 订单详情
		api.GET("/orders", h.ListOrders)           // 订单列表
		api.GET("/positions", h.ListPositions)     // 持仓列表
		api.POST("/monitor/run", h.RunMonitorCycle) // 手动触发一轮挂单评估
	}
}

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	UserID     string          `json:"user_id" binding:"required"`
	Symbol     string          `json:"symbol" binding:"required"`
	Side       string          `json:"side" binding:"required"`
	Type       string          `json:"type" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	StopPrice  decimal.Decimal `json:"stop_price"`
}

// PlaceOrder 下单
func (h *TradingHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}

	cmd := application.PlaceOrderCommand{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Side:       domain.OrderSide(req.Side),
		Type:       domain.OrderType(req.Type),
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
	}

	result, err := h.trading.PlaceOrder(c.Request.Context(), cmd)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			response.ErrorWithStatus(c, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error(c.Request.Context(), "failed to place order", "error", err)
		response.Error(c, err.Error())
		return
	}

	response.Success(c, result)
}

// CancelOrderRequest 取消订单请求
type CancelOrderRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CancelOrder 取消订单
func (h *TradingHandler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.trading.CancelOrder(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		h.writeOrderError(c, err)
		return
	}

	response.Success(c, result)
}

// ModifyOrderRequest 修改订单请求，零值字段表示保持不变
type ModifyOrderRequest struct {
	UserID     string          `json:"user_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	StopPrice  decimal.Decimal `json:"stop_price"`
}

// ModifyOrder 修改订单
func (h *TradingHandler) ModifyOrder(c *gin.Context) {
	var req ModifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}

	cmd := application.ModifyOrderCommand{
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
	}
	result, err := h.trading.ModifyOrder(c.Request.Context(), c.Param("id"), req.UserID, cmd)
	if err != nil {
		h.writeOrderError(c, err)
		return
	}

	response.Success(c, result)
}

// GetOrder 获取订单详情
func (h *TradingHandler) GetOrder(c *gin.Context) {
	order, err := h.trading.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// ListOrders 获取用户订单列表
func (h *TradingHandler) ListOrders(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "user_id is required")
		return
	}
	status := domain.OrderStatus(c.Query("status"))

	orders, err := h.trading.ListOrders(c.Request.Context(), userID, status, 100, 0)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list orders", "user_id", userID, "error", err)
		response.Error(c, err.Error())
		return
	}
	response.Success(c, orders)
}

// ListPositions 获取用户持仓列表
func (h *TradingHandler) ListPositions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "user_id is required")
		return
	}

	positions, err := h.trading.ListPositions(c.Request.Context(), userID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list positions", "user_id", userID, "error", err)
		response.Error(c, err.Error())
		return
	}
	response.Success(c, positions)
}

// RunMonitorCycle 手动触发一轮挂单评估，常规触发由调度器负责
func (h *TradingHandler) RunMonitorCycle(c *gin.Context) {
	summary, err := h.monitor.RunCycle(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "monitor cycle failed", "error", err)
		response.Error(c, err.Error())
		return
	}
	if summary == nil {
		response.Success(c, gin.H{"skipped": true})
		return
	}
	response.Success(c, summary)
}

func (h *TradingHandler) writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrOrderNotPending), errors.Is(err, domain.ErrInvalidOrder):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error())
	default:
		logger.Error(c.Request.Context(), "order operation failed", "error", err)
		response.Error(c, err.Error())
	}
}
