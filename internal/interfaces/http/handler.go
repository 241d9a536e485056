package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"fundarb/internal/application/service"
	"fundarb/internal/application/usecase/monitor"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/storage"
)

// Executor 开平仓命令
type Executor interface {
	Open(ctx context.Context, req service.OpenRequest) (*service.ExecutionResult, error)
	Close(ctx context.Context, req service.CloseRequest) (*service.ExecutionResult, error)
}

// SignalEvaluator 信号查询
type SignalEvaluator interface {
	Evaluate(ctx context.Context, venueA, venueB, symbol string) (model.Signal, error)
}

// PositionFetcher 持仓查询
type PositionFetcher interface {
	FetchAll(ctx context.Context) ([]model.Position, error)
}

// BoardProvider 最近一轮看板
type BoardProvider interface {
	Last() *monitor.Board
}

// Deps 为空的依赖对应的路由返回 503
type Deps struct {
	Executor  Executor
	Signals   SignalEvaluator
	Positions PositionFetcher
	Board     BoardProvider
	History   storage.SignalReader
	Metrics   http.Handler
}

// Handler 命令与观测接口
type Handler struct {
	deps Deps
}

func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.Engine, token string) {
	router.GET("/sys/health", h.Health)
	if h.deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.deps.Metrics))
	}

	api := router.Group("/api/v1")
	api.Use(bearerAuth(token))
	{
		api.POST("/open", h.Open)
		api.POST("/close", h.Close)
		api.GET("/signal", h.Signal)
		api.GET("/signals", h.RecentSignals)
		api.GET("/positions", h.Positions)
		api.GET("/board", h.Board)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ts": time.Now().UnixMilli()})
}

type openBody struct {
	VenueA   string  `json:"venue_a" binding:"required"`
	VenueB   string  `json:"venue_b" binding:"required"`
	Symbol   string  `json:"symbol" binding:"required"`
	Margin   float64 `json:"margin"`
	Leverage int     `json:"leverage"`
}

type closeBody struct {
	VenueA string `json:"venue_a" binding:"required"`
	VenueB string `json:"venue_b" binding:"required"`
	Symbol string `json:"symbol" binding:"required"`
}

func (h *Handler) Open(c *gin.Context) {
	if h.deps.Executor == nil {
		unavailable(c, "execution")
		return
	}
	var body openBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	venueA, venueB, err := resolvePair(body.VenueA, body.VenueB)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	res, err := h.deps.Executor.Open(c.Request.Context(), service.OpenRequest{
		VenueA:       venueA,
		VenueB:       venueB,
		Symbol:       body.Symbol,
		MarginPerLeg: body.Margin,
		Leverage:     body.Leverage,
	})
	writeExecution(c, res, err)
}

func (h *Handler) Close(c *gin.Context) {
	if h.deps.Executor == nil {
		unavailable(c, "execution")
		return
	}
	var body closeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	venueA, venueB, err := resolvePair(body.VenueA, body.VenueB)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	res, err := h.deps.Executor.Close(c.Request.Context(), service.CloseRequest{
		VenueA: venueA,
		VenueB: venueB,
		Symbol: body.Symbol,
	})
	writeExecution(c, res, err)
}

func (h *Handler) Signal(c *gin.Context) {
	if h.deps.Signals == nil {
		unavailable(c, "signal")
		return
	}
	venueA, venueB, err := resolvePair(c.Query("venue_a"), c.Query("venue_b"))
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	symbol := c.Query("symbol")
	if symbol == "" {
		fail(c, http.StatusBadRequest, errors.New("symbol is required"))
		return
	}

	sig, err := h.deps.Signals.Evaluate(c.Request.Context(), venueA, venueB, symbol)
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sig})
}

func (h *Handler) RecentSignals(c *gin.Context) {
	if h.deps.History == nil {
		unavailable(c, "journal")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	sigs, err := h.deps.History.RecentSignals(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("read recent signals failed")
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sigs})
}

// Positions 部分交易所失败时仍返回其余结果，错误放在 errors 字段
func (h *Handler) Positions(c *gin.Context) {
	if h.deps.Positions == nil {
		unavailable(c, "positions")
		return
	}
	positions, err := h.deps.Positions.FetchAll(c.Request.Context())
	resp := gin.H{"data": positions}
	if err != nil {
		resp["errors"] = venueErrors(err)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Board(c *gin.Context) {
	if h.deps.Board == nil {
		unavailable(c, "board")
		return
	}
	board := h.deps.Board.Last()
	if board == nil {
		c.JSON(http.StatusOK, gin.H{"data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"ts":    board.At.UnixMilli(),
		"diffs": board.Diffs,
		"top":   board.Top,
	}})
}

// legView LegResult 的错误字段不参与序列化，这里展开为文本
type legView struct {
	service.LegResult
	Error         string `json:"error,omitempty"`
	LeverageError string `json:"leverage_error,omitempty"`
}

func writeExecution(c *gin.Context, res *service.ExecutionResult, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusOf(err)
	}
	body := gin.H{}
	if res != nil {
		legs := make([]legView, 0, len(res.Legs))
		for _, l := range res.Legs {
			v := legView{LegResult: l, Error: l.ErrText()}
			if l.LeverageErr != nil {
				v.LeverageError = l.LeverageErr.Error()
			}
			legs = append(legs, v)
		}
		body["data"] = gin.H{
			"id":          res.ID,
			"action":      res.Action,
			"symbol":      res.Symbol,
			"state":       res.State,
			"decision":    res.Decision,
			"legs":        legs,
			"transitions": res.Transitions,
			"actions":     res.Actions(),
		}
	}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrUnknownVenue):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOperationInFlight):
		return http.StatusConflict
	case errors.Is(err, service.ErrQuantityInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSignalUnavailable), errors.Is(err, service.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrPartialExecution), errors.Is(err, service.ErrGatewayRejected):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func venueErrors(err error) map[string]string {
	out := map[string]string{}
	var joined interface{ Unwrap() []error }
	errs := []error{err}
	if errors.As(err, &joined) {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		var ve *service.VenueError
		if errors.As(e, &ve) {
			out[ve.Venue] = ve.Err.Error()
			continue
		}
		out["_"] = e.Error()
	}
	return out
}

func resolvePair(a, b string) (string, string, error) {
	venueA, ok := model.ResolveVenue(a)
	if !ok {
		return "", "", errors.New("unknown venue: " + a)
	}
	venueB, ok := model.ResolveVenue(b)
	if !ok {
		return "", "", errors.New("unknown venue: " + b)
	}
	return venueA, venueB, nil
}

func fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func unavailable(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": what + " not enabled"})
}

func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if got != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
