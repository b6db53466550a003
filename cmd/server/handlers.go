package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"market-data-gateway/internal/config"
	"market-data-gateway/internal/dto"
	"market-data-gateway/internal/service"
)

const requestTimeout = 15 * time.Second

// Server holds the HTTP surface and its dependencies.
type Server struct {
	router  *gin.Engine
	service *service.Service
	cfg     *config.Config
	log     *logrus.Entry
	metrics http.Handler
	started time.Time
}

func newServer(svc *service.Service, cfg *config.Config, metricsHandler http.Handler, log *logrus.Entry) *Server {
	s := &Server{
		router:  gin.New(),
		service: svc,
		cfg:     cfg,
		log:     log,
		metrics: metricsHandler,
		started: time.Now(),
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	s.router.Use(cors.New(corsCfg))

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics))

	api := s.router.Group("/api/v1")
	{
		api.GET("/quotes/:symbol", s.handleQuote)
		api.GET("/quotes", s.handleQuotes)
		api.GET("/history/:symbol", s.handleHistory)
		api.GET("/fundamentals/:symbol", s.handleFundamentals)
		api.GET("/profile/:symbol", s.handleProfile)
		api.GET("/search", s.handleSearch)

		api.GET("/providers/health", s.handleProvidersHealth)
		api.GET("/providers/metrics", s.handleProviderMetrics)

		api.POST("/admin/warm", s.handleWarm)
	}
}

func (s *Server) abortError(c *gin.Context, err error) {
	status := dto.StatusForError(err)
	payload := dto.BuildErrorResponse(err)
	if status == http.StatusTooManyRequests {
		if info, ok := payload["error"].(*dto.ErrorInfo); ok && info.RetryAfter > 0 {
			c.Header("Retry-After", strconv.FormatInt(info.RetryAfter, 10))
		}
	}
	c.JSON(status, payload)
}

func (s *Server) handleQuote(c *gin.Context) {
	req := dto.QuoteRequest{Symbol: c.Param("symbol")}
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.BuildValidationError(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	quote, err := s.service.Quote(ctx, req.Symbol)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.QuoteResponse{Success: true, Data: quote})
}

func (s *Server) handleQuotes(c *gin.Context) {
	req := dto.QuotesRequest{Symbols: strings.Split(c.Query("symbols"), ",")}
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.BuildValidationError(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	quotes, err := s.service.Quotes(ctx, req.Symbols)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BuildQuotesResponse(req.Symbols, quotes))
}

func (s *Server) handleHistory(c *gin.Context) {
	req := dto.HistoryRequest{
		Symbol:   c.Param("symbol"),
		Interval: c.Query("interval"),
		Start:    c.Query("start"),
		End:      c.Query("end"),
	}
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.BuildValidationError(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	start, end := req.Range()
	bars, err := s.service.History(ctx, req.Symbol, start, end, req.GetInterval())
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.HistoryResponse{
		Success: true,
		Data: &dto.HistoryData{
			Symbol:   req.Symbol,
			Interval: req.Interval,
			Start:    req.Start,
			End:      req.End,
			Bars:     bars,
			Count:    len(bars),
		},
	})
}

func (s *Server) handleFundamentals(c *gin.Context) {
	req := dto.QuoteRequest{Symbol: c.Param("symbol")}
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.BuildValidationError(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	fundamentals, err := s.service.Fundamentals(ctx, req.Symbol)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FundamentalsResponse{Success: true, Data: fundamentals})
}

func (s *Server) handleProfile(c *gin.Context) {
	req := dto.QuoteRequest{Symbol: c.Param("symbol")}
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.BuildValidationError(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	profile, err := s.service.Profile(ctx, req.Symbol)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProfileResponse{Success: true, Data: profile})
}

func (s *Server) handleSearch(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	req := dto.SearchRequest{Query: c.Query("q"), Limit: limit}
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.BuildValidationError(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	hits, err := s.service.Search(ctx, req.Query, req.Limit)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SearchResponse{
		Success: true,
		Data:    &dto.SearchData{Query: req.Query, Hits: hits, Count: len(hits)},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	healths := s.service.Health()
	status := "healthy"
	for _, h := range healths {
		if !h.IsHealthy {
			status = "degraded"
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"service":   "market-data-gateway",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleProvidersHealth(c *gin.Context) {
	c.JSON(http.StatusOK, dto.BuildProvidersResponse(s.service.Health(), s.service.RateLimits(), nil))
}

func (s *Server) handleProviderMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, dto.BuildProvidersResponse(nil, nil, s.service.Costs()))
}

func (s *Server) handleWarm(c *gin.Context) {
	var req dto.WarmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.BuildValidationError(err))
			return
		}
	}
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.BuildValidationError(err))
		return
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = s.cfg.Warming.Symbols
	}

	var pace *rate.Limiter
	if s.cfg.Warming.RequestsPerSec > 0 {
		pace = rate.NewLimiter(rate.Limit(s.cfg.Warming.RequestsPerSec), 1)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	result := s.service.Warm(ctx, symbols, s.cfg.Warming.Concurrency, pace)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}
