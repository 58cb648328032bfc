// @title           Footprint Market Data API
// @version         1.0
// @description     Order-flow footprint aggregation over exchange market data

// @host      localhost:8080
// @BasePath  /api/v1

package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	appfootprint "main/internal/application/service/footprint"
	appsymbols "main/internal/application/service/symbols"
	domain "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
)

const basePath = "/api/v1"

var (
	errMissingSymbol   = errors.New("symbol query param required")
	errMissingInterval = errors.New("interval query param required")
	errMissingRange    = errors.New("from/to query params required")
)

type Handler struct {
	router     *gin.Engine
	repo       interfaces.FootprintRepository
	provider   interfaces.MarketDataProvider
	aggregator *appfootprint.Service
	symbols    *appsymbols.Service
	cache      *redis.Client
	cacheTTL   time.Duration
}

func NewHandler(
	repo interfaces.FootprintRepository,
	provider interfaces.MarketDataProvider,
	aggregator *appfootprint.Service,
	symbols *appsymbols.Service,
	cache *redis.Client,
	cacheTTL time.Duration,
) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:     router,
		repo:       repo,
		provider:   provider,
		aggregator: aggregator,
		symbols:    symbols,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := h.router.Group(basePath)
	if h.cache != nil {
		api.Use(h.cacheMiddleware())
	}
	{
		footprint := api.Group("/footprint")
		{
			footprint.GET("/candles", h.getFootprintCandles)
			footprint.GET("/htf", h.getHTFCandles)
		}
		api.GET("/klines", h.getKlines)
		api.GET("/trades", h.getTrades)
		api.GET("/symbols", h.listSymbols)
		api.GET("/symbols/:symbol", h.getSymbol)
	}
}

// getFootprintCandles returns stored footprint candles
// @Summary      Get footprint candles
// @Description  Stored footprint candles for a symbol/interval, by time range or last N
// @Tags         footprint
// @Produce      json
// @Param        symbol    query     string  true   "Symbol"
// @Param        interval  query     string  true   "Interval token (1m, 1h, D)"
// @Param        from      query     int     false  "Range start, unix seconds"
// @Param        to        query     int     false  "Range end, unix seconds"
// @Param        limit     query     int     false  "Last N candles (used when no range given)"
// @Success      200       {array}   domain.FootprintCandle
// @Failure      400       {object}  map[string]string
// @Failure      500       {object}  map[string]string
// @Router       /footprint/candles [get]
func (h *Handler) getFootprintCandles(c *gin.Context) {
	symbol, interval, err := requireSymbolInterval(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	candles, err := h.loadFootprints(c, symbol, interval)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, candles)
}

// getHTFCandles returns higher-timeframe candles merged from stored footprints
// @Summary      Get HTF candles
// @Description  Merges stored footprint candles into higher-timeframe windows with volume profiles
// @Tags         footprint
// @Produce      json
// @Param        symbol    query     string  true   "Symbol"
// @Param        interval  query     string  true   "Base interval token"
// @Param        tf        query     int     true   "Target window in minutes"
// @Param        from      query     int     false  "Range start, unix seconds"
// @Param        to        query     int     false  "Range end, unix seconds"
// @Param        limit     query     int     false  "Last N base candles (used when no range given)"
// @Success      200       {array}   domain.HTFCandle
// @Failure      400       {object}  map[string]string
// @Failure      500       {object}  map[string]string
// @Router       /footprint/htf [get]
func (h *Handler) getHTFCandles(c *gin.Context) {
	symbol, interval, err := requireSymbolInterval(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	minutes, err := parseIntQuery(c, "tf")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	base, err := h.loadFootprints(c, symbol, interval)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}

	htf, err := h.aggregator.AggregateHTF(base, minutes)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, htf)
}

// getKlines proxies OHLCV history from the upstream provider
// @Summary      Get klines
// @Description  OHLCV history fetched from the upstream exchange
// @Tags         marketdata
// @Produce      json
// @Param        symbol    query     string  true   "Symbol"
// @Param        interval  query     string  true   "Interval token"
// @Param        from      query     int     false  "Range start, unix seconds"
// @Param        to        query     int     false  "Range end, unix seconds"
// @Param        limit     query     int     false  "Max buckets"
// @Success      200       {array}   domain.OHLCV
// @Failure      400       {object}  map[string]string
// @Failure      502       {object}  map[string]string
// @Router       /klines [get]
func (h *Handler) getKlines(c *gin.Context) {
	symbol, interval, err := requireSymbolInterval(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	from, to := optionalTimeRange(c)
	limit, _ := parseIntQuery(c, "limit")

	candles, err := h.provider.GetKlines(c.Request.Context(), symbol, interval, from, to, limit)
	if err != nil {
		writeError(c, http.StatusBadGateway, err)
		return
	}
	if candles == nil {
		candles = []domain.OHLCV{}
	}
	c.JSON(http.StatusOK, candles)
}

// getTrades returns stored raw trades
// @Summary      Get trades
// @Description  Stored raw trades for a symbol within a time range
// @Tags         marketdata
// @Produce      json
// @Param        symbol  query     string  true  "Symbol"
// @Param        from    query     int     true  "Range start, unix seconds"
// @Param        to      query     int     true  "Range end, unix seconds"
// @Success      200     {array}   domain.Trade
// @Failure      400     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /trades [get]
func (h *Handler) getTrades(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		writeError(c, http.StatusBadRequest, errMissingSymbol)
		return
	}
	from, to, err := requireTimeRange(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	trades, err := h.repo.GetTradesBetween(c.Request.Context(), symbol, from, to)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	c.JSON(http.StatusOK, trades)
}

// listSymbols returns the synced symbol reference
// @Summary      List symbols
// @Tags         symbols
// @Produce      json
// @Success      200  {array}   symbols.Symbol
// @Failure      500  {object}  map[string]string
// @Router       /symbols [get]
func (h *Handler) listSymbols(c *gin.Context) {
	items, err := h.symbols.List(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// getSymbol returns one symbol record
// @Summary      Get symbol
// @Tags         symbols
// @Produce      json
// @Param        symbol  path      string  true  "Symbol"
// @Success      200     {object}  symbols.Symbol
// @Failure      404     {object}  map[string]string
// @Router       /symbols/{symbol} [get]
func (h *Handler) getSymbol(c *gin.Context) {
	record, err := h.symbols.Get(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		writeError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// loadFootprints picks the range query when from/to are present, otherwise
// the last N candles.
func (h *Handler) loadFootprints(c *gin.Context, symbol, interval string) ([]domain.FootprintCandle, error) {
	ctx := c.Request.Context()
	if c.Query("from") != "" || c.Query("to") != "" {
		from, to, err := requireTimeRange(c)
		if err != nil {
			return nil, err
		}
		candles, err := h.repo.GetFootprintCandlesBetween(ctx, symbol, interval, from, to)
		if candles == nil {
			candles = []domain.FootprintCandle{}
		}
		return candles, err
	}

	limit, err := parseIntQuery(c, "limit")
	if err != nil || limit <= 0 {
		limit = 500
	}
	candles, err := h.repo.GetLastFootprintCandles(ctx, symbol, interval, limit)
	if candles == nil {
		candles = []domain.FootprintCandle{}
	}
	return candles, err
}

// Cache middleware

func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		if cached, err := h.cache.Get(ctx, key).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			_ = h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL).Err()
		}
	}
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}

func (h *Handler) cacheKey(c *gin.Context) string {
	return fmt.Sprintf("cache:%s:%s?%s", c.Request.Method, c.FullPath(), c.Request.URL.RawQuery)
}

// Helpers

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func requireSymbolInterval(c *gin.Context) (string, string, error) {
	symbol := c.Query("symbol")
	if symbol == "" {
		return "", "", errMissingSymbol
	}
	interval := c.Query("interval")
	if interval == "" {
		return "", "", errMissingInterval
	}
	return symbol, interval, nil
}

func parseIntQuery(c *gin.Context, key string) (int, error) {
	value := c.Query(key)
	if value == "" {
		return 0, fmt.Errorf("%s query param required", key)
	}
	return strconv.Atoi(value)
}

func parseUnixQuery(c *gin.Context, key string) (time.Time, error) {
	value := c.Query(key)
	if value == "" {
		return time.Time{}, fmt.Errorf("%s query param required", key)
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Unix(seconds, 0).UTC(), nil
}

func requireTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	from, err := parseUnixQuery(c, "from")
	if err != nil {
		return time.Time{}, time.Time{}, errMissingRange
	}
	to, err := parseUnixQuery(c, "to")
	if err != nil {
		return time.Time{}, time.Time{}, errMissingRange
	}
	if from.After(to) {
		from, to = to, from
	}
	return from, to, nil
}

func optionalTimeRange(c *gin.Context) (time.Time, time.Time) {
	from, _ := parseUnixQuery(c, "from")
	to, _ := parseUnixQuery(c, "to")
	return from, to
}
