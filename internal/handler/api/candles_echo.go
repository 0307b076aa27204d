package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	models "QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/service/ratelimit"
	"QuantData/internal/usecase"
	"QuantData/pkg/cache"
	xhttp "QuantData/pkg/http"
	xlogger "QuantData/pkg/logger"
	"QuantData/pkg/queue"
	"QuantData/pkg/util"

	"github.com/labstack/echo/v4"
)

// HealthChecker is a backend probed by /healthz.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// JobQueue enqueues jobs and reports their state.
type JobQueue interface {
	queue.Publisher
	queue.StatusReader
}

// CandlesEchoHandler serves the read API and job submission.
type CandlesEchoHandler struct {
	logger    *xlogger.Logger
	candles   *usecase.CandlesUseCase
	store     drepo.CandleStore
	manifests drepo.ManifestStore
	onepager  *usecase.OnePager

	cache    cache.Service
	cacheTTL time.Duration
	jobs     JobQueue
	updater  *usecase.Updater
	limiter  *ratelimit.Limiter
	backend  HealthChecker
}

type HandlerOption func(*CandlesEchoHandler)

// WithCache caches manifests and the one-pager for ttl.
func WithCache(c cache.Service, ttl time.Duration) HandlerOption {
	return func(h *CandlesEchoHandler) {
		h.cache = c
		if ttl > 0 {
			h.cacheTTL = ttl
		}
	}
}

// WithJobQueue makes job submission asynchronous.
func WithJobQueue(q JobQueue) HandlerOption {
	return func(h *CandlesEchoHandler) { h.jobs = q }
}

// WithInlineUpdater runs update jobs inside the request when no queue is set.
func WithInlineUpdater(u *usecase.Updater) HandlerOption {
	return func(h *CandlesEchoHandler) { h.updater = u }
}

// WithJobLimiter throttles job submission per client IP.
func WithJobLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *CandlesEchoHandler) { h.limiter = l }
}

// WithBackendHealth adds a backend to /healthz.
func WithBackendHealth(b HealthChecker) HandlerOption {
	return func(h *CandlesEchoHandler) { h.backend = b }
}

func NewCandlesEchoHandler(
	logger *xlogger.Logger,
	candles *usecase.CandlesUseCase,
	store drepo.CandleStore,
	manifests drepo.ManifestStore,
	onepager *usecase.OnePager,
	opts ...HandlerOption,
) *CandlesEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &CandlesEchoHandler{
		logger:    logger,
		candles:   candles,
		store:     store,
		manifests: manifests,
		onepager:  onepager,
		cacheTTL:  time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *CandlesEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/symbols", h.Symbols)
	g.GET("/candles", h.Candles)
	g.GET("/manifests/:base/:tf", h.Manifest)
	g.GET("/onepager", h.OnePager)
	g.POST("/jobs/update", h.SubmitUpdate)
	g.GET("/jobs/:id", h.JobStatus)
}

func (h *CandlesEchoHandler) Health(c echo.Context) error {
	status := map[string]string{"data_root": "ok"}
	healthy := true
	if _, err := os.Stat(h.store.Root()); err != nil {
		status["data_root"] = err.Error()
		healthy = false
	}
	if h.backend != nil {
		status["backend"] = "ok"
		if err := h.backend.Health(c.Request().Context()); err != nil {
			status["backend"] = err.Error()
			healthy = false
		}
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

type symbolInfo struct {
	Base       string   `json:"base"`
	Symbol     string   `json:"symbol"`
	Timeframes []string `json:"timeframes"`
}

func (h *CandlesEchoHandler) Symbols(c echo.Context) error {
	bases, err := h.store.Bases()
	if err != nil {
		h.logger.Error("list symbols", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	out := make([]symbolInfo, 0, len(bases))
	for _, base := range bases {
		tfs, err := h.store.Timeframes(base)
		if err != nil {
			h.logger.Error("list timeframes", xlogger.String("base", base), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		info := symbolInfo{Base: base, Symbol: base + "/" + models.DefaultQuote, Timeframes: make([]string, 0, len(tfs))}
		for _, tf := range tfs {
			info.Timeframes = append(info.Timeframes, tf.String())
		}
		out = append(out, info)
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

func (h *CandlesEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, err := drepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InvalidTimeframeError("tf", err))
	}
	from, ok := parseBound(req.From)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid from %q", req.From))
	}
	to, ok := parseBound(req.To)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid to %q", req.To))
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must be <= to"))
	}

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		Timeframe: tf,
		From:      from,
		To:        to,
		Limit:     req.Limit,
	})
	if errors.Is(err, drepo.ErrNoData) {
		return xhttp.AppErrorResponse(c, xhttp.NoDataError("candles", req.Symbol, tf.String()))
	}
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func parseBound(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	return util.ParseTime(s)
}

func (h *CandlesEchoHandler) Manifest(c echo.Context) error {
	base := models.BaseOf(c.Param("base"))
	tf, err := drepo.ParseTimeframe(c.Param("tf"))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InvalidTimeframeError("tf", err))
	}
	ctx := c.Request().Context()
	key := cache.ManifestKey(base, tf.String())

	if h.cache != nil {
		var m models.SymbolManifest
		if err := h.cache.Get(ctx, key, &m); err == nil {
			return xhttp.SuccessResponse(c, &m)
		}
	}
	m, err := h.manifests.ReadSymbol(base, tf)
	if errors.Is(err, drepo.ErrNoData) {
		return xhttp.AppErrorResponse(c, xhttp.NoDataError("manifest", base, tf.String()))
	}
	if err != nil {
		h.logger.Error("read manifest", xlogger.String("base", base), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, m, h.cacheTTL); err != nil {
			h.logger.Warn("cache manifest", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, m)
}

func (h *CandlesEchoHandler) OnePager(c echo.Context) error {
	req := &models.OnePagerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	var doc string
	if h.cache != nil && !req.Refresh {
		if err := h.cache.Get(ctx, cache.OnePagerKey, &doc); err == nil {
			return xhttp.MarkdownResponse(c, doc)
		}
	}
	summaries, err := h.onepager.Gather(ctx)
	if err != nil {
		h.logger.Error("gather one-pager", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	doc = h.onepager.Render(summaries)
	if h.cache != nil {
		if err := h.cache.Set(ctx, cache.OnePagerKey, doc, h.cacheTTL); err != nil {
			h.logger.Warn("cache one-pager", xlogger.Error(err))
		}
	}
	return xhttp.MarkdownResponse(c, doc)
}

type jobAccepted struct {
	JobID string      `json:"job_id"`
	State queue.State `json:"state"`
}

func (h *CandlesEchoHandler) SubmitUpdate(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many job submissions, retry later", h.limiter.Interval()))
	}
	req := &models.UpdateJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, err := drepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InvalidTimeframeError("timeframe", err))
	}
	ctx := c.Request().Context()

	switch {
	case h.jobs != nil:
		id, err := h.jobs.PublishMessage(ctx, usecase.JobUpdateSymbols, req)
		if err != nil {
			h.logger.Error("enqueue update job", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		h.logger.Info("update job queued", xlogger.String("id", id), xlogger.Strings("symbols", req.Symbols))
		return xhttp.AcceptedResponse(c, jobAccepted{JobID: id, State: queue.StateQueued})
	case h.updater != nil:
		results, err := h.updater.UpdateToNow(ctx, req.Symbols, tf, usecase.UpdateOptions{
			DaysBack:   req.DaysBack,
			Overlap:    req.Overlap,
			IncludeNow: req.IncludeNow,
		})
		if err != nil {
			// per-symbol errors are carried in the results
			h.logger.Warn("inline update finished with errors", xlogger.Error(err))
		}
		return xhttp.SuccessResponse(c, results)
	default:
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("job execution is not configured"))
	}
}

func (h *CandlesEchoHandler) JobStatus(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("job %s not found, the job queue is disabled", c.Param("id")))
	}
	st, err := h.jobs.Status(c.Request().Context(), c.Param("id"))
	if errors.Is(err, queue.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("job %s not found", c.Param("id")))
	}
	if err != nil {
		h.logger.Error("job status", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, st)
}

var _ xhttp.Handler = (*CandlesEchoHandler)(nil)
