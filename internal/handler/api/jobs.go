package api

import (
	"net/http"
	"time"

	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"
	"SignalFuse/internal/usecase"
	xhttp "SignalFuse/pkg/http"
	"SignalFuse/pkg/logger"
	"SignalFuse/pkg/util"

	"github.com/labstack/echo/v4"
)

// JobsHandler exposes on-demand job triggers and the events read API.
type JobsHandler struct {
	streamer *usecase.MarketStreamer
	fusion   *usecase.FusionEngine
	events   drepo.EventStore
	log      *logger.Logger
}

// NewJobsHandler creates the API handler.
func NewJobsHandler(
	streamer *usecase.MarketStreamer,
	fusion *usecase.FusionEngine,
	events drepo.EventStore,
	log *logger.Logger,
) *JobsHandler {
	return &JobsHandler{
		streamer: streamer,
		fusion:   fusion,
		events:   events,
		log:      log,
	}
}

// RegisterRoutes registers all API routes.
func (h *JobsHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/market-streamer/run", h.RunStreamer)
	e.POST("/fusion-engine/run", h.RunFusion)
	e.GET("/api/events", h.QueryEvents)
	e.GET("/healthz", h.Health)
}

// RunStreamer triggers one collector+detector cycle. A cycle-fatal failure
// (watch-list unreadable) is a 500 with the error in the job-result shape.
func (h *JobsHandler) RunStreamer(c echo.Context) error {
	result, err := h.streamer.Run(c.Request().Context(), "api")
	if err != nil {
		h.log.Error("streamer run failed", logger.Error(err))
		return c.JSON(http.StatusInternalServerError, &models.StreamerResult{
			Errors: []string{err.Error()},
		})
	}
	return c.JSON(http.StatusOK, result)
}

// RunFusion triggers one fusion cycle. The cycle reports its own outcome, so
// the response is always 200 with success reflected in the body.
func (h *JobsHandler) RunFusion(c echo.Context) error {
	result := h.fusion.Run(c.Request().Context(), "api")
	return c.JSON(http.StatusOK, result)
}

// QueryEvents reads stored events filtered by domain and time range.
func (h *JobsHandler) QueryEvents(c echo.Context) error {
	req := new(models.EventsQueryRequest)
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	now := time.Now()
	from := util.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := util.ParseTimeDefault(req.To, now)

	events, err := h.events.Query(c.Request().Context(), req.Domain, from, to, req.Limit)
	if err != nil {
		h.log.Error("events query failed", logger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to query events"))
	}
	if events == nil {
		events = []*models.DomainEvent{}
	}
	return xhttp.ListResponse(c, events, int64(len(events)))
}

// Health reports event-store reachability.
func (h *JobsHandler) Health(c echo.Context) error {
	if err := h.events.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
