package report

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/healthmate/core/internal/middleware"
	"github.com/healthmate/core/internal/modules/gemini"
	"github.com/healthmate/core/internal/pkg/pagination"
	"github.com/healthmate/core/internal/pkg/response"
	"github.com/healthmate/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

const analyzeTaskType = "report.analyze"

// Handler exposes the report endpoints.
type Handler struct {
	svc   *Service
	tasks *taskqueue.Service
	log   *zap.Logger
}

func NewHandler(svc *Service, tasks *taskqueue.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, tasks: tasks, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/reports")
	g.POST("", authMW, h.create)
	g.GET("", authMW, h.list)
	g.GET("/:id", authMW, h.get)
	g.DELETE("/:id", authMW, h.delete)
	g.POST("/:id/analyze", authMW, h.analyze)
	g.POST("/:id/analyze-async", authMW, h.analyzeAsync)
	g.GET("/tasks/:taskId", authMW, h.taskStatus)
	g.POST("/:id/feedback", authMW, h.feedback)
	g.POST("/:id/share", authMW, h.share)
	g.DELETE("/:id/share", authMW, h.unshare)

	// public share-link resolution
	rg.GET("/shared/reports/:token", h.getShared)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateReportDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	analyze := dto.Analyze == nil || *dto.Analyze
	out, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), dto, analyze)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Created(c, out)
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Type:   c.Query("type"),
		Tag:    c.Query("tag"),
		Search: c.Query("search"),
	}
	if t, ok := parseQueryDate(c.Query("startDate")); ok {
		q.StartDate = &t
	}
	if t, ok := parseQueryDate(c.Query("endDate")); ok {
		q.EndDate = &t
	}

	items, meta, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), q, pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, meta)
}

func (h *Handler) get(c *gin.Context) {
	out, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Report deleted"})
}

func (h *Handler) analyze(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	insight, err := h.svc.Analyze(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	out, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	out.Insight = insight
	response.OK(c, out)
}

// analyzeAsync queues the analysis as a background task, deduplicated per
// report, and returns the task handle immediately.
func (h *Handler) analyzeAsync(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	reportID := c.Param("id")

	// fail fast on unknown/foreign reports before queueing anything
	if _, err := h.svc.findOwned(c.Request.Context(), userID, reportID); err != nil {
		h.renderError(c, err)
		return
	}

	task, err := h.tasks.Enqueue(c.Request.Context(), analyzeTaskType,
		gin.H{"report_id": reportID}, reportID, userID)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	if task.Status == taskqueue.TaskPending {
		go h.runAnalyzeTask(task.ID, userID, reportID)
	}
	response.OK(c, gin.H{"task_id": task.ID, "status": task.Status})
}

func (h *Handler) runAnalyzeTask(taskID, userID, reportID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, nil, "")

	insight, err := h.svc.Analyze(ctx, userID, reportID)
	if err != nil {
		h.log.Warn("background analysis failed",
			zap.String("report_id", reportID), zap.Error(err))
		h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, err.Error())
		return
	}
	h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted,
		gin.H{"insight_id": insight.ID}, "")
}

func (h *Handler) taskStatus(c *gin.Context) {
	task, err := h.tasks.GetByID(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if task == nil {
		response.NotFoundMsg(c, "task not found")
		return
	}
	response.OK(c, task)
}

func (h *Handler) feedback(c *gin.Context) {
	var dto FeedbackDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.svc.Feedback(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), dto)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Feedback recorded"})
}

func (h *Handler) share(c *gin.Context) {
	// body is optional; ignore bind errors so a bare POST shares forever
	var dto ShareDTO
	_ = c.ShouldBindJSON(&dto)

	info, err := h.svc.Share(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), dto.ExpiresInHours)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, info)
}

func (h *Handler) unshare(c *gin.Context) {
	if err := h.svc.Unshare(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) getShared(c *gin.Context) {
	out, err := h.svc.GetShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) renderError(c *gin.Context, err error) {
	var exhausted *gemini.ExhaustedError
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "Report not found")
	case errors.Is(err, ErrNoInsight):
		response.BadRequest(c, "No insight to feedback")
	case errors.Is(err, gemini.ErrAPIKeyMissing):
		response.InternalError(c, err)
	case errors.As(err, &exhausted):
		response.BadGateway(c, "AI model unavailable for your API key. Set a supported model override in the server config and restart.")
	default:
		response.InternalError(c, err)
	}
}

func parseQueryDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
