package vitals

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/healthmate/core/internal/middleware"
	"github.com/healthmate/core/internal/modules/gemini"
	"github.com/healthmate/core/internal/pkg/pagination"
	"github.com/healthmate/core/internal/pkg/response"
)

// Handler exposes the vitals endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/vitals", authMW)
	g.POST("", h.add)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/analyze", h.analyze)
}

func (h *Handler) add(c *gin.Context) {
	var dto AddVitalDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	analyze := dto.Analyze != nil && *dto.Analyze
	out, err := h.svc.Add(c.Request.Context(), middleware.CurrentUserID(c), dto, analyze)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Created(c, out)
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{Type: c.Query("type")}
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
	response.OK(c, gin.H{"message": "Vital deleted"})
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

func (h *Handler) renderError(c *gin.Context, err error) {
	var exhausted *gemini.ExhaustedError
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "Vital not found")
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
