package stats

import (
	"github.com/gin-gonic/gin"
	"github.com/healthmate/core/internal/middleware"
	"github.com/healthmate/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/stats/quick", authMW, h.quick)
}

func (h *Handler) quick(c *gin.Context) {
	out, err := h.svc.Quick(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, out)
}
