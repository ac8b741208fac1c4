package file

import (
	"github.com/gin-gonic/gin"
	"github.com/healthmate/core/internal/pkg/response"
)

// Handler exposes the upload-signing endpoint.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/files")
	g.GET("/signed-params", authMW, h.signedParams)
}

func (h *Handler) signedParams(c *gin.Context) {
	response.OK(c, h.svc.SignedUploadParams(c.Query("folder")))
}
