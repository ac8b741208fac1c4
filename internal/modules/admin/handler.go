package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/healthmate/core/internal/pkg/cron"
	"github.com/healthmate/core/internal/pkg/pagination"
	"github.com/healthmate/core/internal/pkg/response"
	"github.com/healthmate/core/internal/pkg/taskqueue"
)

// Handler exposes the operator endpoints: background task inspection and
// manual cron control. All routes require the admin flag.
type Handler struct {
	tasks *taskqueue.Service
	sched *cron.Scheduler
}

func NewHandler(tasks *taskqueue.Service, sched *cron.Scheduler) *Handler {
	return &Handler{tasks: tasks, sched: sched}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminMW gin.HandlerFunc) {
	g := rg.Group("/admin", adminMW)
	g.GET("/tasks", h.listTasks)
	g.GET("/cron", h.listCron)
	g.POST("/cron/:name/run", h.runCron)
}

func (h *Handler) listTasks(c *gin.Context) {
	page := pagination.FromContext(c)

	var taskType *string
	if v := c.Query("type"); v != "" {
		taskType = &v
	}
	var status *taskqueue.TaskStatus
	if v := c.Query("status"); v != "" {
		s := taskqueue.TaskStatus(v)
		status = &s
	}

	tasks, total, err := h.tasks.List(c.Request.Context(), page.Page, page.Size, taskType, status)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, tasks, response.Pagination{
		Total:       total,
		CurrentPage: page.Page,
		TotalPage:   int((total + int64(page.Size) - 1) / int64(page.Size)),
		Size:        page.Size,
		HasNextPage: int64(page.Page*page.Size) < total,
	})
}

func (h *Handler) listCron(c *gin.Context) {
	response.OK(c, h.sched.List())
}

func (h *Handler) runCron(c *gin.Context) {
	if err := h.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	response.OK(c, gin.H{"message": "Job triggered"})
}
