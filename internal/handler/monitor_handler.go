package handler

import (
	"net/http"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/middleware"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/service"
	"github.com/haithamlamki/Abraj-Drilling-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

// MonitorHandler exposes the sweep entry points so an external scheduler
// can drive them; the in-process cron uses the service directly.
type MonitorHandler struct {
	monitorService service.MonitorService
}

func NewMonitorHandler(monitorService service.MonitorService) *MonitorHandler {
	return &MonitorHandler{monitorService: monitorService}
}

func (h *MonitorHandler) RegisterRoutes(router *gin.RouterGroup) {
	monitor := router.Group("/api/monitor", middleware.RequireRole("admin"))
	{
		monitor.POST("/sla-check", h.RunSlaCheck)
		monitor.POST("/stall-check", h.RunStallCheck)
	}
}

func (h *MonitorHandler) RunSlaCheck(c *gin.Context) {
	emitted, err := h.monitorService.RunSlaCheck(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"notifications_emitted": emitted}))
}

func (h *MonitorHandler) RunStallCheck(c *gin.Context) {
	emitted, err := h.monitorService.RunStallCheck(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"notifications_emitted": emitted}))
}
