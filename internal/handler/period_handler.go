package handler

import (
	"context"
	"net/http"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/middleware"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/service"
	"github.com/haithamlamki/Abraj-Drilling-sub000/pkg/pagination"
	"github.com/haithamlamki/Abraj-Drilling-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

type PeriodHandler struct {
	periodService service.PeriodService
}

func NewPeriodHandler(periodService service.PeriodService) *PeriodHandler {
	return &PeriodHandler{periodService: periodService}
}

func (h *PeriodHandler) RegisterRoutes(router *gin.RouterGroup) {
	periods := router.Group("/api/periods", middleware.RequireRole(workflowActors...))
	{
		periods.PUT("/:period/rigs/:rig/days", h.UpsertDaySlice)
		periods.GET("/:period/rigs/:rig", h.GetPeriod)
		periods.GET("/:period/rigs/:rig/days", h.ListDaySlices)
		periods.GET("/:period/rigs/:rig/history", h.History)
		periods.POST("/:period/rigs/:rig/submit", h.Submit)
		periods.POST("/:period/rigs/:rig/review", h.StartReview)
		periods.POST("/:period/rigs/:rig/approve", h.Approve)
		periods.POST("/:period/rigs/:rig/reject", h.Reject)
		periods.POST("/:period/rigs/:rig/resubmit", h.Resubmit)
	}
}

// UpsertDaySlice records one day's hours; the first write for a (period,
// rig) creates the period report in Draft and every write recomputes the
// aggregate totals.
func (h *PeriodHandler) UpsertDaySlice(c *gin.Context) {
	rig, err := pagination.ParamInt(c, "rig")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid rig number"))
		return
	}

	var req service.UpsertDaySliceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}
	req.PeriodKey = c.Param("period")
	req.RigNumber = rig

	period, err := h.periodService.UpsertDaySlice(c.Request.Context(), req, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, period))
}

func (h *PeriodHandler) GetPeriod(c *gin.Context) {
	h.query(c, func(ctx context.Context, period string, rig int) (interface{}, error) {
		return h.periodService.GetPeriod(ctx, period, rig)
	})
}

func (h *PeriodHandler) ListDaySlices(c *gin.Context) {
	h.query(c, func(ctx context.Context, period string, rig int) (interface{}, error) {
		return h.periodService.ListDaySlices(ctx, period, rig)
	})
}

// History returns the ordered stage events of one period report.
func (h *PeriodHandler) History(c *gin.Context) {
	h.query(c, func(ctx context.Context, period string, rig int) (interface{}, error) {
		return h.periodService.History(ctx, period, rig)
	})
}

func (h *PeriodHandler) Submit(c *gin.Context) {
	h.action(c, h.periodService.Submit)
}

func (h *PeriodHandler) StartReview(c *gin.Context) {
	h.action(c, h.periodService.StartReview)
}

func (h *PeriodHandler) Approve(c *gin.Context) {
	h.action(c, h.periodService.Approve)
}

func (h *PeriodHandler) Reject(c *gin.Context) {
	h.action(c, h.periodService.Reject)
}

func (h *PeriodHandler) Resubmit(c *gin.Context) {
	h.action(c, h.periodService.Resubmit)
}

func (h *PeriodHandler) action(c *gin.Context, run func(ctx context.Context, period string, rig int, callerID string, req service.PeriodActionRequest) (*model.PeriodReport, error)) {
	rig, err := pagination.ParamInt(c, "rig")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid rig number"))
		return
	}

	var req service.PeriodActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = service.PeriodActionRequest{}
	}

	period, err := run(c.Request.Context(), c.Param("period"), rig, callerID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, period))
}

func (h *PeriodHandler) query(c *gin.Context, run func(ctx context.Context, period string, rig int) (interface{}, error)) {
	rig, err := pagination.ParamInt(c, "rig")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid rig number"))
		return
	}

	data, err := run(c.Request.Context(), c.Param("period"), rig)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, data))
}
