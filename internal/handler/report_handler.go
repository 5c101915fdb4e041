package handler

import (
	"context"
	"net/http"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/middleware"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/repository"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/service"
	"github.com/haithamlamki/Abraj-Drilling-sub000/pkg/pagination"
	"github.com/haithamlamki/Abraj-Drilling-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

var workflowActors = []string{"admin", model.RoleToolPusher, model.RoleDS, model.RoleOSE, model.RolePME}

type ReportHandler struct {
	workflowService service.WorkflowService
}

func NewReportHandler(workflowService service.WorkflowService) *ReportHandler {
	return &ReportHandler{workflowService: workflowService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/api/reports", middleware.RequireRole(workflowActors...))
	{
		reports.POST("", h.CreateReport)
		reports.GET("", h.ListReports)
		reports.GET("/:id", h.GetReport)
		reports.GET("/:id/audit", h.AuditTrail)
		reports.POST("/:id/initiate", h.Initiate)
		reports.POST("/:id/approve", h.Approve)
		reports.POST("/:id/reject", h.Reject)
		reports.POST("/:id/request-changes", h.RequestChanges)
	}
}

// CreateReport creates a draft NPT report; the workflow starts on initiate.
// @Summary      Create NPT report draft
// @Tags         reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateReportRequest  true  "Report fields"
// @Success      201      {object}  response.Response{data=model.NptReport}
// @Failure      400      {object}  response.Response
// @Router       /api/reports [post]
func (h *ReportHandler) CreateReport(c *gin.Context) {
	var req service.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	report, err := h.workflowService.CreateReport(c.Request.Context(), req, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, report))
}

func (h *ReportHandler) ListReports(c *gin.Context) {
	params := pagination.Parse(c)
	filter := repository.ReportFilter{
		WorkflowStatus: c.Query("status"),
		Category:       c.Query("category"),
	}
	if rig, err := pagination.QueryInt(c, "rig"); err == nil {
		filter.RigNumber = rig
	}

	reports, total, err := h.workflowService.ListReports(c.Request.Context(), filter, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, reports, total, params.Page, params.Limit))
}

func (h *ReportHandler) GetReport(c *gin.Context) {
	report, err := h.workflowService.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// AuditTrail returns the ordered approval records of one report.
func (h *ReportHandler) AuditTrail(c *gin.Context) {
	records, err := h.workflowService.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, records))
}

// Initiate starts the approval workflow on a draft report.
// @Summary      Initiate report workflow
// @Tags         reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Report ID"
// @Param        payload  body      service.ActionRequest  false "Optional comment"
// @Success      200      {object}  response.Response{data=model.NptReport}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/reports/{id}/initiate [post]
func (h *ReportHandler) Initiate(c *gin.Context) {
	h.action(c, h.workflowService.Initiate)
}

func (h *ReportHandler) Approve(c *gin.Context) {
	h.action(c, h.workflowService.Approve)
}

func (h *ReportHandler) Reject(c *gin.Context) {
	h.action(c, h.workflowService.Reject)
}

func (h *ReportHandler) RequestChanges(c *gin.Context) {
	h.action(c, h.workflowService.RequestChanges)
}

func (h *ReportHandler) action(c *gin.Context, run func(ctx context.Context, reportID, callerID string, req service.ActionRequest) (*model.NptReport, error)) {
	var req service.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Empty body is fine, comment and patch are optional at this layer.
		req = service.ActionRequest{}
	}

	report, err := run(c.Request.Context(), c.Param("id"), callerID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}
