package handler

import (
	"net/http"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/middleware"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/service"
	"github.com/haithamlamki/Abraj-Drilling-sub000/pkg/pagination"
	"github.com/haithamlamki/Abraj-Drilling-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

type RosterHandler struct {
	rosterService service.RosterService
}

func NewRosterHandler(rosterService service.RosterService) *RosterHandler {
	return &RosterHandler{rosterService: rosterService}
}

func (h *RosterHandler) RegisterRoutes(router *gin.RouterGroup) {
	roster := router.Group("/api/roster")
	{
		// Read queries are open to every workflow actor; UIs use them for
		// "who must act next" and "can I act now".
		roster.GET("/rigs/:rig", middleware.RequireRole(workflowActors...), h.ListAssignments)
		roster.GET("/rigs/:rig/roles/:role/approver", middleware.RequireRole(workflowActors...), h.EffectiveApprover)
		roster.GET("/rigs/:rig/delegations", middleware.RequireRole(workflowActors...), h.ListDelegations)

		// Mutations are admin-only.
		roster.POST("/assignments", middleware.RequireRole("admin"), h.AssignRole)
		roster.DELETE("/rigs/:rig/roles/:role", middleware.RequireRole("admin"), h.RevokeRole)
		roster.POST("/delegations", middleware.RequireRole("admin"), h.CreateDelegation)
		roster.DELETE("/delegations/:id", middleware.RequireRole("admin"), h.RevokeDelegation)
	}
}

// EffectiveApprover resolves who currently acts for a (rig, role) pair.
func (h *RosterHandler) EffectiveApprover(c *gin.Context) {
	rig, err := pagination.ParamInt(c, "rig")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid rig number"))
		return
	}

	principal, err := h.rosterService.EffectiveApprover(c.Request.Context(), rig, c.Param("role"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"principal_id": principal}))
}

func (h *RosterHandler) ListAssignments(c *gin.Context) {
	rig, err := pagination.ParamInt(c, "rig")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid rig number"))
		return
	}

	assignments, err := h.rosterService.ListAssignments(c.Request.Context(), rig)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignments))
}

func (h *RosterHandler) AssignRole(c *gin.Context) {
	var req service.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	assignment, err := h.rosterService.AssignRole(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, assignment))
}

func (h *RosterHandler) RevokeRole(c *gin.Context) {
	rig, err := pagination.ParamInt(c, "rig")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid rig number"))
		return
	}

	if err := h.rosterService.RevokeRole(c.Request.Context(), rig, c.Param("role")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, nil))
}

func (h *RosterHandler) ListDelegations(c *gin.Context) {
	rig, err := pagination.ParamInt(c, "rig")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid rig number"))
		return
	}

	delegations, err := h.rosterService.ListDelegations(c.Request.Context(), rig)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, delegations))
}

func (h *RosterHandler) CreateDelegation(c *gin.Context) {
	var req service.CreateDelegationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	delegation, err := h.rosterService.CreateDelegation(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, delegation))
}

func (h *RosterHandler) RevokeDelegation(c *gin.Context) {
	if err := h.rosterService.RevokeDelegation(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, nil))
}
