package handler

import (
	"net/http"

	"assethub/internal/middleware"
	"assethub/internal/repository"
	"assethub/internal/service"
	"assethub/pkg/pagination"
	"assethub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AssetHandler struct {
	assetService service.AssetService
}

func NewAssetHandler(assetService service.AssetService) *AssetHandler {
	return &AssetHandler{assetService: assetService}
}

func (h *AssetHandler) RegisterRoutes(router *gin.RouterGroup) {
	assets := router.Group("/api/assets")
	{
		assets.GET("", middleware.RequirePermission("assets.read"), h.ListAssets)
		assets.GET("/:id", middleware.RequirePermission("assets.read"), h.GetAsset)
		assets.POST("", middleware.RequirePermission("assets.write"), h.CreateAsset)
		assets.PUT("/:id", middleware.RequirePermission("assets.write"), h.UpdateAsset)
		assets.DELETE("/:id", middleware.RequirePermission("assets.delete"), h.DeleteAsset)
		assets.GET("/:id/maintenance", middleware.RequirePermission("assets.read"), h.ListMaintenance)
		assets.POST("/:id/maintenance", middleware.RequirePermission("assets.write"), h.RecordMaintenance)
	}
}

// CreateAsset registers a new asset
// @Summary      Create asset
// @Tags         assets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateAssetDTO  true  "Asset payload"
// @Success      201      {object}  response.Response{data=service.AssetResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/assets [post]
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.CreateAssetDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.assetService.Create(c.Request.Context(), req, actorID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListAssets returns assets filtered by status, category, department or holder
// @Summary      List assets
// @Tags         assets
// @Produce      json
// @Security     BearerAuth
// @Param        status         query     string  false  "Filter by status"
// @Param        category       query     string  false  "Filter by category"
// @Param        department_id  query     string  false  "Filter by department"
// @Param        page           query     int     false  "Page number"
// @Param        limit          query     int     false  "Page size"
// @Success      200            {object}  response.Paginated{data=[]service.AssetResponse}
// @Router       /api/assets [get]
func (h *AssetHandler) ListAssets(c *gin.Context) {
	params := pagination.Parse(c)

	filter := repository.AssetFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Page:     params.Page,
		Limit:    params.Limit,
	}
	if dept := c.Query("department_id"); dept != "" {
		if deptID, err := uuid.Parse(dept); err == nil {
			filter.DepartmentID = &deptID
		}
	}
	if holder := c.Query("assigned_to"); holder != "" {
		if holderID, err := uuid.Parse(holder); err == nil {
			filter.AssignedToID = &holderID
		}
	}

	assets, total, err := h.assetService.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, assets, total, params.Page, params.Limit))
}

// GetAsset returns a single asset by UUID or AST code
// @Summary      Get asset
// @Tags         assets
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Asset ID or AST code"
// @Success      200  {object}  response.Response{data=service.AssetResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/assets/{id} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	result, err := h.assetService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UpdateAsset updates mutable asset fields
// @Summary      Update asset
// @Tags         assets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Asset ID or AST code"
// @Param        payload  body      service.UpdateAssetDTO  true  "Update payload"
// @Success      200      {object}  response.Response{data=service.AssetResponse}
// @Failure      404      {object}  response.Response
// @Router       /api/assets/{id} [put]
func (h *AssetHandler) UpdateAsset(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.UpdateAssetDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.assetService.Update(c.Request.Context(), c.Param("id"), req, actorID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// DeleteAsset soft-deletes an unassigned asset
// @Summary      Delete asset
// @Tags         assets
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Asset ID or AST code"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/assets/{id} [delete]
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.assetService.Delete(c.Request.Context(), c.Param("id"), actorID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

// RecordMaintenance appends a maintenance record to an asset's history
// @Summary      Record maintenance
// @Tags         assets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Asset ID or AST code"
// @Param        payload  body      service.RecordMaintenanceDTO  true  "Maintenance payload"
// @Success      201      {object}  response.Response{data=service.MaintenanceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/assets/{id}/maintenance [post]
func (h *AssetHandler) RecordMaintenance(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.RecordMaintenanceDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.assetService.RecordMaintenance(c.Request.Context(), c.Param("id"), req, actorID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListMaintenance returns an asset's maintenance history
// @Summary      List maintenance history
// @Tags         assets
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Asset ID or AST code"
// @Param        page   query     int     false  "Page number"
// @Param        limit  query     int     false  "Page size"
// @Success      200    {object}  response.Paginated{data=[]service.MaintenanceResponse}
// @Router       /api/assets/{id}/maintenance [get]
func (h *AssetHandler) ListMaintenance(c *gin.Context) {
	params := pagination.Parse(c)

	records, total, err := h.assetService.ListMaintenance(c.Request.Context(), c.Param("id"), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, records, total, params.Page, params.Limit))
}
