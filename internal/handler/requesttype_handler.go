package handler

import (
	"net/http"

	"assethub/internal/middleware"
	"assethub/internal/model"
	"assethub/internal/service"
	"assethub/pkg/pagination"
	"assethub/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequestTypeHandler struct {
	typeService service.RequestTypeService
}

func NewRequestTypeHandler(typeService service.RequestTypeService) *RequestTypeHandler {
	return &RequestTypeHandler{typeService: typeService}
}

func (h *RequestTypeHandler) RegisterRoutes(router *gin.RouterGroup) {
	types := router.Group("/api/request-types")
	{
		types.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff), h.ListRequestTypes)
		types.GET("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff), h.GetRequestType)
		types.POST("", middleware.RequireRole(model.RoleAdmin), h.CreateRequestType)
		types.PUT("/:id", middleware.RequireRole(model.RoleAdmin), h.UpdateRequestType)
		types.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteRequestType)
	}
}

// CreateRequestType registers a new request type
// @Summary      Create request type
// @Description  Creates a request type with its approval requirements. Code is generated when absent.
// @Tags         request-types
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRequestTypeDTO  true  "Request type payload"
// @Success      201      {object}  response.Response{data=service.RequestTypeResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/request-types [post]
func (h *RequestTypeHandler) CreateRequestType(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.CreateRequestTypeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.typeService.Create(c.Request.Context(), req, actorID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListRequestTypes returns registered request types
// @Summary      List request types
// @Tags         request-types
// @Produce      json
// @Security     BearerAuth
// @Param        all    query     bool  false  "Include inactive types"
// @Param        page   query     int   false  "Page number"
// @Param        limit  query     int   false  "Page size"
// @Success      200    {object}  response.Paginated{data=[]service.RequestTypeResponse}
// @Router       /api/request-types [get]
func (h *RequestTypeHandler) ListRequestTypes(c *gin.Context) {
	params := pagination.Parse(c)
	activeOnly := c.Query("all") != "true"

	types, total, err := h.typeService.List(c.Request.Context(), activeOnly, params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, types, total, params.Page, params.Limit))
}

// GetRequestType returns a single request type
// @Summary      Get request type
// @Tags         request-types
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request type ID"
// @Success      200  {object}  response.Response{data=service.RequestTypeResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/request-types/{id} [get]
func (h *RequestTypeHandler) GetRequestType(c *gin.Context) {
	result, err := h.typeService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UpdateRequestType updates name, description or active flag
// @Summary      Update request type
// @Tags         request-types
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Request type ID"
// @Param        payload  body      service.UpdateRequestTypeDTO  true  "Update payload"
// @Success      200      {object}  response.Response{data=service.RequestTypeResponse}
// @Failure      404      {object}  response.Response
// @Router       /api/request-types/{id} [put]
func (h *RequestTypeHandler) UpdateRequestType(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.UpdateRequestTypeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.typeService.Update(c.Request.Context(), c.Param("id"), req, actorID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// DeleteRequestType removes a request type that no request references
// @Summary      Delete request type
// @Tags         request-types
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request type ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/request-types/{id} [delete]
func (h *RequestTypeHandler) DeleteRequestType(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.typeService.Delete(c.Request.Context(), c.Param("id"), actorID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}
