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

type RequestHandler struct {
	workflowService service.WorkflowService
	userService     service.UserService
}

func NewRequestHandler(workflowService service.WorkflowService, userService service.UserService) *RequestHandler {
	return &RequestHandler{workflowService: workflowService, userService: userService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.POST("", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff), h.CreateRequest)
		requests.GET("", middleware.RequirePermission("requests.read"), h.ListRequests)
		requests.GET("/:id", middleware.RequirePermission("requests.read"), h.GetRequest)
		requests.POST("/:id/approve", middleware.RequirePermission("requests.approve"), h.ApproveRequest)
		requests.POST("/:id/reject", middleware.RequirePermission("requests.approve"), h.RejectRequest)
		requests.POST("/:id/cancel", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff), h.CancelRequest)
	}
}

type approvalDecisionDTO struct {
	Comments string `json:"comments"`
}

// CreateRequest submits a new asset request
// @Summary      Create asset request
// @Description  Creates an asset request and its approval chain in one transaction
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRequestDTO  true  "Request payload"
// @Success      201      {object}  response.Response{data=service.AssetRequestResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	requesterID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.workflowService.CreateRequest(c.Request.Context(), req, requesterID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListRequests returns asset requests, optionally filtered by status and priority
// @Summary      List asset requests
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        status    query     string  false  "Filter by status"
// @Param        priority  query     string  false  "Filter by priority"
// @Param        page      query     int     false  "Page number"
// @Param        limit     query     int     false  "Page size"
// @Success      200       {object}  response.Paginated{data=[]service.AssetRequestResponse}
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	params := pagination.Parse(c)

	filter := service.RequestListFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Page:     params.Page,
		Limit:    params.Limit,
	}

	// "mine=true" restricts the listing to the caller's own requests
	if c.Query("mine") == "true" {
		requesterID, ok := currentUserID(c)
		if !ok {
			return
		}
		filter.RequesterID = &requesterID
	}

	requests, total, err := h.workflowService.ListRequests(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, requests, total, params.Page, params.Limit))
}

// GetRequest returns a single request with its approval chain
// @Summary      Get asset request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID (REQ code)"
// @Success      200  {object}  response.Response{data=service.AssetRequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	result, err := h.workflowService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ApproveRequest resolves the next pending approval level as APPROVED
// @Summary      Approve asset request
// @Description  Resolves the lowest pending approval level with an APPROVED decision
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true   "Request ID (REQ code)"
// @Param        payload  body      approvalDecisionDTO  false  "Optional comments"
// @Success      200      {object}  response.Response{data=service.RequestApprovalResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/approve [post]
func (h *RequestHandler) ApproveRequest(c *gin.Context) {
	h.processApproval(c, model.RequestStatusApproved)
}

// RejectRequest resolves the next pending approval level as REJECTED
// @Summary      Reject asset request
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true   "Request ID (REQ code)"
// @Param        payload  body      approvalDecisionDTO  false  "Optional comments"
// @Success      200      {object}  response.Response{data=service.RequestApprovalResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/reject [post]
func (h *RequestHandler) RejectRequest(c *gin.Context) {
	h.processApproval(c, model.RequestStatusRejected)
}

func (h *RequestHandler) processApproval(c *gin.Context, decision string) {
	approverID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req approvalDecisionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body — comments are optional
		req.Comments = ""
	}

	result, err := h.workflowService.ProcessApproval(c.Request.Context(), c.Param("id"), approverID, decision, req.Comments)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CancelRequest cancels a pending or approved request
// @Summary      Cancel asset request
// @Description  Cancels a request. Allowed for the original requester or an administrator.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID (REQ code)"
// @Success      200  {object}  response.Response{data=service.AssetRequestResponse}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id}/cancel [post]
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	actor, err := h.userService.ResolveActor(c.Request.Context(), actorID.String())
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.workflowService.CancelRequest(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
