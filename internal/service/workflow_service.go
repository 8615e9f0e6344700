package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"assethub/internal/model"
	"assethub/internal/notification"
	"assethub/internal/repository"
	"assethub/pkg/apperr"
	"assethub/pkg/identifier"
	"assethub/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor carries a caller identity with its authorization capabilities already
// resolved, so the workflow engine never reaches into the identity layer.
type Actor struct {
	ID      uuid.UUID
	IsAdmin bool
}

// AssetMutator applies the side effect of a fully approved request. Reassign
// must be idempotent; the engine skips the call when the request carries no
// asset. Implemented by AssetService, tx-aware through the context.
type AssetMutator interface {
	Reassign(ctx context.Context, assetID, holderID uuid.UUID) error
}

// --- DTOs ---

type CreateRequestDTO struct {
	RequestTypeID string `json:"request_type_id" binding:"required,uuid"`
	Title         string `json:"title" binding:"required,max=200"`
	Description   string `json:"description" binding:"required"`
	Priority      string `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	AssetID       string `json:"asset_id" binding:"omitempty,uuid"`
	DesiredDate   string `json:"desired_date" binding:"omitempty,datetime=2006-01-02"`
	Attachment    string `json:"attachment"`
}

type RequestApprovalResponse struct {
	ID            string  `json:"id"`
	RequestID     string  `json:"request_id"`
	ApproverID    *string `json:"approver_id"`
	ApproverName  string  `json:"approver_name,omitempty"`
	ApprovalLevel int     `json:"approval_level"`
	Status        string  `json:"status"`
	Comments      string  `json:"comments"`
	ApprovalDate  *string `json:"approval_date"`
}

type AssetRequestResponse struct {
	ID             string                    `json:"id"`
	RequestID      string                    `json:"request_id"`
	RequestType    string                    `json:"request_type"`
	RequesterID    string                    `json:"requester_id"`
	RequesterName  string                    `json:"requester_name,omitempty"`
	AssetID        *string                   `json:"asset_id"`
	Title          string                    `json:"title"`
	Description    string                    `json:"description"`
	Priority       string                    `json:"priority"`
	Status         string                    `json:"status"`
	DesiredDate    *string                   `json:"desired_date"`
	CompletionDate *string                   `json:"completion_date"`
	Attachment     string                    `json:"attachment,omitempty"`
	Approvals      []RequestApprovalResponse `json:"approvals"`
	CreatedAt      string                    `json:"created_at"`
}

type RequestListFilter struct {
	Status      string
	Priority    string
	RequesterID *uuid.UUID
	Page        int
	Limit       int
}

// --- Interface ---

// WorkflowService owns the AssetRequest lifecycle: creation with its approval
// chain, sequential approval processing, and cancellation. All status
// mutations on requests and approvals go through here.
type WorkflowService interface {
	CreateRequest(ctx context.Context, req CreateRequestDTO, requesterID uuid.UUID) (AssetRequestResponse, error)
	ProcessApproval(ctx context.Context, requestID string, approverID uuid.UUID, decision, comments string) (RequestApprovalResponse, error)
	CancelRequest(ctx context.Context, requestID string, actor Actor) (AssetRequestResponse, error)
	GetRequest(ctx context.Context, requestID string) (AssetRequestResponse, error)
	ListRequests(ctx context.Context, filter RequestListFilter) ([]AssetRequestResponse, int64, error)
}

type workflowService struct {
	requests repository.RequestRepository
	types    repository.RequestTypeRepository
	users    repository.UserRepository
	audits   repository.AuditRepository
	txm      repository.TransactionManager
	assets   AssetMutator
	notifier notification.Notifier
}

func NewWorkflowService(
	requests repository.RequestRepository,
	types repository.RequestTypeRepository,
	users repository.UserRepository,
	audits repository.AuditRepository,
	txm repository.TransactionManager,
	assets AssetMutator,
	notifier notification.Notifier,
) WorkflowService {
	return &workflowService{
		requests: requests,
		types:    types,
		users:    users,
		audits:   audits,
		txm:      txm,
		assets:   assets,
		notifier: notifier,
	}
}

// --- Implementation ---

func (s *workflowService) CreateRequest(ctx context.Context, req CreateRequestDTO, requesterID uuid.UUID) (AssetRequestResponse, error) {
	typeID, err := uuid.Parse(req.RequestTypeID)
	if err != nil {
		return AssetRequestResponse{}, apperr.Validation("invalid request_type_id: %v", err)
	}

	var assetID *uuid.UUID
	if req.AssetID != "" {
		parsed, parseErr := uuid.Parse(req.AssetID)
		if parseErr != nil {
			return AssetRequestResponse{}, apperr.Validation("invalid asset_id: %v", parseErr)
		}
		assetID = &parsed
	}

	var desiredDate *time.Time
	if req.DesiredDate != "" {
		parsed, parseErr := time.ParseInLocation("2006-01-02", req.DesiredDate, time.Local)
		if parseErr != nil {
			return AssetRequestResponse{}, apperr.Validation("invalid desired_date: %v", parseErr)
		}
		if parsed.Before(startOfToday()) {
			return AssetRequestResponse{}, apperr.Validation("desired date cannot be in the past")
		}
		desiredDate = &parsed
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	requester, err := s.users.GetByID(ctx, requesterID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AssetRequestResponse{}, apperr.NotFound("user", requesterID.String())
		}
		return AssetRequestResponse{}, fmt.Errorf("failed to load requester: %w", err)
	}

	requestType, err := s.types.FindByID(ctx, typeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AssetRequestResponse{}, apperr.NotFound("request type", req.RequestTypeID)
		}
		return AssetRequestResponse{}, fmt.Errorf("failed to load request type: %w", err)
	}
	if !requestType.Active {
		return AssetRequestResponse{}, apperr.Validation("request type %s is inactive", requestType.Name)
	}

	request := model.AssetRequest{
		RequestID:     identifier.New("REQ"),
		RequestTypeID: requestType.ID,
		RequesterID:   requesterID,
		AssetID:       assetID,
		Title:         req.Title,
		Description:   req.Description,
		Priority:      priority,
		Status:        model.RequestStatusPending,
		DesiredDate:   desiredDate,
		Attachment:    req.Attachment,
		Active:        true,
	}

	// The request, its full approval chain and the audit entry commit
	// together — a reader never observes a request without its chain.
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.requests.Create(txCtx, &request); createErr != nil {
			return fmt.Errorf("failed to create request: %w", createErr)
		}

		if requestType.RequiresApproval {
			approvals := make([]model.RequestApproval, 0, requestType.ApprovalLevels)
			for level := 1; level <= requestType.ApprovalLevels; level++ {
				approvals = append(approvals, model.RequestApproval{
					RequestID:     request.ID,
					ApprovalLevel: level,
					Status:        model.RequestStatusPending,
				})
			}
			if chainErr := s.requests.CreateApprovals(txCtx, approvals); chainErr != nil {
				return fmt.Errorf("failed to create approval chain: %w", chainErr)
			}
		}

		return s.writeAudit(txCtx, &requesterID, model.ActionCreateRequest, request.RequestID, request.Title, map[string]interface{}{
			"request_type": requestType.Name,
			"priority":     priority,
		})
	})
	if err != nil {
		return AssetRequestResponse{}, err
	}

	s.notifier.Notify(notification.EventRequestCreated, requesterID, requestEventPayload(&request))
	s.fanOutToManagers(ctx, requester, &request)

	full, err := s.requests.FindByRequestIDWithRelations(ctx, request.RequestID)
	if err != nil {
		return AssetRequestResponse{}, fmt.Errorf("failed to reload request: %w", err)
	}
	return toRequestResponse(full), nil
}

func (s *workflowService) ProcessApproval(ctx context.Context, requestID string, approverID uuid.UUID, decision, comments string) (RequestApprovalResponse, error) {
	if decision != model.RequestStatusApproved && decision != model.RequestStatusRejected {
		return RequestApprovalResponse{}, apperr.Validation("decision must be APPROVED or REJECTED")
	}

	var request *model.AssetRequest
	var resolved *model.RequestApproval

	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		request, txErr = s.requests.FindByRequestID(txCtx, requestID)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return apperr.NotFound("request", requestID)
			}
			return fmt.Errorf("failed to load request: %w", txErr)
		}

		// APPROVED, REJECTED and CANCELLED are terminal: a cancelled request
		// keeps its pending slots, and resolving one must never resurrect it.
		if request.Status != model.RequestStatusPending {
			return apperr.InvalidOperation(fmt.Sprintf("cannot process approval for request in status %s", request.Status))
		}

		// Lowest unresolved level wins; the row lock makes a resolved level
		// immediately invisible to concurrent callers.
		approval, txErr := s.requests.FirstUnassignedPending(txCtx, request.ID)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return apperr.NoPendingApproval(requestID)
			}
			return fmt.Errorf("failed to select pending approval: %w", txErr)
		}

		now := time.Now()
		approval.ApproverID = &approverID
		approval.Status = decision
		approval.Comments = comments
		approval.ApprovalDate = &now
		if txErr = s.requests.UpdateApproval(txCtx, approval); txErr != nil {
			return fmt.Errorf("failed to update approval: %w", txErr)
		}
		resolved = approval

		if txErr = s.recomputeStatus(txCtx, request, now); txErr != nil {
			return txErr
		}

		action := model.ActionApproveRequest
		if decision == model.RequestStatusRejected {
			action = model.ActionRejectRequest
		}
		return s.writeAudit(txCtx, &approverID, action, request.RequestID, request.Title, map[string]interface{}{
			"approval_level": approval.ApprovalLevel,
			"request_status": request.Status,
		})
	})
	if err != nil {
		return RequestApprovalResponse{}, err
	}

	event := notification.EventRequestApproved
	if decision == model.RequestStatusRejected {
		event = notification.EventRequestRejected
	}
	s.notifier.Notify(event, request.RequesterID, approvalEventPayload(request, resolved))

	return toApprovalResponse(request.RequestID, resolved), nil
}

// recomputeStatus derives the aggregate request status from the approval
// rows, within the caller's transaction. APPROVED triggers the asset
// reassignment side effect; REJECTED never sets a completion date.
func (s *workflowService) recomputeStatus(ctx context.Context, request *model.AssetRequest, now time.Time) error {
	pending, err := s.requests.CountPendingApprovals(ctx, request.ID)
	if err != nil {
		return fmt.Errorf("failed to count pending approvals: %w", err)
	}
	if pending > 0 {
		return nil
	}

	approvals, err := s.requests.ListApprovals(ctx, request.ID)
	if err != nil {
		return fmt.Errorf("failed to list approvals: %w", err)
	}

	allApproved := true
	for _, a := range approvals {
		if a.Status != model.RequestStatusApproved {
			allApproved = false
			break
		}
	}

	if allApproved {
		request.Status = model.RequestStatusApproved
		request.CompletionDate = &now
	} else {
		request.Status = model.RequestStatusRejected
	}

	if err := s.requests.Update(ctx, request); err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}

	if allApproved && request.AssetID != nil {
		if err := s.assets.Reassign(ctx, *request.AssetID, request.RequesterID); err != nil {
			return fmt.Errorf("failed to reassign asset: %w", err)
		}
	}

	return nil
}

func (s *workflowService) CancelRequest(ctx context.Context, requestID string, actor Actor) (AssetRequestResponse, error) {
	var request *model.AssetRequest

	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		request, txErr = s.requests.FindByRequestID(txCtx, requestID)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return apperr.NotFound("request", requestID)
			}
			return fmt.Errorf("failed to load request: %w", txErr)
		}

		if request.RequesterID != actor.ID && !actor.IsAdmin {
			return apperr.Unauthorized("only the requester or an administrator may cancel this request")
		}

		if request.Status != model.RequestStatusPending && request.Status != model.RequestStatusApproved {
			return apperr.InvalidOperation(fmt.Sprintf("cannot cancel request in status %s", request.Status))
		}

		// Terminal override: approval rows keep whatever state they reached.
		request.Status = model.RequestStatusCancelled
		if txErr = s.requests.Update(txCtx, request); txErr != nil {
			return fmt.Errorf("failed to cancel request: %w", txErr)
		}

		return s.writeAudit(txCtx, &actor.ID, model.ActionCancelRequest, request.RequestID, request.Title, nil)
	})
	if err != nil {
		return AssetRequestResponse{}, err
	}

	s.notifier.Notify(notification.EventRequestCancelled, request.RequesterID, requestEventPayload(request))

	full, err := s.requests.FindByRequestIDWithRelations(ctx, requestID)
	if err != nil {
		return AssetRequestResponse{}, fmt.Errorf("failed to reload request: %w", err)
	}
	return toRequestResponse(full), nil
}

func (s *workflowService) GetRequest(ctx context.Context, requestID string) (AssetRequestResponse, error) {
	request, err := s.requests.FindByRequestIDWithRelations(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AssetRequestResponse{}, apperr.NotFound("request", requestID)
		}
		return AssetRequestResponse{}, fmt.Errorf("failed to load request: %w", err)
	}
	return toRequestResponse(request), nil
}

func (s *workflowService) ListRequests(ctx context.Context, filter RequestListFilter) ([]AssetRequestResponse, int64, error) {
	p := pagination.Normalize(filter.Page, filter.Limit)

	requests, total, err := s.requests.List(ctx, repository.RequestFilter{
		Status:      filter.Status,
		Priority:    filter.Priority,
		RequesterID: filter.RequesterID,
		Page:        p.Page,
		Limit:       p.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}

	result := make([]AssetRequestResponse, 0, len(requests))
	for i := range requests {
		result = append(result, toRequestResponse(&requests[i]))
	}
	return result, total, nil
}

// fanOutToManagers notifies every manager in the requester's department that
// a new request awaits approval. Lookup failures are logged and swallowed —
// notification is never allowed to fail a committed request.
func (s *workflowService) fanOutToManagers(ctx context.Context, requester *model.User, request *model.AssetRequest) {
	if requester.DepartmentID == nil {
		return
	}
	managers, err := s.users.ManagersByDepartment(ctx, *requester.DepartmentID)
	if err != nil {
		log.Printf("workflow: failed to resolve managers for department %s: %v", requester.DepartmentID, err)
		return
	}
	for _, manager := range managers {
		s.notifier.Notify(notification.EventNewRequestForApproval, manager.ID, requestEventPayload(request))
	}
}

func (s *workflowService) writeAudit(ctx context.Context, userID *uuid.UUID, action, entityID, entityName string, details map[string]interface{}) error {
	payload := "{}"
	if details != nil {
		encoded, _ := json.Marshal(details)
		payload = string(encoded)
	}
	entry := model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    payload,
	}
	if err := s.audits.Create(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// --- Helpers ---

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}

func requestEventPayload(request *model.AssetRequest) map[string]interface{} {
	return map[string]interface{}{
		"request_id": request.RequestID,
		"title":      request.Title,
		"status":     request.Status,
		"priority":   request.Priority,
	}
}

func approvalEventPayload(request *model.AssetRequest, approval *model.RequestApproval) map[string]interface{} {
	payload := requestEventPayload(request)
	payload["approval_level"] = approval.ApprovalLevel
	payload["approval_status"] = approval.Status
	payload["comments"] = approval.Comments
	return payload
}

func toApprovalResponse(requestID string, a *model.RequestApproval) RequestApprovalResponse {
	resp := RequestApprovalResponse{
		ID:            a.ID.String(),
		RequestID:     requestID,
		ApprovalLevel: a.ApprovalLevel,
		Status:        a.Status,
		Comments:      a.Comments,
	}
	if a.ApproverID != nil {
		id := a.ApproverID.String()
		resp.ApproverID = &id
	}
	if a.Approver != nil {
		resp.ApproverName = a.Approver.Username
	}
	if a.ApprovalDate != nil {
		d := a.ApprovalDate.Format(time.RFC3339)
		resp.ApprovalDate = &d
	}
	return resp
}

func toRequestResponse(r *model.AssetRequest) AssetRequestResponse {
	resp := AssetRequestResponse{
		ID:          r.ID.String(),
		RequestID:   r.RequestID,
		RequesterID: r.RequesterID.String(),
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      r.Status,
		Attachment:  r.Attachment,
		Approvals:   make([]RequestApprovalResponse, 0, len(r.Approvals)),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	if r.RequestType != nil {
		resp.RequestType = r.RequestType.Name
	}
	if r.Requester != nil {
		resp.RequesterName = r.Requester.Username
	}
	if r.AssetID != nil {
		id := r.AssetID.String()
		resp.AssetID = &id
	}
	if r.DesiredDate != nil {
		d := r.DesiredDate.Format("2006-01-02")
		resp.DesiredDate = &d
	}
	if r.CompletionDate != nil {
		d := r.CompletionDate.Format(time.RFC3339)
		resp.CompletionDate = &d
	}
	for i := range r.Approvals {
		resp.Approvals = append(resp.Approvals, toApprovalResponse(r.RequestID, &r.Approvals[i]))
	}
	return resp
}
