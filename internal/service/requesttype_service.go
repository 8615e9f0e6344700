package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assethub/internal/model"
	"assethub/internal/repository"
	"assethub/pkg/apperr"
	"assethub/pkg/identifier"
	"assethub/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRequestTypeDTO struct {
	Name             string `json:"name" binding:"required,max=100"`
	Code             string `json:"code" binding:"omitempty,max=10"`
	Description      string `json:"description"`
	RequiresApproval *bool  `json:"requires_approval"`
	ApprovalLevels   int    `json:"approval_levels" binding:"omitempty,min=1"`
}

type UpdateRequestTypeDTO struct {
	Name        string `json:"name" binding:"omitempty,max=100"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

type RequestTypeResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Code             string `json:"code"`
	Description      string `json:"description"`
	RequiresApproval bool   `json:"requires_approval"`
	ApprovalLevels   int    `json:"approval_levels"`
	Active           bool   `json:"active"`
	CreatedAt        string `json:"created_at"`
}

// --- Interface ---

// RequestTypeService manages the request type registry. Approval semantics
// (requires_approval, approval_levels) are fixed at creation: changing them
// under existing requests would corrupt in-flight approval chains.
type RequestTypeService interface {
	Create(ctx context.Context, req CreateRequestTypeDTO, actorID uuid.UUID) (RequestTypeResponse, error)
	GetByID(ctx context.Context, id string) (RequestTypeResponse, error)
	List(ctx context.Context, activeOnly bool, page, limit int) ([]RequestTypeResponse, int64, error)
	Update(ctx context.Context, id string, req UpdateRequestTypeDTO, actorID uuid.UUID) (RequestTypeResponse, error)
	Delete(ctx context.Context, id string, actorID uuid.UUID) error
}

type requestTypeService struct {
	repo   repository.RequestTypeRepository
	audits repository.AuditRepository
	txm    repository.TransactionManager
}

func NewRequestTypeService(repo repository.RequestTypeRepository, audits repository.AuditRepository, txm repository.TransactionManager) RequestTypeService {
	return &requestTypeService{repo: repo, audits: audits, txm: txm}
}

// --- Implementation ---

func (s *requestTypeService) Create(ctx context.Context, req CreateRequestTypeDTO, actorID uuid.UUID) (RequestTypeResponse, error) {
	levels := req.ApprovalLevels
	if levels < 1 {
		levels = 1
	}

	requiresApproval := true
	if req.RequiresApproval != nil {
		requiresApproval = *req.RequiresApproval
	}

	if count, err := s.repo.CountByName(ctx, req.Name, nil); err != nil {
		return RequestTypeResponse{}, fmt.Errorf("failed to check name uniqueness: %w", err)
	} else if count > 0 {
		return RequestTypeResponse{}, apperr.Conflict(fmt.Sprintf("request type %q already exists", req.Name))
	}

	code := req.Code
	if code == "" {
		code = identifier.New("REQ")
	}

	rt := model.RequestType{
		Name:             req.Name,
		Code:             code,
		Description:      req.Description,
		RequiresApproval: requiresApproval,
		ApprovalLevels:   levels,
		Active:           true,
	}

	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.repo.Create(txCtx, &rt); createErr != nil {
			return fmt.Errorf("failed to create request type: %w", createErr)
		}
		return s.audit(txCtx, &actorID, model.ActionCreateRequestType, rt.Code, rt.Name, map[string]interface{}{
			"requires_approval": rt.RequiresApproval,
			"approval_levels":   rt.ApprovalLevels,
		})
	})
	if err != nil {
		return RequestTypeResponse{}, err
	}

	return toRequestTypeResponse(&rt), nil
}

func (s *requestTypeService) GetByID(ctx context.Context, id string) (RequestTypeResponse, error) {
	rt, err := s.find(ctx, id)
	if err != nil {
		return RequestTypeResponse{}, err
	}
	return toRequestTypeResponse(rt), nil
}

func (s *requestTypeService) List(ctx context.Context, activeOnly bool, page, limit int) ([]RequestTypeResponse, int64, error) {
	p := pagination.Normalize(page, limit)

	types, total, err := s.repo.List(ctx, activeOnly, p.Page, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list request types: %w", err)
	}

	result := make([]RequestTypeResponse, 0, len(types))
	for i := range types {
		result = append(result, toRequestTypeResponse(&types[i]))
	}
	return result, total, nil
}

func (s *requestTypeService) Update(ctx context.Context, id string, req UpdateRequestTypeDTO, actorID uuid.UUID) (RequestTypeResponse, error) {
	rt, err := s.find(ctx, id)
	if err != nil {
		return RequestTypeResponse{}, err
	}

	if req.Name != "" && req.Name != rt.Name {
		if count, countErr := s.repo.CountByName(ctx, req.Name, &rt.ID); countErr != nil {
			return RequestTypeResponse{}, fmt.Errorf("failed to check name uniqueness: %w", countErr)
		} else if count > 0 {
			return RequestTypeResponse{}, apperr.Conflict(fmt.Sprintf("request type %q already exists", req.Name))
		}
		rt.Name = req.Name
	}
	if req.Description != "" {
		rt.Description = req.Description
	}
	if req.Active != nil {
		rt.Active = *req.Active
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.repo.Update(txCtx, rt); updateErr != nil {
			return fmt.Errorf("failed to update request type: %w", updateErr)
		}
		return s.audit(txCtx, &actorID, model.ActionUpdateRequestType, rt.Code, rt.Name, nil)
	})
	if err != nil {
		return RequestTypeResponse{}, err
	}
	return toRequestTypeResponse(rt), nil
}

func (s *requestTypeService) Delete(ctx context.Context, id string, actorID uuid.UUID) error {
	rt, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	// Deletion is blocked while requests reference the type; deactivate instead.
	referencing, err := s.repo.CountReferencingRequests(ctx, rt.ID)
	if err != nil {
		return fmt.Errorf("failed to count referencing requests: %w", err)
	}
	if referencing > 0 {
		return apperr.Conflict(fmt.Sprintf("request type %q is referenced by %d request(s)", rt.Name, referencing))
	}

	return s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if deleteErr := s.repo.Delete(txCtx, rt.ID); deleteErr != nil {
			return fmt.Errorf("failed to delete request type: %w", deleteErr)
		}
		return s.audit(txCtx, &actorID, model.ActionDeleteRequestType, rt.Code, rt.Name, nil)
	})
}

func (s *requestTypeService) find(ctx context.Context, id string) (*model.RequestType, error) {
	typeID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid request type id: %v", err)
	}
	rt, err := s.repo.FindByID(ctx, typeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("request type", id)
		}
		return nil, fmt.Errorf("failed to load request type: %w", err)
	}
	return rt, nil
}

func (s *requestTypeService) audit(ctx context.Context, userID *uuid.UUID, action, entityID, entityName string, details map[string]interface{}) error {
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

func toRequestTypeResponse(rt *model.RequestType) RequestTypeResponse {
	return RequestTypeResponse{
		ID:               rt.ID.String(),
		Name:             rt.Name,
		Code:             rt.Code,
		Description:      rt.Description,
		RequiresApproval: rt.RequiresApproval,
		ApprovalLevels:   rt.ApprovalLevels,
		Active:           rt.Active,
		CreatedAt:        rt.CreatedAt.Format(time.RFC3339),
	}
}
