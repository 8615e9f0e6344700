package repository

import (
	"context"

	"assethub/internal/model"
	"assethub/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestFilter narrows request listings
type RequestFilter struct {
	Status      string
	Priority    string
	RequesterID *uuid.UUID
	Page        int
	Limit       int
}

// RequestRepository is the persistence port of the workflow engine.
type RequestRepository interface {
	Create(ctx context.Context, req *model.AssetRequest) error
	CreateApprovals(ctx context.Context, approvals []model.RequestApproval) error
	FindByRequestID(ctx context.Context, requestID string) (*model.AssetRequest, error)
	FindByRequestIDWithRelations(ctx context.Context, requestID string) (*model.AssetRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]model.AssetRequest, int64, error)
	Update(ctx context.Context, req *model.AssetRequest) error

	// FirstUnassignedPending selects the lowest-level PENDING slot with no
	// approver yet, locked FOR UPDATE so concurrent resolvers serialize.
	FirstUnassignedPending(ctx context.Context, requestPK uuid.UUID) (*model.RequestApproval, error)
	CountPendingApprovals(ctx context.Context, requestPK uuid.UUID) (int64, error)
	ListApprovals(ctx context.Context, requestPK uuid.UUID) ([]model.RequestApproval, error)
	UpdateApproval(ctx context.Context, approval *model.RequestApproval) error
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.AssetRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) CreateApprovals(ctx context.Context, approvals []model.RequestApproval) error {
	if len(approvals) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&approvals).Error
}

func (r *requestRepository) FindByRequestID(ctx context.Context, requestID string) (*model.AssetRequest, error) {
	var req model.AssetRequest
	if err := GetDB(ctx, r.db).
		Preload("RequestType").
		First(&req, "request_id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByRequestIDWithRelations(ctx context.Context, requestID string) (*model.AssetRequest, error) {
	var req model.AssetRequest
	if err := GetDB(ctx, r.db).
		Preload("RequestType").
		Preload("Requester").
		Preload("Asset").
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("approval_level ASC")
		}).
		Preload("Approvals.Approver").
		First(&req, "request_id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]model.AssetRequest, int64, error) {
	var requests []model.AssetRequest
	var total int64

	db := GetDB(ctx, r.db)
	apply := func(q *gorm.DB) *gorm.DB {
		q = q.Where("active = ?", true)
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Priority != "" {
			q = q.Where("priority = ?", filter.Priority)
		}
		if filter.RequesterID != nil {
			q = q.Where("requester_id = ?", *filter.RequesterID)
		}
		return q
	}

	if err := apply(db.Model(&model.AssetRequest{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Offset(filter.Page, filter.Limit)
	if err := apply(db.Preload("RequestType").Preload("Requester").Preload("Asset")).
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *requestRepository) Update(ctx context.Context, req *model.AssetRequest) error {
	return GetDB(ctx, r.db).Save(req).Error
}

func (r *requestRepository) FirstUnassignedPending(ctx context.Context, requestPK uuid.UUID) (*model.RequestApproval, error) {
	var approval model.RequestApproval
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("request_id = ? AND approver_id IS NULL AND status = ?", requestPK, model.RequestStatusPending).
		Order("approval_level ASC").
		First(&approval).Error
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

func (r *requestRepository) CountPendingApprovals(ctx context.Context, requestPK uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.RequestApproval{}).
		Where("request_id = ? AND status = ?", requestPK, model.RequestStatusPending).
		Count(&count).Error
	return count, err
}

func (r *requestRepository) ListApprovals(ctx context.Context, requestPK uuid.UUID) ([]model.RequestApproval, error) {
	var approvals []model.RequestApproval
	err := GetDB(ctx, r.db).
		Where("request_id = ?", requestPK).
		Order("approval_level ASC").
		Find(&approvals).Error
	return approvals, err
}

func (r *requestRepository) UpdateApproval(ctx context.Context, approval *model.RequestApproval) error {
	return GetDB(ctx, r.db).Save(approval).Error
}
