package repository

import (
	"context"

	"assethub/internal/model"
	"assethub/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestTypeRepository is the data access layer for the request type registry.
type RequestTypeRepository interface {
	Create(ctx context.Context, rt *model.RequestType) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RequestType, error)
	List(ctx context.Context, activeOnly bool, page, limit int) ([]model.RequestType, int64, error)
	Update(ctx context.Context, rt *model.RequestType) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByName(ctx context.Context, name string, excludeID *uuid.UUID) (int64, error)
	CountReferencingRequests(ctx context.Context, id uuid.UUID) (int64, error)
}

type requestTypeRepository struct {
	db *gorm.DB
}

func NewRequestTypeRepository(db *gorm.DB) RequestTypeRepository {
	return &requestTypeRepository{db: db}
}

func (r *requestTypeRepository) Create(ctx context.Context, rt *model.RequestType) error {
	return GetDB(ctx, r.db).Create(rt).Error
}

func (r *requestTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RequestType, error) {
	var rt model.RequestType
	if err := GetDB(ctx, r.db).First(&rt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *requestTypeRepository) List(ctx context.Context, activeOnly bool, page, limit int) ([]model.RequestType, int64, error) {
	var types []model.RequestType
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.RequestType{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Offset(page, limit)
	fetch := db.Order("name ASC").Offset(offset).Limit(limit)
	if activeOnly {
		fetch = fetch.Where("active = ?", true)
	}
	if err := fetch.Find(&types).Error; err != nil {
		return nil, 0, err
	}

	return types, total, nil
}

func (r *requestTypeRepository) Update(ctx context.Context, rt *model.RequestType) error {
	return GetDB(ctx, r.db).Save(rt).Error
}

func (r *requestTypeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.RequestType{}, "id = ?", id).Error
}

func (r *requestTypeRepository) CountByName(ctx context.Context, name string, excludeID *uuid.UUID) (int64, error) {
	var count int64
	query := GetDB(ctx, r.db).Model(&model.RequestType{}).Where("name = ?", name)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *requestTypeRepository) CountReferencingRequests(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.AssetRequest{}).
		Where("request_type_id = ?", id).
		Count(&count).Error
	return count, err
}
