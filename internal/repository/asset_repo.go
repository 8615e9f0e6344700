package repository

import (
	"context"

	"assethub/internal/model"
	"assethub/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssetFilter narrows asset listings
type AssetFilter struct {
	Status       string
	Category     string
	DepartmentID *uuid.UUID
	AssignedToID *uuid.UUID
	Page         int
	Limit        int
}

// AssetRepository is the data access layer for assets and their maintenance history.
type AssetRepository interface {
	Create(ctx context.Context, asset *model.Asset) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Asset, error)
	FindByAssetID(ctx context.Context, assetID string) (*model.Asset, error)
	List(ctx context.Context, filter AssetFilter) ([]model.Asset, int64, error)
	Update(ctx context.Context, asset *model.Asset) error
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByIDForUpdate locks the asset row for the duration of the enclosing
	// transaction; used by reassignment to avoid racing holder updates.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Asset, error)

	CreateMaintenance(ctx context.Context, record *model.AssetMaintenance) error
	ListMaintenance(ctx context.Context, assetID uuid.UUID, page, limit int) ([]model.AssetMaintenance, int64, error)
}

type assetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

func (r *assetRepository) Create(ctx context.Context, asset *model.Asset) error {
	return GetDB(ctx, r.db).Create(asset).Error
}

func (r *assetRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	var asset model.Asset
	if err := GetDB(ctx, r.db).
		Preload("Department").
		Preload("AssignedTo").
		First(&asset, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) FindByAssetID(ctx context.Context, assetID string) (*model.Asset, error) {
	var asset model.Asset
	if err := GetDB(ctx, r.db).
		Preload("Department").
		Preload("AssignedTo").
		First(&asset, "asset_id = ?", assetID).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	var asset model.Asset
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&asset, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) List(ctx context.Context, filter AssetFilter) ([]model.Asset, int64, error) {
	var assets []model.Asset
	var total int64

	db := GetDB(ctx, r.db)
	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		if filter.DepartmentID != nil {
			q = q.Where("department_id = ?", *filter.DepartmentID)
		}
		if filter.AssignedToID != nil {
			q = q.Where("assigned_to_id = ?", *filter.AssignedToID)
		}
		return q
	}

	if err := apply(db.Model(&model.Asset{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Offset(filter.Page, filter.Limit)
	if err := apply(db.Preload("Department").Preload("AssignedTo")).
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&assets).Error; err != nil {
		return nil, 0, err
	}

	return assets, total, nil
}

func (r *assetRepository) Update(ctx context.Context, asset *model.Asset) error {
	return GetDB(ctx, r.db).Save(asset).Error
}

func (r *assetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.Asset{}, "id = ?", id).Error
}

func (r *assetRepository) CreateMaintenance(ctx context.Context, record *model.AssetMaintenance) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *assetRepository) ListMaintenance(ctx context.Context, assetID uuid.UUID, page, limit int) ([]model.AssetMaintenance, int64, error) {
	var records []model.AssetMaintenance
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AssetMaintenance{}).Where("asset_id = ?", assetID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Offset(page, limit)
	if err := db.Preload("PerformedBy").
		Where("asset_id = ?", assetID).
		Order("maintenance_date DESC").
		Offset(offset).Limit(limit).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
