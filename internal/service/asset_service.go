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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateAssetDTO struct {
	Name          string `json:"name" binding:"required,max=255"`
	Description   string `json:"description"`
	Category      string `json:"category" binding:"omitempty,max=100"`
	DepartmentID  string `json:"department_id" binding:"omitempty,uuid"`
	PurchaseDate  string `json:"purchase_date" binding:"omitempty,datetime=2006-01-02"`
	PurchasePrice string `json:"purchase_price" binding:"omitempty"`
	Manufacturer  string `json:"manufacturer" binding:"omitempty,max=100"`
	ModelNumber   string `json:"model_number" binding:"omitempty,max=50"`
	SerialNumber  string `json:"serial_number" binding:"omitempty,max=50"`
	Location      string `json:"location" binding:"omitempty,max=100"`
}

type UpdateAssetDTO struct {
	Name        string `json:"name" binding:"omitempty,max=255"`
	Description string `json:"description"`
	Category    string `json:"category" binding:"omitempty,max=100"`
	Status      string `json:"status" binding:"omitempty,oneof=AVAILABLE ASSIGNED MAINTENANCE RETIRED"`
	Location    string `json:"location" binding:"omitempty,max=100"`
}

type RecordMaintenanceDTO struct {
	MaintenanceType     string `json:"maintenance_type" binding:"omitempty,oneof=PREVENTIVE CORRECTIVE INSPECTION CALIBRATION OTHER"`
	MaintenanceDate     string `json:"maintenance_date" binding:"required,datetime=2006-01-02"`
	Description         string `json:"description" binding:"required"`
	Cost                string `json:"cost" binding:"omitempty"`
	NextMaintenanceDate string `json:"next_maintenance_date" binding:"omitempty,datetime=2006-01-02"`
}

type AssetResponse struct {
	ID            string  `json:"id"`
	AssetID       string  `json:"asset_id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	DepartmentID  *string `json:"department_id"`
	AssignedToID  *string `json:"assigned_to_id"`
	AssignedTo    string  `json:"assigned_to,omitempty"`
	PurchaseDate  *string `json:"purchase_date"`
	PurchasePrice string  `json:"purchase_price"`
	Status        string  `json:"status"`
	Manufacturer  string  `json:"manufacturer,omitempty"`
	ModelNumber   string  `json:"model_number,omitempty"`
	SerialNumber  string  `json:"serial_number,omitempty"`
	Location      string  `json:"location,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type MaintenanceResponse struct {
	ID                  string  `json:"id"`
	MaintenanceID       string  `json:"maintenance_id"`
	AssetID             string  `json:"asset_id"`
	MaintenanceType     string  `json:"maintenance_type"`
	MaintenanceDate     string  `json:"maintenance_date"`
	Description         string  `json:"description"`
	Cost                string  `json:"cost"`
	PerformedBy         string  `json:"performed_by,omitempty"`
	NextMaintenanceDate *string `json:"next_maintenance_date"`
}

// --- Interface ---

// AssetService manages asset records and implements the workflow engine's
// AssetMutator port.
type AssetService interface {
	AssetMutator

	Create(ctx context.Context, req CreateAssetDTO, actorID uuid.UUID) (AssetResponse, error)
	GetByID(ctx context.Context, id string) (AssetResponse, error)
	List(ctx context.Context, filter repository.AssetFilter) ([]AssetResponse, int64, error)
	Update(ctx context.Context, id string, req UpdateAssetDTO, actorID uuid.UUID) (AssetResponse, error)
	Delete(ctx context.Context, id string, actorID uuid.UUID) error

	RecordMaintenance(ctx context.Context, assetID string, req RecordMaintenanceDTO, actorID uuid.UUID) (MaintenanceResponse, error)
	ListMaintenance(ctx context.Context, assetID string, page, limit int) ([]MaintenanceResponse, int64, error)
}

type assetService struct {
	repo   repository.AssetRepository
	audits repository.AuditRepository
	txm    repository.TransactionManager
}

func NewAssetService(repo repository.AssetRepository, audits repository.AuditRepository, txm repository.TransactionManager) AssetService {
	return &assetService{repo: repo, audits: audits, txm: txm}
}

// --- Implementation ---

// Reassign moves an asset to a new holder. Idempotent: reassigning to the
// current holder is a no-op. Joins the caller's transaction via context, so
// a workflow approval and its assignment side effect commit atomically.
func (s *assetService) Reassign(ctx context.Context, assetID, holderID uuid.UUID) error {
	asset, err := s.repo.FindByIDForUpdate(ctx, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("asset", assetID.String())
		}
		return fmt.Errorf("failed to load asset: %w", err)
	}

	if asset.AssignedToID != nil && *asset.AssignedToID == holderID {
		return nil
	}

	asset.AssignedToID = &holderID
	asset.Status = model.AssetStatusAssigned
	if err := s.repo.Update(ctx, asset); err != nil {
		return fmt.Errorf("failed to reassign asset: %w", err)
	}

	details, _ := json.Marshal(map[string]interface{}{"new_holder": holderID.String()})
	entry := model.AuditLog{
		Action:     model.ActionReassignAsset,
		EntityID:   asset.AssetID,
		EntityName: asset.Name,
		Details:    string(details),
	}
	if err := s.audits.Create(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return nil
}

func (s *assetService) Create(ctx context.Context, req CreateAssetDTO, actorID uuid.UUID) (AssetResponse, error) {
	asset := model.Asset{
		AssetID:      identifier.New("AST"),
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		Status:       model.AssetStatusAvailable,
		Manufacturer: req.Manufacturer,
		ModelNumber:  req.ModelNumber,
		SerialNumber: req.SerialNumber,
		Location:     req.Location,
	}

	if req.DepartmentID != "" {
		deptID, err := uuid.Parse(req.DepartmentID)
		if err != nil {
			return AssetResponse{}, apperr.Validation("invalid department_id: %v", err)
		}
		asset.DepartmentID = &deptID
	}
	if req.PurchaseDate != "" {
		date, err := time.ParseInLocation("2006-01-02", req.PurchaseDate, time.Local)
		if err != nil {
			return AssetResponse{}, apperr.Validation("invalid purchase_date: %v", err)
		}
		asset.PurchaseDate = &date
	}
	if req.PurchasePrice != "" {
		price, err := decimal.NewFromString(req.PurchasePrice)
		if err != nil || price.IsNegative() {
			return AssetResponse{}, apperr.Validation("purchase_price must be a non-negative decimal")
		}
		asset.PurchasePrice = price
	}

	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.repo.Create(txCtx, &asset); createErr != nil {
			return fmt.Errorf("failed to create asset: %w", createErr)
		}
		return s.audit(txCtx, &actorID, model.ActionCreateAsset, asset.AssetID, asset.Name, map[string]interface{}{
			"category": asset.Category,
		})
	})
	if err != nil {
		return AssetResponse{}, err
	}

	return toAssetResponse(&asset), nil
}

func (s *assetService) GetByID(ctx context.Context, id string) (AssetResponse, error) {
	asset, err := s.find(ctx, id)
	if err != nil {
		return AssetResponse{}, err
	}
	return toAssetResponse(asset), nil
}

func (s *assetService) List(ctx context.Context, filter repository.AssetFilter) ([]AssetResponse, int64, error) {
	p := pagination.Normalize(filter.Page, filter.Limit)
	filter.Page, filter.Limit = p.Page, p.Limit

	assets, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list assets: %w", err)
	}

	result := make([]AssetResponse, 0, len(assets))
	for i := range assets {
		result = append(result, toAssetResponse(&assets[i]))
	}
	return result, total, nil
}

func (s *assetService) Update(ctx context.Context, id string, req UpdateAssetDTO, actorID uuid.UUID) (AssetResponse, error) {
	asset, err := s.find(ctx, id)
	if err != nil {
		return AssetResponse{}, err
	}

	if req.Name != "" {
		asset.Name = req.Name
	}
	if req.Description != "" {
		asset.Description = req.Description
	}
	if req.Category != "" {
		asset.Category = req.Category
	}
	if req.Status != "" {
		asset.Status = req.Status
	}
	if req.Location != "" {
		asset.Location = req.Location
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.repo.Update(txCtx, asset); updateErr != nil {
			return fmt.Errorf("failed to update asset: %w", updateErr)
		}
		return s.audit(txCtx, &actorID, model.ActionUpdateAsset, asset.AssetID, asset.Name, nil)
	})
	if err != nil {
		return AssetResponse{}, err
	}

	return toAssetResponse(asset), nil
}

func (s *assetService) Delete(ctx context.Context, id string, actorID uuid.UUID) error {
	asset, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if asset.AssignedToID != nil {
		return apperr.Conflict(fmt.Sprintf("asset %s is assigned and cannot be deleted", asset.AssetID))
	}

	return s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if deleteErr := s.repo.Delete(txCtx, asset.ID); deleteErr != nil {
			return fmt.Errorf("failed to delete asset: %w", deleteErr)
		}
		return s.audit(txCtx, &actorID, model.ActionDeleteAsset, asset.AssetID, asset.Name, nil)
	})
}

func (s *assetService) RecordMaintenance(ctx context.Context, assetID string, req RecordMaintenanceDTO, actorID uuid.UUID) (MaintenanceResponse, error) {
	asset, err := s.find(ctx, assetID)
	if err != nil {
		return MaintenanceResponse{}, err
	}

	date, err := time.ParseInLocation("2006-01-02", req.MaintenanceDate, time.Local)
	if err != nil {
		return MaintenanceResponse{}, apperr.Validation("invalid maintenance_date: %v", err)
	}

	record := model.AssetMaintenance{
		MaintenanceID:   identifier.New("MNT"),
		AssetID:         asset.ID,
		MaintenanceType: req.MaintenanceType,
		MaintenanceDate: date,
		Description:     req.Description,
		PerformedByID:   &actorID,
	}
	if record.MaintenanceType == "" {
		record.MaintenanceType = model.MaintenancePreventive
	}
	if req.Cost != "" {
		cost, costErr := decimal.NewFromString(req.Cost)
		if costErr != nil || cost.IsNegative() {
			return MaintenanceResponse{}, apperr.Validation("cost must be a non-negative decimal")
		}
		record.Cost = cost
	}
	if req.NextMaintenanceDate != "" {
		next, nextErr := time.ParseInLocation("2006-01-02", req.NextMaintenanceDate, time.Local)
		if nextErr != nil {
			return MaintenanceResponse{}, apperr.Validation("invalid next_maintenance_date: %v", nextErr)
		}
		record.NextMaintenanceDate = &next
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.repo.CreateMaintenance(txCtx, &record); createErr != nil {
			return fmt.Errorf("failed to record maintenance: %w", createErr)
		}
		return s.audit(txCtx, &actorID, model.ActionRecordMaintenance, record.MaintenanceID, asset.Name, map[string]interface{}{
			"maintenance_type": record.MaintenanceType,
			"cost":             record.Cost.StringFixed(2),
		})
	})
	if err != nil {
		return MaintenanceResponse{}, err
	}

	return toMaintenanceResponse(&record), nil
}

func (s *assetService) ListMaintenance(ctx context.Context, assetID string, page, limit int) ([]MaintenanceResponse, int64, error) {
	asset, err := s.find(ctx, assetID)
	if err != nil {
		return nil, 0, err
	}

	p := pagination.Normalize(page, limit)

	records, total, err := s.repo.ListMaintenance(ctx, asset.ID, p.Page, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list maintenance records: %w", err)
	}

	result := make([]MaintenanceResponse, 0, len(records))
	for i := range records {
		result = append(result, toMaintenanceResponse(&records[i]))
	}
	return result, total, nil
}

func (s *assetService) find(ctx context.Context, id string) (*model.Asset, error) {
	assetUUID, err := uuid.Parse(id)
	if err != nil {
		// Fall back to the business code (AST…) for lookups by scanner input
		asset, codeErr := s.repo.FindByAssetID(ctx, id)
		if codeErr != nil {
			if errors.Is(codeErr, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound("asset", id)
			}
			return nil, fmt.Errorf("failed to load asset: %w", codeErr)
		}
		return asset, nil
	}

	asset, err := s.repo.FindByID(ctx, assetUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("asset", id)
		}
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}
	return asset, nil
}

func (s *assetService) audit(ctx context.Context, userID *uuid.UUID, action, entityID, entityName string, details map[string]interface{}) error {
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

func toAssetResponse(a *model.Asset) AssetResponse {
	resp := AssetResponse{
		ID:            a.ID.String(),
		AssetID:       a.AssetID,
		Name:          a.Name,
		Description:   a.Description,
		Category:      a.Category,
		PurchasePrice: a.PurchasePrice.StringFixed(2),
		Status:        a.Status,
		Manufacturer:  a.Manufacturer,
		ModelNumber:   a.ModelNumber,
		SerialNumber:  a.SerialNumber,
		Location:      a.Location,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	if a.DepartmentID != nil {
		id := a.DepartmentID.String()
		resp.DepartmentID = &id
	}
	if a.AssignedToID != nil {
		id := a.AssignedToID.String()
		resp.AssignedToID = &id
	}
	if a.AssignedTo != nil {
		resp.AssignedTo = a.AssignedTo.Username
	}
	if a.PurchaseDate != nil {
		d := a.PurchaseDate.Format("2006-01-02")
		resp.PurchaseDate = &d
	}
	return resp
}

func toMaintenanceResponse(m *model.AssetMaintenance) MaintenanceResponse {
	resp := MaintenanceResponse{
		ID:              m.ID.String(),
		MaintenanceID:   m.MaintenanceID,
		AssetID:         m.AssetID.String(),
		MaintenanceType: m.MaintenanceType,
		MaintenanceDate: m.MaintenanceDate.Format("2006-01-02"),
		Description:     m.Description,
		Cost:            m.Cost.StringFixed(2),
	}
	if m.PerformedBy != nil {
		resp.PerformedBy = m.PerformedBy.Username
	}
	if m.NextMaintenanceDate != nil {
		d := m.NextMaintenanceDate.Format("2006-01-02")
		resp.NextMaintenanceDate = &d
	}
	return resp
}
