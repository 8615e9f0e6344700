package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"assethub/internal/model"
	"assethub/internal/repository"
	"assethub/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeAssetRepo struct {
	assets      map[uuid.UUID]*model.Asset
	maintenance map[uuid.UUID][]model.AssetMaintenance
}

func newFakeAssetRepo() *fakeAssetRepo {
	return &fakeAssetRepo{
		assets:      make(map[uuid.UUID]*model.Asset),
		maintenance: make(map[uuid.UUID][]model.AssetMaintenance),
	}
}

func (r *fakeAssetRepo) Create(_ context.Context, asset *model.Asset) error {
	asset.ID = uuid.New()
	asset.CreatedAt = time.Now()
	r.assets[asset.ID] = asset
	return nil
}

func (r *fakeAssetRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Asset, error) {
	asset, ok := r.assets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return asset, nil
}

func (r *fakeAssetRepo) FindByAssetID(_ context.Context, assetID string) (*model.Asset, error) {
	for _, a := range r.assets {
		if a.AssetID == assetID {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAssetRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeAssetRepo) List(_ context.Context, filter repository.AssetFilter) ([]model.Asset, int64, error) {
	var out []model.Asset
	for _, a := range r.assets {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		out = append(out, *a)
	}
	return out, int64(len(out)), nil
}

func (r *fakeAssetRepo) Update(_ context.Context, asset *model.Asset) error {
	r.assets[asset.ID] = asset
	return nil
}

func (r *fakeAssetRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.assets, id)
	return nil
}

func (r *fakeAssetRepo) CreateMaintenance(_ context.Context, record *model.AssetMaintenance) error {
	record.ID = uuid.New()
	r.maintenance[record.AssetID] = append(r.maintenance[record.AssetID], *record)
	return nil
}

func (r *fakeAssetRepo) ListMaintenance(_ context.Context, assetID uuid.UUID, _, _ int) ([]model.AssetMaintenance, int64, error) {
	records := r.maintenance[assetID]
	return records, int64(len(records)), nil
}

func newAssetFixture() (*fakeAssetRepo, *fakeAuditRepo, AssetService) {
	repo := newFakeAssetRepo()
	audits := &fakeAuditRepo{}
	return repo, audits, NewAssetService(repo, audits, fakeTxManager{})
}

func TestAssetCreateDefaults(t *testing.T) {
	_, audits, svc := newAssetFixture()
	actor := uuid.New()

	resp, err := svc.Create(context.Background(), CreateAssetDTO{
		Name:          "ThinkPad X1",
		Category:      "Laptop",
		PurchasePrice: "1499.99",
	}, actor)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.AssetID, "AST"))
	assert.Equal(t, model.AssetStatusAvailable, resp.Status)
	assert.Equal(t, "1499.99", resp.PurchasePrice)
	assert.Contains(t, audits.actions(), model.ActionCreateAsset)
}

func TestAssetCreateRejectsNegativePrice(t *testing.T) {
	repo, _, svc := newAssetFixture()

	_, err := svc.Create(context.Background(), CreateAssetDTO{
		Name:          "Broken",
		PurchasePrice: "-5.00",
	}, uuid.New())

	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, repo.assets)
}

func TestReassignSetsHolderAndStatus(t *testing.T) {
	repo, audits, svc := newAssetFixture()
	actor := uuid.New()
	created, err := svc.Create(context.Background(), CreateAssetDTO{Name: "Dock"}, actor)
	require.NoError(t, err)
	assetID := uuid.MustParse(created.ID)
	holder := uuid.New()

	require.NoError(t, svc.Reassign(context.Background(), assetID, holder))

	asset := repo.assets[assetID]
	require.NotNil(t, asset.AssignedToID)
	assert.Equal(t, holder, *asset.AssignedToID)
	assert.Equal(t, model.AssetStatusAssigned, asset.Status)
	assert.Contains(t, audits.actions(), model.ActionReassignAsset)
}

func TestReassignIsIdempotent(t *testing.T) {
	_, audits, svc := newAssetFixture()
	created, err := svc.Create(context.Background(), CreateAssetDTO{Name: "Dock"}, uuid.New())
	require.NoError(t, err)
	assetID := uuid.MustParse(created.ID)
	holder := uuid.New()

	require.NoError(t, svc.Reassign(context.Background(), assetID, holder))
	auditCount := len(audits.entries)

	// Reassigning to the current holder changes nothing and writes no audit.
	require.NoError(t, svc.Reassign(context.Background(), assetID, holder))
	assert.Len(t, audits.entries, auditCount)
}

func TestReassignUnknownAsset(t *testing.T) {
	_, _, svc := newAssetFixture()
	err := svc.Reassign(context.Background(), uuid.New(), uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestAssetDeleteBlockedWhileAssigned(t *testing.T) {
	repo, _, svc := newAssetFixture()
	created, err := svc.Create(context.Background(), CreateAssetDTO{Name: "Dock"}, uuid.New())
	require.NoError(t, err)
	assetID := uuid.MustParse(created.ID)
	require.NoError(t, svc.Reassign(context.Background(), assetID, uuid.New()))

	err = svc.Delete(context.Background(), created.ID, uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Contains(t, repo.assets, assetID)
}

func TestAssetLookupByBusinessCode(t *testing.T) {
	_, _, svc := newAssetFixture()
	created, err := svc.Create(context.Background(), CreateAssetDTO{Name: "Projector"}, uuid.New())
	require.NoError(t, err)

	got, err := svc.GetByID(context.Background(), created.AssetID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestRecordMaintenanceDefaultsTypeAndValidatesCost(t *testing.T) {
	_, audits, svc := newAssetFixture()
	actor := uuid.New()
	created, err := svc.Create(context.Background(), CreateAssetDTO{Name: "Printer"}, actor)
	require.NoError(t, err)

	record, err := svc.RecordMaintenance(context.Background(), created.ID, RecordMaintenanceDTO{
		MaintenanceDate: "2026-08-01",
		Description:     "Fuser replacement",
		Cost:            "120.50",
	}, actor)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(record.MaintenanceID, "MNT"))
	assert.Equal(t, model.MaintenancePreventive, record.MaintenanceType)
	assert.Equal(t, "120.50", record.Cost)
	assert.Contains(t, audits.actions(), model.ActionRecordMaintenance)

	_, err = svc.RecordMaintenance(context.Background(), created.ID, RecordMaintenanceDTO{
		MaintenanceDate: "2026-08-01",
		Description:     "Bad cost",
		Cost:            "not-a-number",
	}, actor)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	records, total, err := svc.ListMaintenance(context.Background(), created.ID, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, records, 1)
}
