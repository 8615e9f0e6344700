package service

import (
	"context"
	"strings"
	"testing"

	"assethub/internal/model"
	"assethub/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestTypeFixture struct {
	repo   *fakeTypeRepo
	audits *fakeAuditRepo
	admin  uuid.UUID
	svc    RequestTypeService
}

func newRequestTypeFixture() *requestTypeFixture {
	f := &requestTypeFixture{
		repo:   newFakeTypeRepo(),
		audits: &fakeAuditRepo{},
		admin:  uuid.New(),
	}
	f.svc = NewRequestTypeService(f.repo, f.audits, fakeTxManager{})
	return f
}

func TestRequestTypeCreateDefaults(t *testing.T) {
	f := newRequestTypeFixture()

	resp, err := f.svc.Create(context.Background(), CreateRequestTypeDTO{Name: "Hardware"}, f.admin)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Code, "REQ"), "code is generated when absent")
	assert.True(t, resp.RequiresApproval)
	assert.Equal(t, 1, resp.ApprovalLevels)
	assert.True(t, resp.Active)
	assert.Contains(t, f.audits.actions(), model.ActionCreateRequestType)
}

func TestRequestTypeCreateExplicitSettings(t *testing.T) {
	f := newRequestTypeFixture()

	noApproval := false
	resp, err := f.svc.Create(context.Background(), CreateRequestTypeDTO{
		Name:             "Consumable",
		Code:             "CONS01",
		RequiresApproval: &noApproval,
		ApprovalLevels:   3,
	}, f.admin)
	require.NoError(t, err)

	assert.Equal(t, "CONS01", resp.Code)
	assert.False(t, resp.RequiresApproval)
	assert.Equal(t, 3, resp.ApprovalLevels)
}

func TestRequestTypeCreateDuplicateName(t *testing.T) {
	f := newRequestTypeFixture()

	_, err := f.svc.Create(context.Background(), CreateRequestTypeDTO{Name: "Hardware"}, f.admin)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), CreateRequestTypeDTO{Name: "Hardware"}, f.admin)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestRequestTypeUpdateKeepsApprovalSemantics(t *testing.T) {
	f := newRequestTypeFixture()

	created, err := f.svc.Create(context.Background(), CreateRequestTypeDTO{Name: "Hardware", ApprovalLevels: 2}, f.admin)
	require.NoError(t, err)

	inactive := false
	updated, err := f.svc.Update(context.Background(), created.ID, UpdateRequestTypeDTO{
		Name:        "Hardware & Peripherals",
		Description: "Laptops, monitors, accessories",
		Active:      &inactive,
	}, f.admin)
	require.NoError(t, err)

	assert.Equal(t, "Hardware & Peripherals", updated.Name)
	assert.False(t, updated.Active)
	assert.Equal(t, 2, updated.ApprovalLevels, "approval semantics are immutable after creation")
	assert.True(t, updated.RequiresApproval)
	assert.Contains(t, f.audits.actions(), model.ActionUpdateRequestType)
}

func TestRequestTypeDeleteBlockedByReferences(t *testing.T) {
	f := newRequestTypeFixture()

	created, err := f.svc.Create(context.Background(), CreateRequestTypeDTO{Name: "Hardware"}, f.admin)
	require.NoError(t, err)

	for id := range f.repo.types {
		f.repo.referencing[id] = 4
	}

	err = f.svc.Delete(context.Background(), created.ID, f.admin)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// Still present after the refused delete, and no delete audit written.
	got, err := f.svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.NotContains(t, f.audits.actions(), model.ActionDeleteRequestType)
}

func TestRequestTypeDeleteUnreferenced(t *testing.T) {
	f := newRequestTypeFixture()

	created, err := f.svc.Create(context.Background(), CreateRequestTypeDTO{Name: "Hardware"}, f.admin)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), created.ID, f.admin))

	_, err = f.svc.GetByID(context.Background(), created.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Contains(t, f.audits.actions(), model.ActionDeleteRequestType)
}

func TestRequestTypeGetInvalidID(t *testing.T) {
	f := newRequestTypeFixture()

	_, err := f.svc.GetByID(context.Background(), "not-a-uuid")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRequestTypeListActiveOnly(t *testing.T) {
	f := newRequestTypeFixture()

	_, err := f.svc.Create(context.Background(), CreateRequestTypeDTO{Name: "Hardware"}, f.admin)
	require.NoError(t, err)
	created, err := f.svc.Create(context.Background(), CreateRequestTypeDTO{Name: "Software"}, f.admin)
	require.NoError(t, err)

	inactive := false
	_, err = f.svc.Update(context.Background(), created.ID, UpdateRequestTypeDTO{Active: &inactive}, f.admin)
	require.NoError(t, err)

	active, total, err := f.svc.List(context.Background(), true, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, "Hardware", active[0].Name)

	all, total, err := f.svc.List(context.Background(), false, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)
}
