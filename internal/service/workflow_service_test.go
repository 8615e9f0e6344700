package service

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"assethub/internal/model"
	"assethub/internal/notification"
	"assethub/internal/repository"
	"assethub/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- In-memory fakes ---

type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeRequestRepo struct {
	requests  map[uuid.UUID]*model.AssetRequest
	approvals map[uuid.UUID][]*model.RequestApproval
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{
		requests:  make(map[uuid.UUID]*model.AssetRequest),
		approvals: make(map[uuid.UUID][]*model.RequestApproval),
	}
}

func (r *fakeRequestRepo) Create(_ context.Context, req *model.AssetRequest) error {
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	r.requests[req.ID] = req
	return nil
}

func (r *fakeRequestRepo) CreateApprovals(_ context.Context, approvals []model.RequestApproval) error {
	for i := range approvals {
		a := approvals[i]
		a.ID = uuid.New()
		a.CreatedAt = time.Now()
		r.approvals[a.RequestID] = append(r.approvals[a.RequestID], &a)
	}
	return nil
}

func (r *fakeRequestRepo) FindByRequestID(_ context.Context, requestID string) (*model.AssetRequest, error) {
	for _, req := range r.requests {
		if req.RequestID == requestID {
			return req, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRequestRepo) FindByRequestIDWithRelations(ctx context.Context, requestID string) (*model.AssetRequest, error) {
	req, err := r.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	chain, _ := r.ListApprovals(ctx, req.ID)
	req.Approvals = chain
	return req, nil
}

func (r *fakeRequestRepo) List(_ context.Context, filter repository.RequestFilter) ([]model.AssetRequest, int64, error) {
	var out []model.AssetRequest
	for _, req := range r.requests {
		if !req.Active {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && req.Priority != filter.Priority {
			continue
		}
		if filter.RequesterID != nil && req.RequesterID != *filter.RequesterID {
			continue
		}
		out = append(out, *req)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRequestRepo) Update(_ context.Context, req *model.AssetRequest) error {
	r.requests[req.ID] = req
	return nil
}

func (r *fakeRequestRepo) FirstUnassignedPending(_ context.Context, requestPK uuid.UUID) (*model.RequestApproval, error) {
	var candidate *model.RequestApproval
	for _, a := range r.approvals[requestPK] {
		if a.ApproverID != nil || a.Status != model.RequestStatusPending {
			continue
		}
		if candidate == nil || a.ApprovalLevel < candidate.ApprovalLevel {
			candidate = a
		}
	}
	if candidate == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return candidate, nil
}

func (r *fakeRequestRepo) CountPendingApprovals(_ context.Context, requestPK uuid.UUID) (int64, error) {
	var count int64
	for _, a := range r.approvals[requestPK] {
		if a.Status == model.RequestStatusPending {
			count++
		}
	}
	return count, nil
}

func (r *fakeRequestRepo) ListApprovals(_ context.Context, requestPK uuid.UUID) ([]model.RequestApproval, error) {
	chain := append([]*model.RequestApproval(nil), r.approvals[requestPK]...)
	sort.Slice(chain, func(i, j int) bool { return chain[i].ApprovalLevel < chain[j].ApprovalLevel })
	out := make([]model.RequestApproval, 0, len(chain))
	for _, a := range chain {
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeRequestRepo) UpdateApproval(_ context.Context, approval *model.RequestApproval) error {
	for i, a := range r.approvals[approval.RequestID] {
		if a.ID == approval.ID {
			r.approvals[approval.RequestID][i] = approval
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeTypeRepo struct {
	types       map[uuid.UUID]*model.RequestType
	referencing map[uuid.UUID]int64
}

func newFakeTypeRepo() *fakeTypeRepo {
	return &fakeTypeRepo{
		types:       make(map[uuid.UUID]*model.RequestType),
		referencing: make(map[uuid.UUID]int64),
	}
}

func (r *fakeTypeRepo) Create(_ context.Context, rt *model.RequestType) error {
	rt.ID = uuid.New()
	rt.CreatedAt = time.Now()
	r.types[rt.ID] = rt
	return nil
}

func (r *fakeTypeRepo) FindByID(_ context.Context, id uuid.UUID) (*model.RequestType, error) {
	rt, ok := r.types[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rt, nil
}

func (r *fakeTypeRepo) List(_ context.Context, activeOnly bool, _, _ int) ([]model.RequestType, int64, error) {
	var out []model.RequestType
	for _, rt := range r.types {
		if activeOnly && !rt.Active {
			continue
		}
		out = append(out, *rt)
	}
	return out, int64(len(out)), nil
}

func (r *fakeTypeRepo) Update(_ context.Context, rt *model.RequestType) error {
	r.types[rt.ID] = rt
	return nil
}

func (r *fakeTypeRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.types, id)
	return nil
}

func (r *fakeTypeRepo) CountByName(_ context.Context, name string, excludeID *uuid.UUID) (int64, error) {
	var count int64
	for _, rt := range r.types {
		if excludeID != nil && rt.ID == *excludeID {
			continue
		}
		if rt.Name == name {
			count++
		}
	}
	return count, nil
}

func (r *fakeTypeRepo) CountReferencingRequests(_ context.Context, id uuid.UUID) (int64, error) {
	return r.referencing[id], nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	user, ok := r.users[parsed]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) List(_ context.Context, _, _ int) ([]model.User, int64, error) {
	var out []model.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return gorm.ErrRecordNotFound
	}
	delete(r.users, parsed)
	return nil
}

func (r *fakeUserRepo) ManagersByDepartment(_ context.Context, departmentID uuid.UUID) ([]model.User, error) {
	var out []model.User
	for _, u := range r.users {
		if u.Role == model.RoleManager && u.DepartmentID != nil && *u.DepartmentID == departmentID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) CreateRefreshToken(_ context.Context, _ *model.RefreshToken) error { return nil }
func (r *fakeUserRepo) GetRefreshToken(_ context.Context, _ string) (*model.RefreshToken, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeUserRepo) DeleteRefreshToken(_ context.Context, _ string) error          { return nil }
func (r *fakeUserRepo) DeleteRefreshTokensForUser(_ context.Context, _ uuid.UUID) error { return nil }

type fakeAuditRepo struct {
	entries []model.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, action string, _, _ int) ([]model.AuditLog, int64, error) {
	var out []model.AuditLog
	for _, e := range r.entries {
		if action != "" && e.Action != action {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

func (r *fakeAuditRepo) actions() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type reassignment struct {
	AssetID  uuid.UUID
	HolderID uuid.UUID
}

type fakeAssetMutator struct {
	reassignments []reassignment
}

func (m *fakeAssetMutator) Reassign(_ context.Context, assetID, holderID uuid.UUID) error {
	m.reassignments = append(m.reassignments, reassignment{AssetID: assetID, HolderID: holderID})
	return nil
}

type sentEvent struct {
	Event       string
	RecipientID uuid.UUID
}

type fakeNotifier struct {
	events []sentEvent
}

func (n *fakeNotifier) Notify(event string, recipientID uuid.UUID, _ interface{}) {
	n.events = append(n.events, sentEvent{Event: event, RecipientID: recipientID})
}

func (n *fakeNotifier) eventNames() []string {
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Event)
	}
	return out
}

// --- Fixture ---

type workflowFixture struct {
	requests *fakeRequestRepo
	types    *fakeTypeRepo
	users    *fakeUserRepo
	audits   *fakeAuditRepo
	assets   *fakeAssetMutator
	notifier *fakeNotifier
	svc      WorkflowService
}

func newWorkflowFixture() *workflowFixture {
	f := &workflowFixture{
		requests: newFakeRequestRepo(),
		types:    newFakeTypeRepo(),
		users:    newFakeUserRepo(),
		audits:   &fakeAuditRepo{},
		assets:   &fakeAssetMutator{},
		notifier: &fakeNotifier{},
	}
	f.svc = NewWorkflowService(f.requests, f.types, f.users, f.audits, fakeTxManager{}, f.assets, f.notifier)
	return f
}

func (f *workflowFixture) seedUser(t *testing.T, role string, departmentID *uuid.UUID) *model.User {
	t.Helper()
	user := &model.User{
		ID:           uuid.New(),
		Username:     "user-" + uuid.NewString()[:8],
		Email:        uuid.NewString()[:8] + "@example.com",
		EmployeeID:   "EMP" + uuid.NewString()[:5],
		Role:         role,
		DepartmentID: departmentID,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *workflowFixture) seedType(t *testing.T, levels int, requiresApproval bool) *model.RequestType {
	t.Helper()
	rt := &model.RequestType{
		Name:             "type-" + uuid.NewString()[:8],
		Code:             "REQ" + strings.ToUpper(uuid.NewString()[:6]),
		RequiresApproval: requiresApproval,
		ApprovalLevels:   levels,
		Active:           true,
	}
	require.NoError(t, f.types.Create(context.Background(), rt))
	return rt
}

func (f *workflowFixture) createRequest(t *testing.T, requesterID uuid.UUID, typeID uuid.UUID, assetID string) AssetRequestResponse {
	t.Helper()
	resp, err := f.svc.CreateRequest(context.Background(), CreateRequestDTO{
		RequestTypeID: typeID.String(),
		Title:         "Laptop replacement",
		Description:   "Current unit fails POST intermittently",
		AssetID:       assetID,
	}, requesterID)
	require.NoError(t, err)
	return resp
}

// --- CreateRequest ---

func TestCreateRequestBuildsFullApprovalChain(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	rt := f.seedType(t, 3, true)

	resp := f.createRequest(t, requester.ID, rt.ID, "")

	assert.True(t, strings.HasPrefix(resp.RequestID, "REQ"))
	assert.Equal(t, model.RequestStatusPending, resp.Status)
	require.Len(t, resp.Approvals, 3)
	for i, a := range resp.Approvals {
		assert.Equal(t, i+1, a.ApprovalLevel)
		assert.Equal(t, model.RequestStatusPending, a.Status)
		assert.Nil(t, a.ApproverID)
		assert.Nil(t, a.ApprovalDate)
	}

	assert.Contains(t, f.audits.actions(), model.ActionCreateRequest)
	assert.Contains(t, f.notifier.eventNames(), notification.EventRequestCreated)
}

func TestCreateRequestNoApprovalTypeHasEmptyChain(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	rt := f.seedType(t, 1, false)

	resp := f.createRequest(t, requester.ID, rt.ID, "")

	assert.Equal(t, model.RequestStatusPending, resp.Status)
	assert.Empty(t, resp.Approvals)

	// A request without a chain can never be resolved through approvals.
	approver := f.seedUser(t, model.RoleManager, nil)
	_, err := f.svc.ProcessApproval(context.Background(), resp.RequestID, approver.ID, model.RequestStatusApproved, "")
	assert.True(t, apperr.IsKind(err, apperr.KindNoPendingApproval))
}

func TestCreateRequestRejectsPastDesiredDate(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	rt := f.seedType(t, 2, true)

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	_, err := f.svc.CreateRequest(context.Background(), CreateRequestDTO{
		RequestTypeID: rt.ID.String(),
		Title:         "Monitor",
		Description:   "Second screen",
		DesiredDate:   yesterday,
	}, requester.ID)

	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, f.requests.requests, "nothing may be persisted on validation failure")
	assert.Empty(t, f.notifier.events)
}

func TestCreateRequestAcceptsTodayAsDesiredDate(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	rt := f.seedType(t, 1, true)

	today := time.Now().Format("2006-01-02")
	resp, err := f.svc.CreateRequest(context.Background(), CreateRequestDTO{
		RequestTypeID: rt.ID.String(),
		Title:         "Desk",
		Description:   "Standing desk",
		DesiredDate:   today,
	}, requester.ID)

	require.NoError(t, err)
	require.NotNil(t, resp.DesiredDate)
	assert.Equal(t, today, *resp.DesiredDate)
}

func TestCreateRequestRejectsInactiveType(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	rt := f.seedType(t, 1, true)
	rt.Active = false

	_, err := f.svc.CreateRequest(context.Background(), CreateRequestDTO{
		RequestTypeID: rt.ID.String(),
		Title:         "Chair",
		Description:   "Ergonomic chair",
	}, requester.ID)

	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateRequestUnknownTypeIsNotFound(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)

	_, err := f.svc.CreateRequest(context.Background(), CreateRequestDTO{
		RequestTypeID: uuid.NewString(),
		Title:         "Chair",
		Description:   "Ergonomic chair",
	}, requester.ID)

	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCreateRequestNotifiesDepartmentManagers(t *testing.T) {
	f := newWorkflowFixture()
	deptID := uuid.New()
	requester := f.seedUser(t, model.RoleStaff, &deptID)
	manager := f.seedUser(t, model.RoleManager, &deptID)
	otherDept := uuid.New()
	f.seedUser(t, model.RoleManager, &otherDept)
	rt := f.seedType(t, 1, true)

	f.createRequest(t, requester.ID, rt.ID, "")

	var fanOut []uuid.UUID
	for _, e := range f.notifier.events {
		if e.Event == notification.EventNewRequestForApproval {
			fanOut = append(fanOut, e.RecipientID)
		}
	}
	require.Len(t, fanOut, 1, "only same-department managers are notified")
	assert.Equal(t, manager.ID, fanOut[0])
}

// --- ProcessApproval ---

func TestProcessApprovalTwoLevelHappyPath(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	rt := f.seedType(t, 2, true)
	assetID := uuid.New()
	resp := f.createRequest(t, requester.ID, rt.ID, assetID.String())

	first := f.seedUser(t, model.RoleManager, nil)
	second := f.seedUser(t, model.RoleAdmin, nil)

	// First sign-off resolves level 1 only; the request stays pending.
	a1, err := f.svc.ProcessApproval(context.Background(), resp.RequestID, first.ID, model.RequestStatusApproved, "looks fine")
	require.NoError(t, err)
	assert.Equal(t, 1, a1.ApprovalLevel)
	assert.Equal(t, model.RequestStatusApproved, a1.Status)
	require.NotNil(t, a1.ApproverID)
	assert.Equal(t, first.ID.String(), *a1.ApproverID)
	assert.NotNil(t, a1.ApprovalDate)

	mid, err := f.svc.GetRequest(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusPending, mid.Status)
	assert.Nil(t, mid.CompletionDate)
	assert.Empty(t, f.assets.reassignments)

	// Second sign-off completes the chain.
	a2, err := f.svc.ProcessApproval(context.Background(), resp.RequestID, second.ID, model.RequestStatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, 2, a2.ApprovalLevel)

	final, err := f.svc.GetRequest(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusApproved, final.Status)
	assert.NotNil(t, final.CompletionDate)

	require.Len(t, f.assets.reassignments, 1)
	assert.Equal(t, assetID, f.assets.reassignments[0].AssetID)
	assert.Equal(t, requester.ID, f.assets.reassignments[0].HolderID)

	assert.Contains(t, f.notifier.eventNames(), notification.EventRequestApproved)
}

func TestProcessApprovalRejectionResolvesWholeChainFirst(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	rt := f.seedType(t, 2, true)
	assetID := uuid.New()
	resp := f.createRequest(t, requester.ID, rt.ID, assetID.String())

	first := f.seedUser(t, model.RoleManager, nil)
	second := f.seedUser(t, model.RoleAdmin, nil)

	// A rejection at level 1 does not short-circuit the chain.
	_, err := f.svc.ProcessApproval(context.Background(), resp.RequestID, first.ID, model.RequestStatusRejected, "not budgeted")
	require.NoError(t, err)

	mid, err := f.svc.GetRequest(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusPending, mid.Status)

	// Once every slot is resolved, any rejection makes the request REJECTED.
	_, err = f.svc.ProcessApproval(context.Background(), resp.RequestID, second.ID, model.RequestStatusApproved, "")
	require.NoError(t, err)

	final, err := f.svc.GetRequest(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusRejected, final.Status)
	assert.Nil(t, final.CompletionDate, "rejected requests never get a completion date")
	assert.Empty(t, f.assets.reassignments, "rejected requests never reassign the asset")

	assert.Contains(t, f.notifier.eventNames(), notification.EventRequestRejected)
}

func TestProcessApprovalResolvesLowestLevelFirst(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	rt := f.seedType(t, 3, true)
	resp := f.createRequest(t, requester.ID, rt.ID, "")
	approver := f.seedUser(t, model.RoleManager, nil)

	for wantLevel := 1; wantLevel <= 3; wantLevel++ {
		a, err := f.svc.ProcessApproval(context.Background(), resp.RequestID, approver.ID, model.RequestStatusApproved, "")
		require.NoError(t, err)
		assert.Equal(t, wantLevel, a.ApprovalLevel)
	}
}

func TestProcessApprovalExhaustedChainConflicts(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	rt := f.seedType(t, 1, true)
	resp := f.createRequest(t, requester.ID, rt.ID, "")
	approver := f.seedUser(t, model.RoleManager, nil)

	_, err := f.svc.ProcessApproval(context.Background(), resp.RequestID, approver.ID, model.RequestStatusApproved, "")
	require.NoError(t, err)

	// The request reached a terminal state with the last sign-off.
	_, err = f.svc.ProcessApproval(context.Background(), resp.RequestID, approver.ID, model.RequestStatusApproved, "")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidOperation))
}

func TestProcessApprovalRefusedOnCancelledRequest(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	approver := f.seedUser(t, model.RoleManager, nil)
	assetID := uuid.New()
	rt := f.seedType(t, 1, true)
	resp := f.createRequest(t, requester.ID, rt.ID, assetID.String())

	_, err := f.svc.CancelRequest(context.Background(), resp.RequestID, Actor{ID: requester.ID})
	require.NoError(t, err)

	// Cancellation leaves the slot PENDING, but resolving it afterwards must
	// not flip the request back to APPROVED.
	_, err = f.svc.ProcessApproval(context.Background(), resp.RequestID, approver.ID, model.RequestStatusApproved, "")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidOperation))

	final, err := f.svc.GetRequest(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusCancelled, final.Status)
	assert.Nil(t, final.CompletionDate)
	require.Len(t, final.Approvals, 1)
	assert.Equal(t, model.RequestStatusPending, final.Approvals[0].Status)
	assert.Nil(t, final.Approvals[0].ApproverID)
	assert.Empty(t, f.assets.reassignments)
	assert.NotContains(t, f.audits.actions(), model.ActionApproveRequest)
}

func TestProcessApprovalValidatesDecision(t *testing.T) {
	f := newWorkflowFixture()
	approver := f.seedUser(t, model.RoleManager, nil)

	_, err := f.svc.ProcessApproval(context.Background(), "REQABCDEF", approver.ID, "MAYBE", "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.svc.ProcessApproval(context.Background(), "REQABCDEF", approver.ID, model.RequestStatusApproved, "")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

// --- CancelRequest ---

func TestCancelRequestByRequester(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	rt := f.seedType(t, 2, true)
	resp := f.createRequest(t, requester.ID, rt.ID, "")

	final, err := f.svc.CancelRequest(context.Background(), resp.RequestID, Actor{ID: requester.ID})
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusCancelled, final.Status)

	// Approval slots keep whatever state they had reached.
	require.Len(t, final.Approvals, 2)
	for _, a := range final.Approvals {
		assert.Equal(t, model.RequestStatusPending, a.Status)
	}

	assert.Contains(t, f.audits.actions(), model.ActionCancelRequest)
	assert.Contains(t, f.notifier.eventNames(), notification.EventRequestCancelled)
}

func TestCancelRequestByAdminOverride(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	admin := f.seedUser(t, model.RoleAdmin, nil)
	rt := f.seedType(t, 1, true)
	resp := f.createRequest(t, requester.ID, rt.ID, "")

	final, err := f.svc.CancelRequest(context.Background(), resp.RequestID, Actor{ID: admin.ID, IsAdmin: true})
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusCancelled, final.Status)
}

func TestCancelRequestStrangerForbidden(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	stranger := f.seedUser(t, model.RoleManager, nil)
	rt := f.seedType(t, 1, true)
	resp := f.createRequest(t, requester.ID, rt.ID, "")

	_, err := f.svc.CancelRequest(context.Background(), resp.RequestID, Actor{ID: stranger.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	unchanged, err := f.svc.GetRequest(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusPending, unchanged.Status)
}

func TestCancelRequestAllowedFromApprovedState(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	approver := f.seedUser(t, model.RoleManager, nil)
	rt := f.seedType(t, 1, true)
	resp := f.createRequest(t, requester.ID, rt.ID, "")

	_, err := f.svc.ProcessApproval(context.Background(), resp.RequestID, approver.ID, model.RequestStatusApproved, "")
	require.NoError(t, err)

	final, err := f.svc.CancelRequest(context.Background(), resp.RequestID, Actor{ID: requester.ID})
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusCancelled, final.Status)
}

func TestCancelRequestTerminalStatesRejected(t *testing.T) {
	f := newWorkflowFixture()
	requester := f.seedUser(t, model.RoleStaff, nil)
	approver := f.seedUser(t, model.RoleManager, nil)
	rt := f.seedType(t, 1, true)

	// Cancelling twice fails the second time.
	resp := f.createRequest(t, requester.ID, rt.ID, "")
	_, err := f.svc.CancelRequest(context.Background(), resp.RequestID, Actor{ID: requester.ID})
	require.NoError(t, err)
	_, err = f.svc.CancelRequest(context.Background(), resp.RequestID, Actor{ID: requester.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidOperation))

	// A rejected request cannot be cancelled either.
	rejected := f.createRequest(t, requester.ID, rt.ID, "")
	_, err = f.svc.ProcessApproval(context.Background(), rejected.RequestID, approver.ID, model.RequestStatusRejected, "")
	require.NoError(t, err)
	_, err = f.svc.CancelRequest(context.Background(), rejected.RequestID, Actor{ID: requester.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidOperation))
}

// --- Listing ---

func TestListRequestsFilters(t *testing.T) {
	f := newWorkflowFixture()
	alice := f.seedUser(t, model.RoleStaff, nil)
	bob := f.seedUser(t, model.RoleStaff, nil)
	approver := f.seedUser(t, model.RoleManager, nil)
	rt := f.seedType(t, 1, true)

	first := f.createRequest(t, alice.ID, rt.ID, "")
	f.createRequest(t, bob.ID, rt.ID, "")
	_, err := f.svc.ProcessApproval(context.Background(), first.RequestID, approver.ID, model.RequestStatusApproved, "")
	require.NoError(t, err)

	approved, total, err := f.svc.ListRequests(context.Background(), RequestListFilter{Status: model.RequestStatusApproved})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, approved, 1)
	assert.Equal(t, first.RequestID, approved[0].RequestID)

	mine, total, err := f.svc.ListRequests(context.Background(), RequestListFilter{RequesterID: &bob.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, mine, 1)
	assert.Equal(t, bob.ID.String(), mine[0].RequesterID)
}

func TestGetRequestNotFound(t *testing.T) {
	f := newWorkflowFixture()
	_, err := f.svc.GetRequest(context.Background(), "REQMISSING")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
