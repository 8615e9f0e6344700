package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assethub/internal/model"
	"assethub/internal/repository"
	"assethub/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required,max=50"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"` // Permission UUIDs
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Description string `json:"description"`
}

type UpdateRolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

// RoleService manages the RBAC registry backing the permission middleware.
type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (RoleResponse, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (RoleResponse, error)
	DeleteRole(ctx context.Context, id string) error
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (RoleResponse, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	repo repository.RoleRepository
	txm  repository.TransactionManager
}

func NewRoleService(repo repository.RoleRepository, txm repository.TransactionManager) RoleService {
	return &roleService{repo: repo, txm: txm}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		res = append(res, toRoleResponse(&roles[i]))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (RoleResponse, error) {
	role, err := s.findWithPermissions(ctx, id)
	if err != nil {
		return RoleResponse{}, err
	}
	return toRoleResponse(role), nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (RoleResponse, error) {
	permIDs, err := parsePermissionIDs(req.Permissions)
	if err != nil {
		return RoleResponse{}, err
	}

	role := model.Role{
		Name:        req.Name,
		Description: req.Description,
		IsSystem:    false,
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.repo.Create(txCtx, &role); createErr != nil {
			return fmt.Errorf("failed to create role: %w", createErr)
		}
		if len(permIDs) > 0 {
			if assignErr := s.repo.ReplacePermissions(txCtx, &role, permIDs); assignErr != nil {
				return fmt.Errorf("failed to assign permissions: %w", assignErr)
			}
		}
		return nil
	})
	if err != nil {
		return RoleResponse{}, err
	}

	return s.GetRole(ctx, role.ID.String())
}

func (s *roleService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (RoleResponse, error) {
	role, err := s.findWithPermissions(ctx, id)
	if err != nil {
		return RoleResponse{}, err
	}
	if role.IsSystem {
		return RoleResponse{}, apperr.InvalidOperation(fmt.Sprintf("cannot rename system role %q", role.Name))
	}

	role.Name = req.Name
	role.Description = req.Description
	if err := s.repo.Update(ctx, role); err != nil {
		return RoleResponse{}, fmt.Errorf("failed to update role: %w", err)
	}

	return s.GetRole(ctx, id)
}

func (s *roleService) DeleteRole(ctx context.Context, id string) error {
	role, err := s.findWithPermissions(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return apperr.InvalidOperation(fmt.Sprintf("cannot delete system role %q", role.Name))
	}

	return s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if clearErr := s.repo.ClearPermissions(txCtx, role); clearErr != nil {
			return fmt.Errorf("failed to clear permissions: %w", clearErr)
		}
		if deleteErr := s.repo.Delete(txCtx, role.ID); deleteErr != nil {
			return fmt.Errorf("failed to delete role: %w", deleteErr)
		}
		return nil
	})
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (RoleResponse, error) {
	role, err := s.findWithPermissions(ctx, roleID)
	if err != nil {
		return RoleResponse{}, err
	}

	permIDs, err := parsePermissionIDs(req.PermissionIDs)
	if err != nil {
		return RoleResponse{}, err
	}

	if err := s.repo.ReplacePermissions(ctx, role, permIDs); err != nil {
		return RoleResponse{}, fmt.Errorf("failed to update permissions: %w", err)
	}

	return s.GetRole(ctx, roleID)
}

// SeedDefaultRolesAndPermissions upserts the permission catalogue and the
// built-in ADMIN/MANAGER/STAFF roles. Idempotent; runs at startup.
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	defaultPermissions := []model.Permission{
		{Code: "requests.read", Name: "View asset requests", Group: "requests"},
		{Code: "requests.approve", Name: "Approve or reject asset requests", Group: "requests"},
		{Code: "assets.read", Name: "View assets", Group: "assets"},
		{Code: "assets.write", Name: "Manage assets", Group: "assets"},
		{Code: "assets.delete", Name: "Delete assets", Group: "assets"},
		{Code: "users.read", Name: "View users", Group: "users"},
		{Code: "users.write", Name: "Manage users", Group: "users"},
		{Code: "users.delete", Name: "Delete users", Group: "users"},
		{Code: "roles.manage", Name: "Manage roles and permissions", Group: "roles"},
	}

	for i := range defaultPermissions {
		if err := s.repo.FindOrCreatePermission(ctx, &defaultPermissions[i]); err != nil {
			return fmt.Errorf("failed to seed permission %q: %w", defaultPermissions[i].Code, err)
		}
	}

	permByCode := make(map[string]model.Permission, len(defaultPermissions))
	for _, p := range defaultPermissions {
		permByCode[p.Code] = p
	}

	roleDefinitions := []struct {
		Name        string
		Description string
		PermCodes   []string
	}{
		{
			Name:        model.RoleAdmin,
			Description: "Administrator with full system access",
			PermCodes: []string{
				"requests.read", "requests.approve",
				"assets.read", "assets.write", "assets.delete",
				"users.read", "users.write", "users.delete",
				"roles.manage",
			},
		},
		{
			Name:        model.RoleManager,
			Description: "Manager who approves requests and manages assets",
			PermCodes: []string{
				"requests.read", "requests.approve",
				"assets.read", "assets.write",
				"users.read",
			},
		},
		{
			Name:        model.RoleStaff,
			Description: "Employee who raises requests and browses assets",
			PermCodes: []string{
				"requests.read",
				"assets.read",
			},
		},
	}

	for _, def := range roleDefinitions {
		role, err := s.repo.FindByName(ctx, def.Name)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up role %q: %w", def.Name, err)
			}
			role = &model.Role{
				Name:        def.Name,
				Description: def.Description,
				IsSystem:    true,
			}
			if err := s.repo.Create(ctx, role); err != nil {
				return fmt.Errorf("failed to seed role %q: %w", def.Name, err)
			}
		}

		permIDs := make([]uuid.UUID, 0, len(def.PermCodes))
		for _, code := range def.PermCodes {
			if p, ok := permByCode[code]; ok {
				permIDs = append(permIDs, p.ID)
			}
		}
		if err := s.repo.ReplacePermissions(ctx, role, permIDs); err != nil {
			return fmt.Errorf("failed to assign permissions to role %q: %w", def.Name, err)
		}
	}

	return nil
}

// --- Helpers ---

func (s *roleService) findWithPermissions(ctx context.Context, id string) (*model.Role, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid role id: %v", err)
	}
	role, err := s.repo.FindByIDWithPermissions(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("role", id)
		}
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	return role, nil
}

func parsePermissionIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, pid := range raw {
		parsed, err := uuid.Parse(pid)
		if err != nil {
			return nil, apperr.Validation("invalid permission id %q: %v", pid, err)
		}
		ids = append(ids, parsed)
	}
	return ids, nil
}

func toRoleResponse(r *model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}
