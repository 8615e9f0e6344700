package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assethub/internal/model"
	"assethub/internal/repository"
	"assethub/pkg/apperr"
	"assethub/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateDepartmentDTO struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	Location    string `json:"location" binding:"omitempty,max=100"`
}

type DepartmentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	CreatedAt   string `json:"created_at"`
}

// DepartmentService manages departments used for user membership and
// approval notification fan-out.
type DepartmentService interface {
	Create(ctx context.Context, req CreateDepartmentDTO) (DepartmentResponse, error)
	GetByID(ctx context.Context, id string) (DepartmentResponse, error)
	List(ctx context.Context, page, limit int) ([]DepartmentResponse, int64, error)
	Update(ctx context.Context, id string, req CreateDepartmentDTO) (DepartmentResponse, error)
	Delete(ctx context.Context, id string) error
}

type departmentService struct {
	repo repository.DepartmentRepository
}

func NewDepartmentService(repo repository.DepartmentRepository) DepartmentService {
	return &departmentService{repo: repo}
}

func (s *departmentService) Create(ctx context.Context, req CreateDepartmentDTO) (DepartmentResponse, error) {
	dept := model.Department{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
	}
	if err := s.repo.Create(ctx, &dept); err != nil {
		return DepartmentResponse{}, fmt.Errorf("failed to create department: %w", err)
	}
	return toDepartmentResponse(&dept), nil
}

func (s *departmentService) GetByID(ctx context.Context, id string) (DepartmentResponse, error) {
	dept, err := s.find(ctx, id)
	if err != nil {
		return DepartmentResponse{}, err
	}
	return toDepartmentResponse(dept), nil
}

func (s *departmentService) List(ctx context.Context, page, limit int) ([]DepartmentResponse, int64, error) {
	p := pagination.Normalize(page, limit)

	depts, total, err := s.repo.List(ctx, p.Page, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list departments: %w", err)
	}

	result := make([]DepartmentResponse, 0, len(depts))
	for i := range depts {
		result = append(result, toDepartmentResponse(&depts[i]))
	}
	return result, total, nil
}

func (s *departmentService) Update(ctx context.Context, id string, req CreateDepartmentDTO) (DepartmentResponse, error) {
	dept, err := s.find(ctx, id)
	if err != nil {
		return DepartmentResponse{}, err
	}

	dept.Name = req.Name
	dept.Description = req.Description
	dept.Location = req.Location

	if err := s.repo.Update(ctx, dept); err != nil {
		return DepartmentResponse{}, fmt.Errorf("failed to update department: %w", err)
	}
	return toDepartmentResponse(dept), nil
}

func (s *departmentService) Delete(ctx context.Context, id string) error {
	dept, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	members, err := s.repo.CountMembers(ctx, dept.ID)
	if err != nil {
		return fmt.Errorf("failed to count department members: %w", err)
	}
	if members > 0 {
		return apperr.Conflict(fmt.Sprintf("department %q still has %d member(s)", dept.Name, members))
	}

	return s.repo.Delete(ctx, dept.ID)
}

func (s *departmentService) find(ctx context.Context, id string) (*model.Department, error) {
	deptID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid department id: %v", err)
	}
	dept, err := s.repo.FindByID(ctx, deptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("department", id)
		}
		return nil, fmt.Errorf("failed to load department: %w", err)
	}
	return dept, nil
}

func toDepartmentResponse(d *model.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:          d.ID.String(),
		Name:        d.Name,
		Description: d.Description,
		Location:    d.Location,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
	}
}
