package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// CatalogService serves read-only reference data.
type CatalogService struct {
	categories  repository.CategoryRepository
	departments repository.DepartmentRepository
	equipment   repository.EquipmentRepository
	cache       repository.CategoryCache
	logger      *zap.Logger
}

// CatalogDependencies bundles repositories for the catalog service.
type CatalogDependencies struct {
	CategoryRepo   repository.CategoryRepository
	DepartmentRepo repository.DepartmentRepository
	EquipmentRepo  repository.EquipmentRepository
	CategoryCache  repository.CategoryCache
	Logger         *zap.Logger
}

// NewCatalogService constructs the service.
func NewCatalogService(deps CatalogDependencies) *CatalogService {
	cache := deps.CategoryCache
	if cache == nil {
		cache = repository.NoopCategoryCache{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		categories:  deps.CategoryRepo,
		departments: deps.DepartmentRepo,
		equipment:   deps.EquipmentRepo,
		cache:       cache,
		logger:      logger,
	}
}

// ListCategories returns every category ordered by name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if cached, ok := s.cache.Get(ctx); ok {
		return cached, nil
	}
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	s.cache.Set(ctx, categories)
	return categories, nil
}

// ListDepartments returns every department ordered by name.
func (s *CatalogService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return departments, nil
}

// ListEquipment returns the equipment inventory ordered by name.
func (s *CatalogService) ListEquipment(ctx context.Context) ([]domain.Equipment, error) {
	equipment, err := s.equipment.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return equipment, nil
}

// InvalidateCategories drops the cached list after out-of-band writes.
func (s *CatalogService) InvalidateCategories(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("category cache invalidation failed", zap.Error(err))
	}
}
