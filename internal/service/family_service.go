package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/melodia-school/melodia-api/internal/models"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
)

type familyRepository interface {
	List(ctx context.Context, filter models.FamilyFilter) ([]models.FamilyDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.FamilyDetail, error)
	Create(ctx context.Context, family *models.Family) error
	Update(ctx context.Context, family *models.Family) error
}

// CreateFamilyRequest holds payload for registering a family account.
type CreateFamilyRequest struct {
	Name           string  `json:"name" validate:"required"`
	PrimaryContact string  `json:"primary_contact" validate:"required"`
	Email          string  `json:"email" validate:"required,email"`
	Phone          *string `json:"phone"`
}

// UpdateFamilyRequest holds payload for updating a family account. Status is
// managed exclusively through the status change endpoint.
type UpdateFamilyRequest struct {
	Name           string  `json:"name" validate:"required"`
	PrimaryContact string  `json:"primary_contact" validate:"required"`
	Email          string  `json:"email" validate:"required,email"`
	Phone          *string `json:"phone"`
}

// FamilyService handles family account use-cases.
type FamilyService struct {
	repo      familyRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFamilyService constructs the family service.
func NewFamilyService(repo familyRepository, validate *validator.Validate, logger *zap.Logger) *FamilyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FamilyService{repo: repo, validator: validate, logger: logger}
}

// List returns families and pagination metadata.
func (s *FamilyService) List(ctx context.Context, filter models.FamilyFilter) ([]models.FamilyDetail, *models.Pagination, error) {
	families, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list families")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return families, pagination, nil
}

// Get returns detailed family information.
func (s *FamilyService) Get(ctx context.Context, id string) (*models.FamilyDetail, error) {
	family, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}
	return family, nil
}

// Create registers a new family account.
func (s *FamilyService) Create(ctx context.Context, req CreateFamilyRequest) (*models.Family, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid family payload")
	}
	status := models.FamilyStatusActive
	family := &models.Family{
		Name:           req.Name,
		PrimaryContact: req.PrimaryContact,
		Email:          req.Email,
		Phone:          req.Phone,
		Status:         &status,
	}
	if err := s.repo.Create(ctx, family); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create family")
	}
	return family, nil
}

// Update modifies an existing family's contact fields.
func (s *FamilyService) Update(ctx context.Context, id string, req UpdateFamilyRequest) (*models.Family, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid family payload")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}

	family := existing.Family
	family.Name = req.Name
	family.PrimaryContact = req.PrimaryContact
	family.Email = req.Email
	family.Phone = req.Phone

	if err := s.repo.Update(ctx, &family); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update family")
	}
	return &family, nil
}
