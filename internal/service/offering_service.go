package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/melodia-school/melodia-api/internal/models"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
)

type offeringRepository interface {
	List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
	Create(ctx context.Context, offering *models.Offering) error
	Update(ctx context.Context, offering *models.Offering) error
	Deactivate(ctx context.Context, id string) error
}

// OfferingRequest holds payload for creating or updating offerings.
type OfferingRequest struct {
	ProgramID      string    `json:"program_id" validate:"required"`
	TeacherID      string    `json:"teacher_id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	DaysOfWeek     []int64   `json:"days_of_week" validate:"required,min=1,dive,gte=0,lte=6"`
	StartTime      string    `json:"start_time" validate:"required"`
	EndTime        string    `json:"end_time" validate:"required"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	StopDate       time.Time `json:"stop_date" validate:"required"`
	DeliveryMethod string    `json:"delivery_method" validate:"required,oneof=onsite virtual"`
	Location       *string   `json:"location"`
	MonthlyFee     int64     `json:"monthly_fee_cents" validate:"gte=0"`
	Capacity       int       `json:"capacity" validate:"gte=0"`
	Active         bool      `json:"active"`
}

// OfferingService handles offering schedule use-cases.
type OfferingService struct {
	repo      offeringRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOfferingService constructs the offering service.
func NewOfferingService(repo offeringRepository, validate *validator.Validate, logger *zap.Logger) *OfferingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferingService{repo: repo, validator: validate, logger: logger}
}

// List returns offerings and pagination metadata.
func (s *OfferingService) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, *models.Pagination, error) {
	offerings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
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
	return offerings, pagination, nil
}

// Get returns a single offering with program and teacher context.
func (s *OfferingService) Get(ctx context.Context, id string) (*models.OfferingDetail, error) {
	offering, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return offering, nil
}

// Create registers a new offering.
func (s *OfferingService) Create(ctx context.Context, req OfferingRequest) (*models.Offering, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	offering := s.buildOffering(req)
	if err := s.repo.Create(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offering")
	}
	return offering, nil
}

// Update modifies an existing offering.
func (s *OfferingService) Update(ctx context.Context, id string, req OfferingRequest) (*models.Offering, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	offering := s.buildOffering(req)
	offering.ID = existing.ID
	offering.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update offering")
	}
	return offering, nil
}

// Deactivate removes an offering from the published schedule.
func (s *OfferingService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate offering")
	}
	return nil
}

func (s *OfferingService) validateRequest(req OfferingRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}
	start, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("start_time %q is not HH:MM", req.StartTime))
	}
	end, err := time.Parse("15:04", req.EndTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("end_time %q is not HH:MM", req.EndTime))
	}
	if !end.After(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	if req.StopDate.Before(req.StartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "stop_date precedes start_date")
	}
	return nil
}

func (s *OfferingService) buildOffering(req OfferingRequest) *models.Offering {
	return &models.Offering{
		ProgramID:      req.ProgramID,
		TeacherID:      req.TeacherID,
		Name:           req.Name,
		DaysOfWeek:     pq.Int64Array(req.DaysOfWeek),
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		StartDate:      req.StartDate,
		StopDate:       req.StopDate,
		DeliveryMethod: models.DeliveryMethod(req.DeliveryMethod),
		Location:       req.Location,
		MonthlyFee:     req.MonthlyFee,
		Capacity:       req.Capacity,
		Active:         req.Active,
	}
}
