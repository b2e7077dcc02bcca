package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/melodia-school/melodia-api/internal/models"
	"github.com/melodia-school/melodia-api/internal/service"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
	"github.com/melodia-school/melodia-api/pkg/response"
)

// FamilyHandler exposes family account endpoints.
type FamilyHandler struct {
	families *service.FamilyService
	status   *service.StatusService
}

// NewFamilyHandler constructs FamilyHandler.
func NewFamilyHandler(families *service.FamilyService, status *service.StatusService) *FamilyHandler {
	return &FamilyHandler{families: families, status: status}
}

// List godoc
// @Summary List families
// @Tags Families
// @Produce json
// @Param search query string false "Search by name or contact"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /families [get]
func (h *FamilyHandler) List(c *gin.Context) {
	var filter models.FamilyFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Status = models.FamilyStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	families, pagination, err := h.families.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, families, pagination)
}

// Get godoc
// @Summary Get family detail
// @Tags Families
// @Produce json
// @Param id path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /families/{id} [get]
func (h *FamilyHandler) Get(c *gin.Context) {
	family, err := h.families.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, family, nil)
}

// Create godoc
// @Summary Register a family account
// @Tags Families
// @Accept json
// @Produce json
// @Param payload body service.CreateFamilyRequest true "Family payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /families [post]
func (h *FamilyHandler) Create(c *gin.Context) {
	var req service.CreateFamilyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	family, err := h.families.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, family)
}

// Update godoc
// @Summary Update a family's contact fields
// @Tags Families
// @Accept json
// @Produce json
// @Param id path string true "Family ID"
// @Param payload body service.UpdateFamilyRequest true "Family payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /families/{id} [put]
func (h *FamilyHandler) Update(c *gin.Context) {
	var req service.UpdateFamilyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	family, err := h.families.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, family, nil)
}

// ChangeStatus godoc
// @Summary Toggle a family between active and inactive
// @Tags Families
// @Accept json
// @Produce json
// @Param id path string true "Family ID"
// @Param payload body service.ChangeStatusRequest true "Target status and reason"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /families/{id}/status [put]
func (h *FamilyHandler) ChangeStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	perms := h.status.PermissionsFor(claims.Role, models.StatusEntityFamily)
	if !perms.CanEdit {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role cannot edit family status"))
		return
	}

	var req service.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.status.ChangeFamilyStatus(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// StatusHistory godoc
// @Summary List a family's recent status transitions
// @Tags Families
// @Produce json
// @Param id path string true "Family ID"
// @Param limit query int false "Maximum entries (default 10)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /families/{id}/status/history [get]
func (h *FamilyHandler) StatusHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	entries := h.status.GetStatusHistory(c.Request.Context(), models.StatusEntityFamily, c.Param("id"), limit)
	response.JSON(c, http.StatusOK, entries, nil)
}
