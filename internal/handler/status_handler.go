package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/melodia-school/melodia-api/internal/models"
	"github.com/melodia-school/melodia-api/internal/service"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
	"github.com/melodia-school/melodia-api/pkg/response"
)

// StatusHandler exposes lifecycle metadata: the status catalogue, transition
// rules, and the caller's capability set.
type StatusHandler struct {
	status *service.StatusService
}

// NewStatusHandler constructs StatusHandler.
func NewStatusHandler(status *service.StatusService) *StatusHandler {
	return &StatusHandler{status: status}
}

type statusCatalogueEntry struct {
	Status models.StudentStatus        `json:"status"`
	Info   models.StatusInfo           `json:"info"`
	Rule   models.StatusTransitionRule `json:"rule"`
}

// Catalogue godoc
// @Summary List student statuses with display metadata and transition rules
// @Tags Status
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /statuses/students [get]
func (h *StatusHandler) Catalogue(c *gin.Context) {
	entries := make([]statusCatalogueEntry, 0, len(models.AllStudentStatuses))
	for _, status := range models.AllStudentStatuses {
		entries = append(entries, statusCatalogueEntry{
			Status: status,
			Info:   models.StudentStatusInfo[status],
			Rule:   models.StudentStatusTransitionRules[status],
		})
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Permissions godoc
// @Summary Return the caller's status capabilities for an entity type
// @Tags Status
// @Produce json
// @Param entity query string true "Entity type (student or family)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /statuses/permissions [get]
func (h *StatusHandler) Permissions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entity := models.StatusEntityType(c.DefaultQuery("entity", string(models.StatusEntityStudent)))
	if entity != models.StatusEntityStudent && entity != models.StatusEntityFamily {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "entity must be student or family"))
		return
	}
	response.JSON(c, http.StatusOK, h.status.PermissionsFor(claims.Role, entity), nil)
}

// Validate godoc
// @Summary Dry-run a student status transition
// @Tags Status
// @Produce json
// @Param from query string true "Current status"
// @Param to query string true "Target status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /statuses/validate [get]
func (h *StatusHandler) Validate(c *gin.Context) {
	from := models.StudentStatus(c.Query("from"))
	to := models.StudentStatus(c.Query("to"))
	result := h.status.ValidateStudentStatusChange(from, to)
	response.JSON(c, http.StatusOK, result, nil)
}
