package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/melodia-school/melodia-api/internal/models"
	"github.com/melodia-school/melodia-api/internal/service"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
	"github.com/melodia-school/melodia-api/pkg/response"
)

// FinanceHandler exposes the billing display surface.
type FinanceHandler struct {
	finance *service.FinanceService
}

// NewFinanceHandler constructs FinanceHandler.
func NewFinanceHandler(finance *service.FinanceService) *FinanceHandler {
	return &FinanceHandler{finance: finance}
}

// ListInvoices godoc
// @Summary List invoices
// @Tags Finance
// @Produce json
// @Param familyId query string false "Filter by family"
// @Param status query string false "Filter by status"
// @Param from query string false "Due date window start (YYYY-MM-DD)"
// @Param to query string false "Due date window end (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices [get]
func (h *FinanceHandler) ListInvoices(c *gin.Context) {
	var filter models.InvoiceFilter
	filter.FamilyID = c.Query("familyId")
	filter.Status = models.InvoiceStatus(c.Query("status"))
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = &t
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	if claims := claimsFromContext(c); claims != nil {
		if claims.Role == models.RoleParent || claims.Role == models.RoleStudent {
			if claims.FamilyID == nil {
				response.JSON(c, http.StatusOK, []models.Invoice{}, &models.Pagination{Page: 1, PageSize: 20})
				return
			}
			filter.FamilyID = *claims.FamilyID
		}
	}

	invoices, pagination, err := h.finance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// GetInvoice godoc
// @Summary Get invoice detail
// @Tags Finance
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices/{id} [get]
func (h *FinanceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.finance.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		if claims.Role == models.RoleParent || claims.Role == models.RoleStudent {
			if claims.FamilyID == nil || invoice.FamilyID != *claims.FamilyID {
				response.Error(c, appErrors.ErrForbidden)
				return
			}
		}
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// CreateInvoice godoc
// @Summary Create invoice
// @Tags Finance
// @Accept json
// @Produce json
// @Param payload body service.CreateInvoiceRequest true "Invoice payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices [post]
func (h *FinanceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.finance.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// MarkPaid godoc
// @Summary Mark an invoice as paid
// @Tags Finance
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices/{id}/pay [post]
func (h *FinanceHandler) MarkPaid(c *gin.Context) {
	invoice, err := h.finance.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Balance godoc
// @Summary Get a family's outstanding balance
// @Tags Finance
// @Produce json
// @Param id path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /families/{id}/balance [get]
func (h *FinanceHandler) Balance(c *gin.Context) {
	balance, err := h.finance.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// Statement godoc
// @Summary Download a family statement
// @Tags Finance
// @Produce application/octet-stream
// @Param id path string true "Family ID"
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /families/{id}/statement [get]
func (h *FinanceHandler) Statement(c *gin.Context) {
	format := service.StatementFormat(c.DefaultQuery("format", string(service.StatementFormatCSV)))
	stmt, err := h.finance.Statement(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", stmt.Filename))
	c.Data(http.StatusOK, stmt.ContentType, stmt.Payload)
}
