package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issues/internal/api/dto"
	"github.com/spec-kit/civic-issues/internal/auth"
	"github.com/spec-kit/civic-issues/internal/domain"
	"github.com/spec-kit/civic-issues/internal/service"
	apperrors "github.com/spec-kit/civic-issues/pkg/util"
)

// AdminTicketsHandler manages the admin triage endpoints.
type AdminTicketsHandler struct {
	service *service.TicketService
}

// NewAdminTicketsHandler constructs handler.
func NewAdminTicketsHandler(ticketService *service.TicketService) *AdminTicketsHandler {
	return &AdminTicketsHandler{service: ticketService}
}

// ListAll GET /tickets/admin/all. Optional category/status equality
// filters; page/limit pagination with the service default page size.
func (h *AdminTicketsHandler) ListAll(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	filter := service.AdminListFilter{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("limit"), 0),
	}
	if raw := c.Query("category"); raw != "" {
		category := domain.TicketCategory(raw)
		filter.Category = &category
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.TicketStatus(raw)
		filter.Status = &status
	}

	page, err := h.service.ListAll(c.Context(), caller, filter)
	if err != nil {
		return err
	}
	return respondPage(c, ticketResponses(page.Items), page.Total, page.Page, page.Pages)
}

// Analytics GET /tickets/admin/analytics.
func (h *AdminTicketsHandler) Analytics(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	stats, err := h.service.AnalyticsSnapshot(c.Context(), caller)
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, dto.AnalyticsResponse{
		Total:      stats.Total,
		Submitted:  stats.Submitted,
		InProgress: stats.InProgress,
		Resolved:   stats.Resolved,
		Rejected:   stats.Rejected,
		ByCategory: stats.ByCategory,
	})
}

// SetStatus PUT /tickets/admin/:id/status.
func (h *AdminTicketsHandler) SetStatus(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload")
	}
	ticket, err := h.service.SetStatus(c.Context(), caller, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, ticketResponse(ticket))
}

// AddNote POST /tickets/admin/:id/notes.
func (h *AdminTicketsHandler) AddNote(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AddNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload")
	}
	ticket, err := h.service.AddNote(c.Context(), caller, c.Params("id"), req.Note)
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, ticketResponse(ticket))
}

// Delete DELETE /tickets/admin/:id.
func (h *AdminTicketsHandler) Delete(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.Delete(c.Context(), caller, c.Params("id")); err != nil {
		return err
	}
	return respondMessage(c, http.StatusOK, "ticket deleted by admin")
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
