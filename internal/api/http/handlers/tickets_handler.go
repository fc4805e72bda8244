package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issues/internal/api/dto"
	"github.com/spec-kit/civic-issues/internal/auth"
	"github.com/spec-kit/civic-issues/internal/domain"
	"github.com/spec-kit/civic-issues/internal/service"
	"github.com/spec-kit/civic-issues/internal/upload"
	apperrors "github.com/spec-kit/civic-issues/pkg/util"
)

const mediaFormField = "media"

// TicketsHandler manages citizen-facing ticket endpoints.
type TicketsHandler struct {
	service  *service.TicketService
	uploader upload.Uploader
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, uploader upload.Uploader) *TicketsHandler {
	return &TicketsHandler{service: ticketService, uploader: uploader}
}

// Create POST /tickets. Accepts JSON or multipart; media files ride in the
// "media" multipart field.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload")
	}
	media, err := h.storeUploads(c)
	if err != nil {
		return err
	}

	ticket, err := h.service.Create(c.Context(), caller, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Media:       media,
	})
	if err != nil {
		return err
	}
	return respondData(c, http.StatusCreated, ticketResponse(ticket))
}

// ListMine GET /tickets/my.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.service.ListMine(c.Context(), caller)
	if err != nil {
		return err
	}
	return respondList(c, ticketResponses(tickets))
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.service.GetByID(c.Context(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, ticketResponse(ticket))
}

// Update PUT /tickets/:id. Partial update; new media is appended.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	req, err := parseUpdateRequest(c)
	if err != nil {
		return err
	}
	media, err := h.storeUploads(c)
	if err != nil {
		return err
	}

	ticket, err := h.service.Update(c.Context(), caller, c.Params("id"), service.TicketUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Media:       media,
	})
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, ticketResponse(ticket))
}

// Delete DELETE /tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.Delete(c.Context(), caller, c.Params("id")); err != nil {
		return err
	}
	return respondMessage(c, http.StatusOK, "ticket deleted")
}

// storeUploads pushes any multipart media files through the uploader and
// returns the stored references. A JSON request simply yields no media.
func (h *TicketsHandler) storeUploads(c *fiber.Ctx) ([]service.MediaInput, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), "multipart/") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.NewValidationError("invalid multipart payload")
	}
	files := form.File[mediaFormField]
	if len(files) == 0 {
		return nil, nil
	}
	if max := h.uploader.MaxFiles(); max > 0 && len(files) > max {
		return nil, apperrors.NewUploadRejected(fmt.Sprintf("at most %d media files are allowed per request", max))
	}

	inputs := make([]service.MediaInput, 0, len(files))
	for _, file := range files {
		stored, err := h.uploader.Store(c.Context(), file)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, service.MediaInput{URL: stored.URL, Kind: stored.Kind})
	}
	return inputs, nil
}

// parseUpdateRequest keeps partial-update semantics for both encodings: a
// JSON field that is absent stays nil, and a multipart form key that is
// absent or empty stays nil.
func parseUpdateRequest(c *fiber.Ctx) (dto.UpdateTicketRequest, error) {
	var req dto.UpdateTicketRequest
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), "multipart/") {
		if err := c.BodyParser(&req); err != nil {
			return req, apperrors.NewValidationError("invalid payload")
		}
		return req, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return req, apperrors.NewValidationError("invalid multipart payload")
	}
	req.Title = formField(form.Value, "title")
	req.Description = formField(form.Value, "description")
	if raw := formField(form.Value, "category"); raw != nil {
		category := domain.TicketCategory(*raw)
		req.Category = &category
	}
	req.Location = formField(form.Value, "location")
	return req, nil
}

func formField(values map[string][]string, key string) *string {
	vals, ok := values[key]
	if !ok || len(vals) == 0 || vals[0] == "" {
		return nil
	}
	return &vals[0]
}
