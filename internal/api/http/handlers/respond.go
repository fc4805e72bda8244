package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issues/internal/api/dto"
	"github.com/spec-kit/civic-issues/internal/domain"
)

// Every success response carries the {success, data} envelope; list
// endpoints add count, and the admin list adds total/page/pages.

func respondData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func respondMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "message": message})
}

func respondList(c *fiber.Ctx, items []dto.TicketResponse) error {
	return c.JSON(fiber.Map{"success": true, "count": len(items), "data": items})
}

func respondPage(c *fiber.Ctx, items []dto.TicketResponse, total int64, page, pages int) error {
	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(items),
		"total":   total,
		"page":    page,
		"pages":   pages,
		"data":    items,
	})
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	media := make([]dto.MediaResponse, 0, len(ticket.Media))
	for _, m := range ticket.Media {
		media = append(media, dto.MediaResponse{ID: m.ID, URL: m.URL, Kind: m.Kind})
	}
	notes := make([]dto.ProgressNoteResponse, 0, len(ticket.Notes))
	for _, n := range ticket.Notes {
		notes = append(notes, dto.ProgressNoteResponse{
			ID:         n.ID,
			Note:       n.Note,
			AuthorID:   n.AuthorID,
			AuthorName: n.AuthorName,
			CreatedAt:  n.CreatedAt,
		})
	}
	return dto.TicketResponse{
		ID:            ticket.ID,
		Title:         ticket.Title,
		Description:   ticket.Description,
		Category:      ticket.Category,
		Location:      ticket.Location,
		Status:        ticket.Status,
		Media:         media,
		ProgressNotes: notes,
		CreatedBy: dto.TicketOwnerResponse{
			ID:    ticket.OwnerID,
			Name:  ticket.OwnerName,
			Email: ticket.OwnerEmail,
		},
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	}
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}
