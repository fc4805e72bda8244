package dto

import (
	"time"

	"github.com/spec-kit/civic-issues/internal/domain"
)

// CreateTicketRequest payload. Media files arrive separately as multipart
// parts under the "media" field.
type CreateTicketRequest struct {
	Title       string                `json:"title" form:"title"`
	Description string                `json:"description" form:"description"`
	Category    domain.TicketCategory `json:"category" form:"category"`
	Location    string                `json:"location" form:"location"`
}

// UpdateTicketRequest carries partial updates; absent fields are left
// unchanged.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Category    *domain.TicketCategory `json:"category"`
	Location    *string                `json:"location"`
}

// UpdateStatusRequest payload for admin status transitions.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status" form:"status"`
}

// AddNoteRequest payload for admin progress notes.
type AddNoteRequest struct {
	Note string `json:"note" form:"note"`
}

// MediaResponse is one stored attachment reference.
type MediaResponse struct {
	ID   string           `json:"id"`
	URL  string           `json:"url"`
	Kind domain.MediaKind `json:"kind"`
}

// ProgressNoteResponse is one admin note with its author resolved.
type ProgressNoteResponse struct {
	ID         string    `json:"id"`
	Note       string    `json:"note"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// TicketOwnerResponse is the resolved owner reference.
type TicketOwnerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TicketResponse is the full ticket shape shared by every ticket endpoint.
type TicketResponse struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Category      domain.TicketCategory  `json:"category"`
	Location      string                 `json:"location"`
	Status        domain.TicketStatus    `json:"status"`
	Media         []MediaResponse        `json:"media"`
	ProgressNotes []ProgressNoteResponse `json:"progress_notes"`
	CreatedBy     TicketOwnerResponse    `json:"created_by"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// AnalyticsResponse is the admin dashboard aggregate shape.
type AnalyticsResponse struct {
	Total      int64                           `json:"total"`
	Submitted  int64                           `json:"submitted"`
	InProgress int64                           `json:"in_progress"`
	Resolved   int64                           `json:"resolved"`
	Rejected   int64                           `json:"rejected"`
	ByCategory map[domain.TicketCategory]int64 `json:"by_category"`
}
