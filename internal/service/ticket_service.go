package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/civic-issues/internal/domain"
	"github.com/spec-kit/civic-issues/internal/events"
	"github.com/spec-kit/civic-issues/internal/repository"
	apperrors "github.com/spec-kit/civic-issues/pkg/util"
)

// TicketService owns the ticket lifecycle: creation, owner-scoped edits,
// the admin status machine, progress notes, and the query/analytics
// surface. Every method takes the authenticated caller and checks its own
// authorization before touching the store.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
}

// NewTicketService constructs the service.
func NewTicketService(tickets repository.TicketRepository, dispatcher events.Dispatcher) *TicketService {
	return &TicketService{tickets: tickets, dispatcher: dispatcher}
}

// MediaInput is an attachment reference handed over by the upload
// collaborator.
type MediaInput struct {
	URL  string
	Kind domain.MediaKind
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	Location    string
	Media       []MediaInput
}

// TicketUpdateInput carries partial updates; nil fields are left
// untouched. Media is appended to the existing sequence, never replacing
// it.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Category    *domain.TicketCategory
	Location    *string
	Media       []MediaInput
}

// AdminListFilter describes the admin listing query.
type AdminListFilter struct {
	Category *domain.TicketCategory
	Status   *domain.TicketStatus
	Page     int
	PageSize int
}

// TicketPage is one page of an admin listing.
type TicketPage struct {
	Items []domain.Ticket
	Total int64
	Page  int
	Pages int
}

// Analytics aggregates ticket counts. Sub-counts are computed as
// independent store reads; slight skew under concurrent writes is
// acceptable.
type Analytics struct {
	Total      int64
	Submitted  int64
	InProgress int64
	Resolved   int64
	Rejected   int64
	ByCategory map[domain.TicketCategory]int64
}

// Create makes the caller owner of a new ticket with status Submitted and
// an empty note sequence.
func (s *TicketService) Create(ctx context.Context, caller *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Location = strings.TrimSpace(input.Location)
	if err := validateTicketFields(input.Title, input.Description, input.Category, input.Location); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Location:    input.Location,
		Status:      domain.TicketStatusSubmitted,
		OwnerID:     caller.ID,
		OwnerName:   caller.Name,
		OwnerEmail:  caller.Email,
		Media:       mediaFromInputs(input.Media),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Category: ticket.Category,
			Location: ticket.Location,
		},
	})
	return ticket, nil
}

// ListMine returns all tickets owned by the caller, newest first.
func (s *TicketService) ListMine(ctx context.Context, caller *domain.User) ([]domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{OwnerID: &caller.ID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetByID fetches one ticket. Citizens may only view their own tickets;
// admins may view any.
func (s *TicketService) GetByID(ctx context.Context, caller *domain.User, ticketID string) (*domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleCitizen:
		if ticket.OwnerID != caller.ID {
			return nil, apperrors.NewForbidden("not authorized to view this ticket")
		}
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}
	return ticket, nil
}

// Update edits an owned, non-resolved ticket. Only supplied fields change;
// new media is appended. The owner reference is never reassigned.
func (s *TicketService) Update(ctx context.Context, caller *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerID != caller.ID {
		return nil, apperrors.NewForbidden("not authorized to edit this ticket")
	}
	if ticket.Status == domain.TicketStatusResolved {
		return nil, apperrors.NewInvalidState("cannot edit a resolved ticket")
	}

	if input.Title != nil {
		ticket.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		ticket.Description = *input.Description
	}
	if input.Category != nil {
		ticket.Category = *input.Category
	}
	if input.Location != nil {
		ticket.Location = strings.TrimSpace(*input.Location)
	}
	if err := validateTicketFields(ticket.Title, ticket.Description, ticket.Category, ticket.Location); err != nil {
		return nil, err
	}

	if err := s.tickets.Update(ctx, ticket, mediaFromInputs(input.Media)); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.getTicket(ctx, ticket.ID)
}

// Delete removes a ticket and its notes as one unit. The owner may delete
// at any status; admins may delete any ticket.
func (s *TicketService) Delete(ctx context.Context, caller *domain.User, ticketID string) error {
	if caller == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.OwnerID != caller.ID && !caller.IsAdmin() {
		return apperrors.NewForbidden("not authorized to delete this ticket")
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketDeleted,
		TicketID:  ticketID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Payload: events.TicketDeletedPayload{
			DeletedByOwner: ticket.OwnerID == caller.ID,
		},
	})
	return nil
}

// SetStatus applies an admin status update. Any of the four enumerated
// values is accepted regardless of the current state; there is no
// transition ordering constraint. Unknown values fail validation without
// mutating the ticket.
func (s *TicketService) SetStatus(ctx context.Context, caller *domain.User, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if !domain.ValidTicketStatus(status) {
		return nil, apperrors.NewValidationError("invalid status value")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	if err := s.tickets.UpdateStatus(ctx, ticketID, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticketID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: status,
		},
	})
	return s.getTicket(ctx, ticketID)
}

// AddNote appends an admin progress note stamped with the caller and the
// current time. Notes are immutable once appended.
func (s *TicketService) AddNote(ctx context.Context, caller *domain.User, ticketID, text string) (*domain.Ticket, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("note text is required")
	}
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	note := &domain.ProgressNote{
		TicketID: ticketID,
		Note:     text,
		AuthorID: caller.ID,
	}
	if err := s.tickets.AddNote(ctx, note); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketNoteAdded,
		TicketID:  ticketID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Payload: events.TicketNoteAddedPayload{
			NoteID:      note.ID,
			NotePreview: notePreview(text, 120),
		},
	})
	return s.getTicket(ctx, ticketID)
}

// ListAll answers the admin listing query: equality filters, newest first,
// with total and page counts.
func (s *TicketService) ListAll(ctx context.Context, caller *domain.User, filter AdminListFilter) (*TicketPage, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if filter.Category != nil && !domain.ValidTicketCategory(*filter.Category) {
		return nil, apperrors.NewValidationError("invalid category value")
	}
	if filter.Status != nil && !domain.ValidTicketStatus(*filter.Status) {
		return nil, apperrors.NewValidationError("invalid status value")
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = repository.DefaultPageSize
	}

	repoFilter := repository.TicketFilter{
		Category: filter.Category,
		Status:   filter.Status,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}
	items, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.tickets.Count(ctx, repository.TicketFilter{Category: filter.Category, Status: filter.Status})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &TicketPage{Items: items, Total: total, Page: page, Pages: pages}, nil
}

// AnalyticsSnapshot computes the dashboard aggregates: total count, count
// per status (absent statuses report zero), and a category-to-count map
// containing only categories with at least one ticket.
func (s *TicketService) AnalyticsSnapshot(ctx context.Context, caller *domain.User) (*Analytics, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	total, err := s.tickets.Count(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byStatus, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byCategory, err := s.tickets.CountByCategory(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &Analytics{
		Total:      total,
		Submitted:  byStatus[domain.TicketStatusSubmitted],
		InProgress: byStatus[domain.TicketStatusInProgress],
		Resolved:   byStatus[domain.TicketStatusResolved],
		Rejected:   byStatus[domain.TicketStatusRejected],
		ByCategory: byCategory,
	}, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// requireAdmin matches the role exhaustively; anything but admin is
// rejected before business logic runs.
func requireAdmin(caller *domain.User) error {
	if caller == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	switch caller.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleCitizen:
		return apperrors.NewForbidden(fmt.Sprintf("role '%s' is not authorized to access this resource", caller.Role))
	default:
		return apperrors.NewForbidden("unknown role")
	}
}

func validateTicketFields(title, description string, category domain.TicketCategory, location string) error {
	var problems []string
	if title == "" {
		problems = append(problems, "title is required")
	} else if utf8.RuneCountInString(title) > domain.TitleMaxLen {
		problems = append(problems, fmt.Sprintf("title cannot exceed %d characters", domain.TitleMaxLen))
	}
	if description == "" {
		problems = append(problems, "description is required")
	} else if utf8.RuneCountInString(description) > domain.DescriptionMaxLen {
		problems = append(problems, fmt.Sprintf("description cannot exceed %d characters", domain.DescriptionMaxLen))
	}
	if !domain.ValidTicketCategory(category) {
		problems = append(problems, "category must be one of Road, Water, Electricity, Garbage, Other")
	}
	if location == "" {
		problems = append(problems, "location is required")
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError(strings.Join(problems, ". "))
	}
	return nil
}

func mediaFromInputs(inputs []MediaInput) []domain.Media {
	if len(inputs) == 0 {
		return nil
	}
	media := make([]domain.Media, 0, len(inputs))
	for _, in := range inputs {
		media = append(media, domain.Media{URL: in.URL, Kind: in.Kind})
	}
	return media
}

// notePreview truncates on rune boundaries so multibyte text never yields
// invalid UTF-8 in the event payload.
func notePreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
