package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. The wire values
// match the public API contract, including the space in "In Progress".
type TicketStatus string

const (
	TicketStatusSubmitted  TicketStatus = "Submitted"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusRejected   TicketStatus = "Rejected"
)

// TicketStatuses lists every valid status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusSubmitted,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusRejected,
}

// ValidTicketStatus reports whether s is one of the four enumerated values.
// Admin status updates accept any valid value regardless of the current
// state; there is deliberately no transition table here.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusSubmitted, TicketStatusInProgress, TicketStatusResolved, TicketStatusRejected:
		return true
	}
	return false
}

// TicketCategory enumerates the reportable issue categories.
type TicketCategory string

const (
	CategoryRoad        TicketCategory = "Road"
	CategoryWater       TicketCategory = "Water"
	CategoryElectricity TicketCategory = "Electricity"
	CategoryGarbage     TicketCategory = "Garbage"
	CategoryOther       TicketCategory = "Other"
)

// ValidTicketCategory reports whether c is a known category.
func ValidTicketCategory(c TicketCategory) bool {
	switch c {
	case CategoryRoad, CategoryWater, CategoryElectricity, CategoryGarbage, CategoryOther:
		return true
	}
	return false
}

// MediaKind distinguishes attachment resource types.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// Media is a stored attachment reference on a ticket. The URL comes from
// the upload collaborator; the core records and returns it as-is.
type Media struct {
	ID        string
	TicketID  string
	URL       string
	Kind      MediaKind
	CreatedAt time.Time
}

// ProgressNote is an admin-authored, append-only status comment.
// Notes are never edited or removed once added.
type ProgressNote struct {
	ID         string
	TicketID   string
	Note       string
	AuthorID   string
	AuthorName string
	CreatedAt  time.Time
}

// Ticket is the aggregate for reported civic issues. OwnerName and
// OwnerEmail are resolved by a read-time join, not stored denormalized.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Category    TicketCategory
	Location    string
	Status      TicketStatus
	OwnerID     string
	OwnerName   string
	OwnerEmail  string
	Media       []Media
	Notes       []ProgressNote
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Limits on ticket fields, enforced before any store mutation.
const (
	TitleMaxLen       = 200
	DescriptionMaxLen = 2000
)
