package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issues/internal/domain"
)

// DefaultPageSize is the contract value for list pagination when a caller
// supplies none.
const DefaultPageSize = 20

// TicketFilter captures list query parameters. Category and status are
// equality filters applied only when present.
type TicketFilter struct {
	OwnerID  *string
	Category *domain.TicketCategory
	Status   *domain.TicketStatus
	Limit    int
	Offset   int
}

// TicketRepository encapsulates ticket persistence. Each method is atomic:
// single-statement operations rely on statement atomicity, and the
// multi-statement aggregate writes (Create, Update) run inside one
// transaction so a mid-sequence failure commits nothing.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket, newMedia []domain.Media) error
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error
	AddNote(ctx context.Context, note *domain.ProgressNote) error
	Delete(ctx context.Context, id string) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int64, error)
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int64, error)
	CountByCategory(ctx context.Context) (map[domain.TicketCategory]int64, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, category, location, status, created_by)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Location,
		ticket.Status,
		ticket.OwnerID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}
	if err := insertMedia(ctx, tx, ticket.ID, ticket.Media); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT t.id, t.title, t.description, t.category, t.location, t.status,
               t.created_by, u.name, u.email, t.created_at, t.updated_at
        FROM tickets t
        JOIN users u ON u.id = t.created_by
        WHERE t.id=$1`

	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Location,
		&ticket.Status,
		&ticket.OwnerID,
		&ticket.OwnerName,
		&ticket.OwnerEmail,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		if isInvalidIdentifier(err) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	if err := r.loadMedia(ctx, []*domain.Ticket{&ticket}); err != nil {
		return nil, err
	}
	if err := r.loadNotes(ctx, []*domain.Ticket{&ticket}); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Update rewrites the ticket's editable fields and appends any new media
// in one transaction; a failed media insert rolls back the field update.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, newMedia []domain.Media) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, category=$3, location=$4, updated_at=NOW()
        WHERE id=$5`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Location,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if err := insertMedia(ctx, tx, ticket.ID, newMedia); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		if isInvalidIdentifier(err) {
			return pgx.ErrNoRows
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func insertMedia(ctx context.Context, tx pgx.Tx, ticketID string, media []domain.Media) error {
	const query = `
        INSERT INTO ticket_media (ticket_id, url, kind)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	for i := range media {
		media[i].TicketID = ticketID
		if err := tx.QueryRow(ctx, query, ticketID, media[i].URL, media[i].Kind).
			Scan(&media[i].ID, &media[i].CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// AddNote is a single INSERT; two concurrent callers both get their note
// durably retained.
func (r *ticketRepository) AddNote(ctx context.Context, note *domain.ProgressNote) error {
	const query = `
        INSERT INTO progress_notes (ticket_id, note, author_id)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, note.TicketID, note.Note, note.AuthorID).
		Scan(&note.ID, &note.CreatedAt)
}

// Delete removes the ticket; media and notes go with it via FK cascade.
func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		if isInvalidIdentifier(err) {
			return pgx.ErrNoRows
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT t.id, t.title, t.description, t.category, t.location, t.status,
                    t.created_by, u.name, u.email, t.created_at, t.updated_at
             FROM tickets t
             JOIN users u ON u.id = t.created_by`
	clauses, args := filterClauses(filter)

	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at DESC`,
		base, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}

	refs := make([]*domain.Ticket, len(tickets))
	for i := range tickets {
		refs[i] = &tickets[i]
	}
	if err := r.loadMedia(ctx, refs); err != nil {
		return nil, err
	}
	if err := r.loadNotes(ctx, refs); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int64, error) {
	clauses, args := filterClauses(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM tickets t WHERE %s`, strings.Join(clauses, " AND "))

	var total int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int64)
	for rows.Next() {
		var status domain.TicketStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) CountByCategory(ctx context.Context) (map[domain.TicketCategory]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT category, COUNT(*) FROM tickets GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketCategory]int64)
	for rows.Next() {
		var category domain.TicketCategory
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts[category] = count
	}
	return counts, rows.Err()
}

func filterClauses(filter TicketFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("t.created_by=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("t.category=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	return clauses, args
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Category,
			&ticket.Location,
			&ticket.Status,
			&ticket.OwnerID,
			&ticket.OwnerName,
			&ticket.OwnerEmail,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

// loadMedia attaches media rows to the given tickets with one batched query.
func (r *ticketRepository) loadMedia(ctx context.Context, tickets []*domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids, byID := ticketIndex(tickets)

	const query = `
        SELECT id, ticket_id, url, kind, created_at
        FROM ticket_media
        WHERE ticket_id = ANY($1)
        ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Media
		if err := rows.Scan(&m.ID, &m.TicketID, &m.URL, &m.Kind, &m.CreatedAt); err != nil {
			return err
		}
		if ticket, ok := byID[m.TicketID]; ok {
			ticket.Media = append(ticket.Media, m)
		}
	}
	return rows.Err()
}

// loadNotes attaches progress notes, author names resolved by join, ordered
// by insertion time.
func (r *ticketRepository) loadNotes(ctx context.Context, tickets []*domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids, byID := ticketIndex(tickets)

	const query = `
        SELECT n.id, n.ticket_id, n.note, n.author_id, u.name, n.created_at
        FROM progress_notes n
        JOIN users u ON u.id = n.author_id
        WHERE n.ticket_id = ANY($1)
        ORDER BY n.created_at, n.id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var n domain.ProgressNote
		if err := rows.Scan(&n.ID, &n.TicketID, &n.Note, &n.AuthorID, &n.AuthorName, &n.CreatedAt); err != nil {
			return err
		}
		if ticket, ok := byID[n.TicketID]; ok {
			ticket.Notes = append(ticket.Notes, n)
		}
	}
	return rows.Err()
}

func ticketIndex(tickets []*domain.Ticket) ([]string, map[string]*domain.Ticket) {
	ids := make([]string, 0, len(tickets))
	byID := make(map[string]*domain.Ticket, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
		byID[t.ID] = t
	}
	return ids, byID
}

// isInvalidIdentifier reports whether err is the postgres error for a value
// that cannot be cast to uuid. Callers translate it to a not-found rather
// than leaking the store error.
func isInvalidIdentifier(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// IsUniqueViolation reports whether err is a postgres unique constraint
// violation, e.g. a duplicate email at registration.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
