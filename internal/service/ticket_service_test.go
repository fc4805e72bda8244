package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/civic-issues/internal/domain"
	"github.com/spec-kit/civic-issues/internal/repository"
	apperrors "github.com/spec-kit/civic-issues/pkg/util"
)

// --- in-memory fake ---

type fakeTicketRepo struct {
	mu        sync.Mutex
	seq       int
	tickets   map[string]*domain.Ticket
	userNames map[string]string

	// failUpdate makes the next Update fail before anything is applied,
	// the way a rolled-back transaction behaves.
	failUpdate error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:   make(map[string]*domain.Ticket),
		userNames: make(map[string]string),
	}
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func (f *fakeTicketRepo) nextID(prefix string) (string, time.Time) {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq), baseTime.Add(time.Duration(f.seq) * time.Second)
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ts := f.nextID("tkt")
	ticket.ID = id
	ticket.CreatedAt = ts
	ticket.UpdatedAt = ts
	for i := range ticket.Media {
		mid, mts := f.nextID("med")
		ticket.Media[i].ID = mid
		ticket.Media[i].TicketID = id
		ticket.Media[i].CreatedAt = mts
	}
	f.tickets[id] = copyTicket(ticket)
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyTicket(ticket), nil
}

func (f *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket, newMedia []domain.Media) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	stored, ok := f.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Title = ticket.Title
	stored.Description = ticket.Description
	stored.Category = ticket.Category
	stored.Location = ticket.Location
	stored.UpdatedAt = stored.UpdatedAt.Add(time.Second)
	for i := range newMedia {
		mid, mts := f.nextID("med")
		newMedia[i].ID = mid
		newMedia[i].TicketID = ticket.ID
		newMedia[i].CreatedAt = mts
		stored.Media = append(stored.Media, newMedia[i])
	}
	return nil
}

func (f *fakeTicketRepo) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Status = status
	return nil
}

func (f *fakeTicketRepo) AddNote(_ context.Context, note *domain.ProgressNote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tickets[note.TicketID]
	if !ok {
		return pgx.ErrNoRows
	}
	nid, nts := f.nextID("note")
	note.ID = nid
	note.CreatedAt = nts
	note.AuthorName = f.userNames[note.AuthorID]
	stored.Notes = append(stored.Notes, *note)
	return nil
}

func (f *fakeTicketRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.tickets, id)
	return nil
}

func (f *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := f.matchLocked(filter)
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset > len(matched) {
			offset = len(matched)
		}
		end := offset + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[offset:end]
	}
	result := make([]domain.Ticket, 0, len(matched))
	for _, t := range matched {
		result = append(result, *copyTicket(t))
	}
	return result, nil
}

func (f *fakeTicketRepo) Count(_ context.Context, filter repository.TicketFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.matchLocked(filter))), nil
}

func (f *fakeTicketRepo) CountByStatus(_ context.Context) (map[domain.TicketStatus]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.TicketStatus]int64)
	for _, t := range f.tickets {
		counts[t.Status]++
	}
	return counts, nil
}

func (f *fakeTicketRepo) CountByCategory(_ context.Context) (map[domain.TicketCategory]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.TicketCategory]int64)
	for _, t := range f.tickets {
		counts[t.Category]++
	}
	return counts, nil
}

func (f *fakeTicketRepo) matchLocked(filter repository.TicketFilter) []*domain.Ticket {
	var matched []*domain.Ticket
	for _, t := range f.tickets {
		if filter.OwnerID != nil && t.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Category != nil && t.Category != *filter.Category {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		matched = append(matched, t)
	}
	return matched
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	clone.Media = append([]domain.Media(nil), t.Media...)
	clone.Notes = append([]domain.ProgressNote(nil), t.Notes...)
	return &clone
}

// --- helpers ---

var (
	citizenA = &domain.User{ID: "user-a", Name: "Asha", Email: "asha@example.com", Role: domain.RoleCitizen}
	citizenB = &domain.User{ID: "user-b", Name: "Bela", Email: "bela@example.com", Role: domain.RoleCitizen}
	admin    = &domain.User{ID: "user-adm", Name: "Root", Email: "admin@example.com", Role: domain.RoleAdmin}
)

func newTestService() (*TicketService, *fakeTicketRepo) {
	repo := newFakeTicketRepo()
	repo.userNames[citizenA.ID] = citizenA.Name
	repo.userNames[citizenB.ID] = citizenB.Name
	repo.userNames[admin.ID] = admin.Name
	return NewTicketService(repo, nil), repo
}

func validCreateInput() TicketCreateInput {
	return TicketCreateInput{
		Title:       "Pothole",
		Description: "Large pothole near the market",
		Category:    domain.CategoryRoad,
		Location:    "Sector 22",
	}
}

func mustCreate(t *testing.T, svc *TicketService, caller *domain.User, input TicketCreateInput) *domain.Ticket {
	t.Helper()
	ticket, err := svc.Create(context.Background(), caller, input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return ticket
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	de := apperrors.ToDomainError(err)
	if de.Code != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, de.Code, err)
	}
}

// --- tests ---

func TestCreateTicket(t *testing.T) {
	svc, _ := newTestService()

	ticket := mustCreate(t, svc, citizenA, validCreateInput())

	if ticket.Status != domain.TicketStatusSubmitted {
		t.Errorf("status = %q, want Submitted", ticket.Status)
	}
	if ticket.OwnerID != citizenA.ID {
		t.Errorf("owner = %q, want %q", ticket.OwnerID, citizenA.ID)
	}
	if len(ticket.Notes) != 0 {
		t.Errorf("new ticket has %d notes, want 0", len(ticket.Notes))
	}
}

func TestCreateTicketValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*TicketCreateInput)
	}{
		{"empty title", func(in *TicketCreateInput) { in.Title = "" }},
		{"title too long", func(in *TicketCreateInput) {
			in.Title = strings.Repeat("x", domain.TitleMaxLen+1)
		}},
		{"empty description", func(in *TicketCreateInput) { in.Description = "" }},
		{"description too long", func(in *TicketCreateInput) {
			in.Description = strings.Repeat("x", domain.DescriptionMaxLen+1)
		}},
		{"unknown category", func(in *TicketCreateInput) { in.Category = "Potholes" }},
		{"empty location", func(in *TicketCreateInput) { in.Location = "  " }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validCreateInput()
			tc.mutate(&input)
			_, err := svc.Create(ctx, citizenA, input)
			assertCode(t, err, "VALIDATION_FAILED")
		})
	}
}

func TestCreateTicketMultibyteLimits(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// 150 two-byte characters: 300 bytes but well under the 200-character
	// limit, which counts characters.
	input := validCreateInput()
	input.Title = strings.Repeat("é", 150)
	if _, err := svc.Create(ctx, citizenA, input); err != nil {
		t.Errorf("150-character title rejected: %v", err)
	}

	input = validCreateInput()
	input.Title = strings.Repeat("é", domain.TitleMaxLen+1)
	_, err := svc.Create(ctx, citizenA, input)
	assertCode(t, err, "VALIDATION_FAILED")

	input = validCreateInput()
	input.Description = strings.Repeat("水", 1500)
	if _, err := svc.Create(ctx, citizenA, input); err != nil {
		t.Errorf("1500-character description rejected: %v", err)
	}
}

func TestGetByIDAccess(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ticket := mustCreate(t, svc, citizenA, validCreateInput())

	if _, err := svc.GetByID(ctx, citizenA, ticket.ID); err != nil {
		t.Errorf("owner read failed: %v", err)
	}
	_, err := svc.GetByID(ctx, citizenB, ticket.ID)
	assertCode(t, err, "FORBIDDEN")
	if _, err := svc.GetByID(ctx, admin, ticket.ID); err != nil {
		t.Errorf("admin read failed: %v", err)
	}
	_, err = svc.GetByID(ctx, admin, "tkt-missing")
	assertCode(t, err, "NOT_FOUND")
}

func TestUpdatePartialSemantics(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ticket := mustCreate(t, svc, citizenA, validCreateInput())

	newTitle := "Deep pothole"
	updated, err := svc.Update(ctx, citizenA, ticket.ID, TicketUpdateInput{Title: &newTitle})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != newTitle {
		t.Errorf("title = %q, want %q", updated.Title, newTitle)
	}
	if updated.Description != ticket.Description {
		t.Errorf("description changed on partial update: %q", updated.Description)
	}
	if updated.Category != ticket.Category || updated.Location != ticket.Location {
		t.Error("unsupplied fields changed on partial update")
	}
	if updated.OwnerID != citizenA.ID {
		t.Errorf("owner changed on update: %q", updated.OwnerID)
	}
}

func TestUpdateAppendsMedia(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	input := validCreateInput()
	input.Media = []MediaInput{{URL: "https://cdn.example.com/a.jpg", Kind: domain.MediaKindImage}}
	ticket := mustCreate(t, svc, citizenA, input)

	updated, err := svc.Update(ctx, citizenA, ticket.ID, TicketUpdateInput{
		Media: []MediaInput{{URL: "https://cdn.example.com/b.mp4", Kind: domain.MediaKindVideo}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Media) != 2 {
		t.Fatalf("media length = %d, want 2 (append, not replace)", len(updated.Media))
	}
	if updated.Media[0].URL != "https://cdn.example.com/a.jpg" {
		t.Errorf("existing media displaced: %q", updated.Media[0].URL)
	}
}

func TestUpdateFailureLeavesTicketUnchanged(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	ticket := mustCreate(t, svc, citizenA, validCreateInput())

	// The store applies field changes and media appends as one unit; when
	// it fails, nothing may be left behind.
	repo.failUpdate = errors.New("media insert failed")
	title := "Deep pothole"
	_, err := svc.Update(ctx, citizenA, ticket.ID, TicketUpdateInput{
		Title: &title,
		Media: []MediaInput{{URL: "https://cdn.example.com/a.jpg", Kind: domain.MediaKindImage}},
	})
	if err == nil {
		t.Fatal("expected update to fail")
	}

	repo.failUpdate = nil
	stored, getErr := svc.GetByID(ctx, citizenA, ticket.ID)
	if getErr != nil {
		t.Fatalf("GetByID: %v", getErr)
	}
	if stored.Title != ticket.Title {
		t.Errorf("title = %q after failed update, want %q", stored.Title, ticket.Title)
	}
	if len(stored.Media) != 0 {
		t.Errorf("media length = %d after failed update, want 0", len(stored.Media))
	}
}

func TestUpdateAuthorization(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ticket := mustCreate(t, svc, citizenA, validCreateInput())
	title := "hijacked"

	_, err := svc.Update(ctx, citizenB, ticket.ID, TicketUpdateInput{Title: &title})
	assertCode(t, err, "FORBIDDEN")

	// Admins triage through status and notes, not owner edits.
	_, err = svc.Update(ctx, admin, ticket.ID, TicketUpdateInput{Title: &title})
	assertCode(t, err, "FORBIDDEN")

	_, err = svc.Update(ctx, citizenA, "tkt-missing", TicketUpdateInput{Title: &title})
	assertCode(t, err, "NOT_FOUND")
}

func TestResolvedTicketLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ticket := mustCreate(t, svc, citizenA, validCreateInput())

	if _, err := svc.SetStatus(ctx, admin, ticket.ID, domain.TicketStatusResolved); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	title := "still broken"
	_, err := svc.Update(ctx, citizenA, ticket.ID, TicketUpdateInput{Title: &title})
	assertCode(t, err, "INVALID_STATE")

	// Admin operations stay available on resolved tickets.
	if _, err := svc.AddNote(ctx, admin, ticket.ID, "verified fixed"); err != nil {
		t.Errorf("AddNote on resolved ticket: %v", err)
	}
	if _, err := svc.SetStatus(ctx, admin, ticket.ID, domain.TicketStatusInProgress); err != nil {
		t.Errorf("SetStatus on resolved ticket: %v", err)
	}

	// The owner can still delete at any status.
	if _, err := svc.SetStatus(ctx, admin, ticket.ID, domain.TicketStatusResolved); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := svc.Delete(ctx, citizenA, ticket.ID); err != nil {
		t.Errorf("owner delete of resolved ticket: %v", err)
	}
	_, err = svc.GetByID(ctx, admin, ticket.ID)
	assertCode(t, err, "NOT_FOUND")
}

func TestSetStatusRules(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	ticket := mustCreate(t, svc, citizenA, validCreateInput())

	_, err := svc.SetStatus(ctx, citizenA, ticket.ID, domain.TicketStatusInProgress)
	assertCode(t, err, "FORBIDDEN")

	_, err = svc.SetStatus(ctx, admin, ticket.ID, "Escalated")
	assertCode(t, err, "VALIDATION_FAILED")
	stored, _ := repo.GetByID(ctx, ticket.ID)
	if stored.Status != domain.TicketStatusSubmitted {
		t.Errorf("status mutated on rejected value: %q", stored.Status)
	}

	_, err = svc.SetStatus(ctx, admin, "tkt-missing", domain.TicketStatusRejected)
	assertCode(t, err, "NOT_FOUND")

	// No transition ordering constraint: any valid value from any state.
	transitions := []domain.TicketStatus{
		domain.TicketStatusResolved,
		domain.TicketStatusSubmitted,
		domain.TicketStatusRejected,
		domain.TicketStatusInProgress,
	}
	for _, next := range transitions {
		updated, err := svc.SetStatus(ctx, admin, ticket.ID, next)
		if err != nil {
			t.Fatalf("SetStatus(%q): %v", next, err)
		}
		if updated.Status != next {
			t.Errorf("status = %q, want %q", updated.Status, next)
		}
	}
}

func TestAddNoteAppendOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ticket := mustCreate(t, svc, citizenA, validCreateInput())

	_, err := svc.AddNote(ctx, citizenA, ticket.ID, "my own note")
	assertCode(t, err, "FORBIDDEN")
	_, err = svc.AddNote(ctx, admin, ticket.ID, "   ")
	assertCode(t, err, "VALIDATION_FAILED")

	texts := []string{"crew dispatched", "materials ordered", "work started"}
	var latest *domain.Ticket
	for i, text := range texts {
		latest, err = svc.AddNote(ctx, admin, ticket.ID, text)
		if err != nil {
			t.Fatalf("AddNote: %v", err)
		}
		if len(latest.Notes) != i+1 {
			t.Fatalf("notes length = %d after %d appends", len(latest.Notes), i+1)
		}
	}
	for i, text := range texts {
		if latest.Notes[i].Note != text {
			t.Errorf("notes[%d] = %q, want %q (insertion order)", i, latest.Notes[i].Note, text)
		}
		if latest.Notes[i].AuthorName != admin.Name {
			t.Errorf("notes[%d] author = %q, want %q", i, latest.Notes[i].AuthorName, admin.Name)
		}
	}
}

func TestAddNoteConcurrent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ticket := mustCreate(t, svc, citizenA, validCreateInput())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := svc.AddNote(ctx, admin, ticket.ID, fmt.Sprintf("concurrent note %d", n)); err != nil {
				t.Errorf("AddNote: %v", err)
			}
		}(i)
	}
	wg.Wait()

	final, err := svc.GetByID(ctx, admin, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(final.Notes) != 2 {
		t.Errorf("notes length = %d, want 2 (no lost update)", len(final.Notes))
	}
}

func TestDeleteRules(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	owned := mustCreate(t, svc, citizenA, validCreateInput())
	err := svc.Delete(ctx, citizenB, owned.ID)
	assertCode(t, err, "FORBIDDEN")
	if err := svc.Delete(ctx, citizenA, owned.ID); err != nil {
		t.Errorf("owner delete: %v", err)
	}

	other := mustCreate(t, svc, citizenB, validCreateInput())
	if err := svc.Delete(ctx, admin, other.ID); err != nil {
		t.Errorf("admin delete of any ticket: %v", err)
	}

	err = svc.Delete(ctx, admin, "tkt-missing")
	assertCode(t, err, "NOT_FOUND")
}

func TestListMineNewestFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		input := validCreateInput()
		input.Title = fmt.Sprintf("issue %d", i)
		mustCreate(t, svc, citizenA, input)
	}
	mustCreate(t, svc, citizenB, validCreateInput())

	mine, err := svc.ListMine(ctx, citizenA)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(mine) != 3 {
		t.Fatalf("len = %d, want 3", len(mine))
	}
	for i := 1; i < len(mine); i++ {
		if mine[i].CreatedAt.After(mine[i-1].CreatedAt) {
			t.Error("tickets not ordered newest first")
		}
	}
	if mine[0].Title != "issue 2" {
		t.Errorf("first ticket = %q, want the newest", mine[0].Title)
	}
}

func TestListAllPagination(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// 25 rejected tickets and a few others that must be filtered out.
	for i := 0; i < 25; i++ {
		input := validCreateInput()
		input.Title = fmt.Sprintf("rejected %d", i)
		ticket := mustCreate(t, svc, citizenA, input)
		if _, err := svc.SetStatus(ctx, admin, ticket.ID, domain.TicketStatusRejected); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	}
	mustCreate(t, svc, citizenB, validCreateInput())

	_, err := svc.ListAll(ctx, citizenA, AdminListFilter{})
	assertCode(t, err, "FORBIDDEN")

	rejected := domain.TicketStatusRejected
	page1, err := svc.ListAll(ctx, admin, AdminListFilter{Status: &rejected, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(page1.Items) != 10 || page1.Total != 25 || page1.Pages != 3 {
		t.Fatalf("page1: items=%d total=%d pages=%d, want 10/25/3",
			len(page1.Items), page1.Total, page1.Pages)
	}

	// Concatenating all pages reproduces the filtered set exactly once,
	// newest first.
	seen := make(map[string]bool)
	var previous time.Time
	first := true
	for p := 1; p <= page1.Pages; p++ {
		page, err := svc.ListAll(ctx, admin, AdminListFilter{Status: &rejected, Page: p, PageSize: 10})
		if err != nil {
			t.Fatalf("ListAll page %d: %v", p, err)
		}
		for _, item := range page.Items {
			if seen[item.ID] {
				t.Errorf("ticket %s appears on more than one page", item.ID)
			}
			seen[item.ID] = true
			if !first && item.CreatedAt.After(previous) {
				t.Error("pages not ordered newest first across boundaries")
			}
			previous = item.CreatedAt
			first = false
		}
	}
	if len(seen) != 25 {
		t.Errorf("pages covered %d tickets, want 25", len(seen))
	}
}

func TestListAllDefaultsAndValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	mustCreate(t, svc, citizenA, validCreateInput())

	page, err := svc.ListAll(ctx, admin, AdminListFilter{})
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if page.Page != 1 {
		t.Errorf("default page = %d, want 1", page.Page)
	}

	badStatus := domain.TicketStatus("Escalated")
	_, err = svc.ListAll(ctx, admin, AdminListFilter{Status: &badStatus})
	assertCode(t, err, "VALIDATION_FAILED")

	badCategory := domain.TicketCategory("Bridges")
	_, err = svc.ListAll(ctx, admin, AdminListFilter{Category: &badCategory})
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestAnalytics(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	byCategory := map[domain.TicketCategory]int{
		domain.CategoryRoad:  3,
		domain.CategoryWater: 2,
		domain.CategoryOther: 1,
	}
	var created []*domain.Ticket
	for category, n := range byCategory {
		for i := 0; i < n; i++ {
			input := validCreateInput()
			input.Category = category
			created = append(created, mustCreate(t, svc, citizenA, input))
		}
	}
	if _, err := svc.SetStatus(ctx, admin, created[0].ID, domain.TicketStatusResolved); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := svc.SetStatus(ctx, admin, created[1].ID, domain.TicketStatusInProgress); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	_, err := svc.AnalyticsSnapshot(ctx, citizenA)
	assertCode(t, err, "FORBIDDEN")

	stats, err := svc.AnalyticsSnapshot(ctx, admin)
	if err != nil {
		t.Fatalf("AnalyticsSnapshot: %v", err)
	}
	if stats.Total != 6 {
		t.Errorf("total = %d, want 6", stats.Total)
	}
	if sum := stats.Submitted + stats.InProgress + stats.Resolved + stats.Rejected; sum != stats.Total {
		t.Errorf("status counts sum to %d, want total %d", sum, stats.Total)
	}
	if stats.Rejected != 0 {
		t.Errorf("rejected = %d, want 0 (absent status defaults to zero)", stats.Rejected)
	}
	var categorySum int64
	for category, count := range stats.ByCategory {
		if count == 0 {
			t.Errorf("byCategory contains zero-count category %q", category)
		}
		categorySum += count
	}
	if categorySum != stats.Total {
		t.Errorf("category counts sum to %d, want total %d", categorySum, stats.Total)
	}
	if _, ok := stats.ByCategory[domain.CategoryGarbage]; ok {
		t.Error("byCategory contains a category with no tickets")
	}
}

func TestNotePreview(t *testing.T) {
	if got := notePreview("short note", 120); got != "short note" {
		t.Errorf("preview = %q", got)
	}

	long := strings.Repeat("é", 200)
	got := notePreview(long, 120)
	if !utf8.ValidString(got) {
		t.Errorf("preview is not valid UTF-8: %q", got)
	}
	if want := strings.Repeat("é", 117) + "..."; got != want {
		t.Errorf("preview = %q, want 117 characters plus ellipsis", got)
	}
}

func TestNotFoundIsNotLeakedStoreError(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.GetByID(context.Background(), admin, "nope")
	if errors.Is(err, pgx.ErrNoRows) {
		t.Error("store-native error leaked to caller")
	}
	assertCode(t, err, "NOT_FOUND")
}
