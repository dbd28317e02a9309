package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func seedTicket(t *testing.T, s *Store, requester, title string, createdAt time.Time) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		RequesterID:       requester,
		Title:             title,
		Description:       "detalle",
		Status:            domain.TicketStatusOpen,
		Priority:          domain.TicketPriorityLow,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
		PriorityChangedAt: createdAt,
	}
	entry := domain.HistoryEntry{ActorID: &requester, Action: domain.HistoryActionCreated, CreatedAt: createdAt}
	if err := s.Tickets().Create(context.Background(), ticket, nil, []domain.HistoryEntry{entry}); err != nil {
		t.Fatal(err)
	}
	return ticket
}

func TestUserEmailUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Users().Create(ctx, &domain.User{Email: "a@b.com", Name: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Users().Create(ctx, &domain.User{Email: "a@b.com", Name: "B"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("second Create() error = %v, want ErrDuplicate", err)
	}
	if _, err := s.Users().GetByEmail(ctx, "x@b.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUserListFiltersAndSorts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, u := range []domain.User{
		{Email: "z@x.com", Name: "Zoe", Role: domain.RoleTechnician},
		{Email: "a@x.com", Name: "Ana", Role: domain.RoleTechnician},
		{Email: "c@x.com", Name: "Carla", Role: domain.RoleClient},
	} {
		if err := s.Users().Create(ctx, &u); err != nil {
			t.Fatal(err)
		}
	}
	techs, err := s.Users().List(ctx, repository.UserFilter{Roles: []domain.Role{domain.RoleTechnician}})
	if err != nil {
		t.Fatal(err)
	}
	if len(techs) != 2 || techs[0].Name != "Ana" || techs[1].Name != "Zoe" {
		t.Errorf("technicians = %v", techs)
	}
}

func TestTicketListOrderingAndFilters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	first := seedTicket(t, s, "u1", "Impresora", t0)
	second := seedTicket(t, s, "u1", "Correo", t0)
	third := seedTicket(t, s, "u2", "Impresora rota", t0.Add(time.Minute))

	all, err := s.Tickets().List(ctx, repository.TicketFilter{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{third.ID, second.ID, first.ID}
	if len(all) != len(want) {
		t.Fatalf("len(List) = %d, want %d", len(all), len(want))
	}
	for i := range want {
		if all[i].ID != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, all[i].ID, want[i])
		}
	}

	requester := "u1"
	search := " IMPRESORA "
	tests := []struct {
		name   string
		filter repository.TicketFilter
		want   int
	}{
		{"requester", repository.TicketFilter{RequesterID: &requester}, 2},
		{"search", repository.TicketFilter{SearchTerm: &search}, 2},
		{"requester and search", repository.TicketFilter{RequesterID: &requester, SearchTerm: &search}, 1},
		{"status", repository.TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusClosed}}, 0},
		{"priority", repository.TicketFilter{Priorities: []domain.TicketPriority{domain.TicketPriorityLow}}, 3},
		{"offset past end", repository.TicketFilter{Offset: 5}, 0},
		{"limit", repository.TicketFilter{Limit: 1, Offset: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Tickets().List(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestMutate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Users().Create(ctx, &domain.User{Email: "t@x.com", Name: "Tec"}); err != nil {
		t.Fatal(err)
	}
	tech, _ := s.Users().GetByEmail(ctx, "t@x.com")
	ticket := seedTicket(t, s, "u1", "Red", t0)

	failure := errors.New("boom")
	_, _, err := s.Tickets().Mutate(ctx, ticket.ID, func(tk *domain.Ticket) ([]domain.HistoryEntry, error) {
		tk.Status = domain.TicketStatusClosed
		return nil, failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Mutate() error = %v, want %v", err, failure)
	}
	if got, _ := s.Tickets().GetByID(ctx, ticket.ID); got.Status != domain.TicketStatusOpen {
		t.Error("failed mutation leaked a change")
	}

	noop, entries, err := s.Tickets().Mutate(ctx, ticket.ID, func(tk *domain.Ticket) ([]domain.HistoryEntry, error) {
		tk.Status = domain.TicketStatusClosed
		return nil, nil
	})
	if err != nil || len(entries) != 0 || noop.Status != domain.TicketStatusOpen || noop.Version != 1 {
		t.Fatalf("no-op Mutate() = %v, %v, %v", noop, entries, err)
	}

	updated, entries, err := s.Tickets().Mutate(ctx, ticket.ID, func(tk *domain.Ticket) ([]domain.HistoryEntry, error) {
		tk.TechnicianID = &tech.ID
		return []domain.HistoryEntry{{ActorID: &tech.ID, Action: domain.HistoryActionTechnicianAssigned, CreatedAt: t0}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Version != 2 || updated.TechnicianName == nil || *updated.TechnicianName != "Tec" {
		t.Errorf("updated = %+v", updated)
	}
	if len(entries) != 1 || entries[0].ID == "" || entries[0].ActorName != "Tec" {
		t.Errorf("entries = %+v", entries)
	}

	history, _ := s.History().ListByTicket(ctx, ticket.ID)
	if len(history) != 2 || history[0].Action != domain.HistoryActionCreated || history[0].Sequence >= history[1].Sequence {
		t.Errorf("history = %+v", history)
	}

	if _, _, err := s.Tickets().Mutate(ctx, "ghost", nil); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Mutate(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestCommentsTouchTicket(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ticket := seedTicket(t, s, "u1", "Red", t0)

	later := t0.Add(time.Hour)
	for _, body := range []string{"uno", "dos"} {
		comment := &domain.Comment{TicketID: ticket.ID, UserID: "u1", Body: body, CreatedAt: later}
		if err := s.Comments().Create(ctx, comment, &domain.HistoryEntry{Action: domain.HistoryActionCommented, CreatedAt: later}); err != nil {
			t.Fatal(err)
		}
	}
	comments, _ := s.Comments().ListByTicket(ctx, ticket.ID)
	if len(comments) != 2 || comments[0].Body != "uno" || comments[1].Body != "dos" {
		t.Errorf("comments = %+v", comments)
	}
	got, _ := s.Tickets().GetByID(ctx, ticket.ID)
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, later)
	}

	stale := &domain.Comment{TicketID: ticket.ID, UserID: "u1", Body: "tres", CreatedAt: t0}
	if err := s.Comments().Create(ctx, stale, nil); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Tickets().GetByID(ctx, ticket.ID)
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt after older comment = %v, want %v", got.UpdatedAt, later)
	}

	orphan := &domain.Comment{TicketID: "ghost", UserID: "u1", Body: "x", CreatedAt: later}
	if err := s.Comments().Create(ctx, orphan, nil); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Create() on missing ticket error = %v, want ErrNotFound", err)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	now := t0
	store := NewSessionStore(func() time.Time { return now })
	ctx := context.Background()
	session := &domain.Session{ID: "s1", UserID: "u1", CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)}
	if err := store.Save(ctx, session); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "s1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	now = t0.Add(2 * time.Hour)
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Get() after expiry error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestTicketListOldestPriorityFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	newest := seedTicket(t, s, "u1", "Nuevo", t0.Add(2*time.Hour))
	oldest := seedTicket(t, s, "u1", "Viejo", t0)
	middle := seedTicket(t, s, "u1", "Medio", t0.Add(time.Hour))

	got, err := s.Tickets().List(ctx, repository.TicketFilter{OldestPriorityFirst: true, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != oldest.ID || got[1].ID != middle.ID {
		t.Errorf("first page = %v, want oldest then middle", got)
	}
	rest, _ := s.Tickets().List(ctx, repository.TicketFilter{OldestPriorityFirst: true, Limit: 2, Offset: 2})
	if len(rest) != 1 || rest[0].ID != newest.ID {
		t.Errorf("second page = %v, want newest", rest)
	}
}
