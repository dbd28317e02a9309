// Package memory provides in-process implementations of the repository
// interfaces. It backs local runs without Postgres and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

type ticketRecord struct {
	ticket domain.Ticket
	seq    int64
}

// Store holds every table behind a single mutex, which also gives Mutate
// the same serialization a row lock gives in Postgres.
type Store struct {
	mu          sync.Mutex
	seq         int64
	users       map[string]domain.User
	departments map[string]domain.Department
	categories  map[string]domain.Category
	equipment   map[string]domain.Equipment
	tickets     map[string]*ticketRecord
	attachments map[string][]domain.Attachment
	comments    map[string][]domain.Comment
	history     map[string][]domain.HistoryEntry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]domain.User),
		departments: make(map[string]domain.Department),
		categories:  make(map[string]domain.Category),
		equipment:   make(map[string]domain.Equipment),
		tickets:     make(map[string]*ticketRecord),
		attachments: make(map[string][]domain.Attachment),
		comments:    make(map[string][]domain.Comment),
		history:     make(map[string][]domain.HistoryEntry),
	}
}

func (s *Store) Users() repository.UserRepository             { return userRepo{s} }
func (s *Store) Departments() repository.DepartmentRepository { return departmentRepo{s} }
func (s *Store) Categories() repository.CategoryRepository    { return categoryRepo{s} }
func (s *Store) Equipment() repository.EquipmentRepository    { return equipmentRepo{s} }
func (s *Store) Tickets() repository.TicketRepository         { return ticketRepo{s} }
func (s *Store) Attachments() repository.AttachmentRepository { return attachmentRepo{s} }
func (s *Store) Comments() repository.CommentRepository       { return commentRepo{s} }
func (s *Store) History() repository.TicketHistoryRepository  { return historyRepo{s} }

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *Store) userName(id string) string {
	return s.users[id].Name
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.User
	for _, user := range r.s.users {
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, user.Role) {
			continue
		}
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type departmentRepo struct{ s *Store }

func (r departmentRepo) Create(_ context.Context, dept *domain.Department) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.departments {
		if existing.Name == dept.Name {
			return repository.ErrDuplicate
		}
	}
	dept.ID = uuid.NewString()
	r.s.departments[dept.ID] = *dept
	return nil
}

func (r departmentRepo) GetByID(_ context.Context, id string) (*domain.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	dept, ok := r.s.departments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &dept, nil
}

func (r departmentRepo) GetByName(_ context.Context, name string) (*domain.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, dept := range r.s.departments {
		if dept.Name == name {
			return &dept, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r departmentRepo) List(_ context.Context) ([]domain.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := make([]domain.Department, 0, len(r.s.departments))
	for _, dept := range r.s.departments {
		result = append(result, dept)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type categoryRepo struct{ s *Store }

func (r categoryRepo) Create(_ context.Context, category *domain.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.categories {
		if existing.Name == category.Name {
			return repository.ErrDuplicate
		}
	}
	category.ID = uuid.NewString()
	r.s.categories[category.ID] = *category
	return nil
}

func (r categoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	category, ok := r.s.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &category, nil
}

func (r categoryRepo) GetByName(_ context.Context, name string) (*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, category := range r.s.categories {
		if category.Name == name {
			return &category, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r categoryRepo) List(_ context.Context) ([]domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := make([]domain.Category, 0, len(r.s.categories))
	for _, category := range r.s.categories {
		result = append(result, category)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type equipmentRepo struct{ s *Store }

func (r equipmentRepo) Create(_ context.Context, equipment *domain.Equipment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	equipment.ID = uuid.NewString()
	r.s.equipment[equipment.ID] = *equipment
	return nil
}

func (r equipmentRepo) GetByID(_ context.Context, id string) (*domain.Equipment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	equipment, ok := r.s.equipment[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &equipment, nil
}

func (r equipmentRepo) GetByName(_ context.Context, name string) (*domain.Equipment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, equipment := range r.s.equipment {
		if equipment.Name == name {
			return &equipment, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r equipmentRepo) List(_ context.Context) ([]domain.Equipment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := make([]domain.Equipment, 0, len(r.s.equipment))
	for _, equipment := range r.s.equipment {
		result = append(result, equipment)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket, attachments []domain.Attachment, history []domain.HistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.Version = 1
	for i := range attachments {
		attachments[i].ID = uuid.NewString()
		attachments[i].TicketID = ticket.ID
	}
	for i := range history {
		r.s.stampHistory(ticket.ID, &history[i])
	}
	r.s.tickets[ticket.ID] = &ticketRecord{ticket: *ticket, seq: r.s.nextSeq()}
	r.s.attachments[ticket.ID] = append([]domain.Attachment(nil), attachments...)
	r.s.history[ticket.ID] = append(r.s.history[ticket.ID], history...)
	r.s.decorate(ticket)
	return nil
}

func (s *Store) stampHistory(ticketID string, entry *domain.HistoryEntry) {
	entry.ID = uuid.NewString()
	entry.TicketID = ticketID
	entry.Sequence = s.nextSeq()
	if entry.ActorID != nil {
		entry.ActorName = s.userName(*entry.ActorID)
	}
}

// decorate fills the display fields a Postgres read joins in.
func (s *Store) decorate(ticket *domain.Ticket) {
	ticket.RequesterName = s.userName(ticket.RequesterID)
	ticket.CategoryName = s.categories[ticket.CategoryID].Name
	ticket.TechnicianName = nil
	if ticket.TechnicianID != nil {
		name := s.userName(*ticket.TechnicianID)
		ticket.TechnicianName = &name
	}
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ticket := record.ticket
	r.s.decorate(&ticket)
	return &ticket, nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	var records []*ticketRecord
	for _, record := range r.s.tickets {
		if matchesTicket(record.ticket, filter, search) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if filter.OldestPriorityFirst {
			if !a.ticket.PriorityChangedAt.Equal(b.ticket.PriorityChangedAt) {
				return a.ticket.PriorityChangedAt.Before(b.ticket.PriorityChangedAt)
			}
			return a.seq < b.seq
		}
		if !a.ticket.CreatedAt.Equal(b.ticket.CreatedAt) {
			return a.ticket.CreatedAt.After(b.ticket.CreatedAt)
		}
		return a.seq > b.seq
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return nil, nil
	}
	records = records[offset:]
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	if len(records) > limit {
		records = records[:limit]
	}

	result := make([]domain.Ticket, 0, len(records))
	for _, record := range records {
		ticket := record.ticket
		r.s.decorate(&ticket)
		result = append(result, ticket)
	}
	return result, nil
}

func matchesTicket(t domain.Ticket, filter repository.TicketFilter, search string) bool {
	if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
		return false
	}
	if filter.TechnicianID != nil && (t.TechnicianID == nil || *t.TechnicianID != *filter.TechnicianID) {
		return false
	}
	if filter.CategoryID != nil && t.CategoryID != *filter.CategoryID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if t.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Priorities) > 0 {
		found := false
		for _, priority := range filter.Priorities {
			if t.Priority == priority {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.PriorityChangedBefore != nil && t.PriorityChangedAt.After(*filter.PriorityChangedBefore) {
		return false
	}
	if search != "" &&
		!strings.Contains(strings.ToLower(t.Title), search) &&
		!strings.Contains(strings.ToLower(t.Description), search) {
		return false
	}
	return true
}

func (r ticketRepo) Mutate(_ context.Context, id string, mutate repository.TicketMutation) (*domain.Ticket, []domain.HistoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record, ok := r.s.tickets[id]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	working := record.ticket
	r.s.decorate(&working)
	entries, err := mutate(&working)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		current := record.ticket
		r.s.decorate(&current)
		return &current, nil, nil
	}
	working.Version = record.ticket.Version + 1
	for i := range entries {
		r.s.stampHistory(id, &entries[i])
	}
	record.ticket = working
	r.s.history[id] = append(r.s.history[id], entries...)
	r.s.decorate(&working)
	return &working, entries, nil
}

type attachmentRepo struct{ s *Store }

func (r attachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.Attachment(nil), r.s.attachments[ticketID]...), nil
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment, entry *domain.HistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record, ok := r.s.tickets[comment.TicketID]
	if !ok {
		return repository.ErrNotFound
	}
	comment.ID = uuid.NewString()
	comment.Sequence = r.s.nextSeq()
	comment.UserName = r.s.userName(comment.UserID)
	if comment.CreatedAt.After(record.ticket.UpdatedAt) {
		record.ticket.UpdatedAt = comment.CreatedAt
	}
	r.s.comments[comment.TicketID] = append(r.s.comments[comment.TicketID], *comment)
	if entry != nil {
		r.s.stampHistory(comment.TicketID, entry)
		r.s.history[comment.TicketID] = append(r.s.history[comment.TicketID], *entry)
	}
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := make([]domain.Comment, 0, len(r.s.comments[ticketID]))
	for _, comment := range r.s.comments[ticketID] {
		comment.UserName = r.s.userName(comment.UserID)
		result = append(result, comment)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Sequence < result[j].Sequence
	})
	return result, nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := append([]domain.HistoryEntry(nil), r.s.history[ticketID]...)
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Sequence < result[j].Sequence
	})
	return result, nil
}
