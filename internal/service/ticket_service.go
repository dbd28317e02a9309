package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	defaultPageSize = 1000
	maxPageSize     = 1000
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	attachments repository.AttachmentRepository
	comments    repository.CommentRepository
	history     repository.TicketHistoryRepository
	categories  repository.CategoryRepository
	equipment   repository.EquipmentRepository
	users       repository.UserRepository
	dispatcher  events.Dispatcher
	clock       clock.Clock
	logger      *zap.Logger
	limits      config.AttachmentConfig
	escalation  config.EscalationConfig

	// escalationBatch is the page size of an escalation sweep.
	escalationBatch int
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	AttachmentRepo repository.AttachmentRepository
	CommentRepo    repository.CommentRepository
	HistoryRepo    repository.TicketHistoryRepository
	CategoryRepo   repository.CategoryRepository
	EquipmentRepo  repository.EquipmentRepository
	UserRepo       repository.UserRepository
	Dispatcher     events.Dispatcher
	Clock          clock.Clock
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies, limits config.AttachmentConfig, escalation config.EscalationConfig) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		attachments: deps.AttachmentRepo,
		comments:    deps.CommentRepo,
		history:     deps.HistoryRepo,
		categories:  deps.CategoryRepo,
		equipment:   deps.EquipmentRepo,
		users:       deps.UserRepo,
		dispatcher:  deps.Dispatcher,
		clock:       clk,
		logger:      logger,
		limits:      limits,
		escalation:  escalation,

		escalationBatch: maxPageSize,
	}
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title       string
	Description string
	CategoryID  string
	EquipmentID *string
	Attachments []AttachmentInput
}

// UpdateTicketInput holds the optional fields staff may change. Values are
// raw so each one is validated on its own.
type UpdateTicketInput struct {
	Status       *string
	Priority     *string
	TechnicianID *string
}

// TicketListFilter narrows ticket listings.
type TicketListFilter struct {
	Status     *string
	Priority   *string
	CategoryID *string
	Query      *string
	Page       int
	PageSize   int
}

// TicketDetail is a ticket with everything hanging off it.
type TicketDetail struct {
	Ticket      domain.Ticket
	Equipment   *domain.Equipment
	Attachments []domain.Attachment
	Comments    []domain.Comment
	History     []domain.HistoryEntry
}

// CreateTicket files a ticket for a client. The ticket, its attachments and
// its created entry are stored together or not at all.
func (s *TicketService) CreateTicket(ctx context.Context, caller *domain.User, input CreateTicketInput) (*TicketDetail, error) {
	if !access.CanCreateTicket(caller) {
		return nil, apperrors.NewForbidden("only clients can create tickets")
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	categoryID := strings.TrimSpace(input.CategoryID)
	details := map[string]any{}
	if title == "" {
		details["title"] = "required"
	}
	if description == "" {
		details["description"] = "required"
	}
	if categoryID == "" {
		details["category_id"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidReference(apperrors.CodeInvalidCategory, "category not found",
				map[string]any{"category_id": categoryID})
		}
		return nil, apperrors.NewInternalError(err)
	}

	var equipment *domain.Equipment
	equipmentID := trimmedOrNil(input.EquipmentID)
	if equipmentID != nil {
		equipment, err = s.equipment.GetByID(ctx, *equipmentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewInvalidReference(apperrors.CodeInvalidEquipment, "equipment not found",
					map[string]any{"equipment_id": *equipmentID})
			}
			return nil, apperrors.NewInternalError(err)
		}
	}

	now := s.clock.Now()
	attachments, err := buildAttachments(input.Attachments, s.limits, now)
	if err != nil {
		return nil, err
	}

	priority := DeterminePriority(category.DefaultPriority, title, description)
	ticket := &domain.Ticket{
		RequesterID:       caller.ID,
		CategoryID:        category.ID,
		EquipmentID:       equipmentID,
		Title:             title,
		Description:       description,
		Status:            domain.TicketStatusOpen,
		Priority:          priority,
		CreatedAt:         now,
		UpdatedAt:         now,
		PriorityChangedAt: now,
	}
	history := []domain.HistoryEntry{{
		ActorID:     &caller.ID,
		ActorName:   caller.Name,
		Action:      domain.HistoryActionCreated,
		Description: fmt.Sprintf("Ticket creado con prioridad %s", priority),
		NewValue:    strPtr(string(priority)),
		CreatedAt:   now,
	}}

	if err := s.tickets.Create(ctx, ticket, attachments, history); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	ticket.RequesterName = caller.Name
	ticket.CategoryName = category.Name

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("priority", string(priority)),
		zap.Int("attachments", len(attachments)))
	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, userActor(caller), now,
		events.TicketCreatedPayload{
			RequesterID: caller.ID,
			CategoryID:  category.ID,
			Priority:    priority,
			Title:       title,
			Attachments: len(attachments),
		}))

	return &TicketDetail{
		Ticket:      *ticket,
		Equipment:   equipment,
		Attachments: attachments,
		Comments:    []domain.Comment{},
		History:     history,
	}, nil
}

// GetTicket loads a ticket with its comments, attachments and history. A
// ticket the caller may not read is reported exactly like a missing one.
func (s *TicketService) GetTicket(ctx context.Context, caller *domain.User, ticketID string) (*TicketDetail, error) {
	ticket, err := s.loadReadable(ctx, caller, ticketID, access.OpRead)
	if err != nil {
		return nil, err
	}

	detail := &TicketDetail{Ticket: *ticket}
	if ticket.EquipmentID != nil {
		equipment, err := s.equipment.GetByID(ctx, *ticket.EquipmentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		detail.Equipment = equipment
	}
	if detail.Attachments, err = s.attachments.ListByTicket(ctx, ticket.ID); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if detail.Comments, err = s.comments.ListByTicket(ctx, ticket.ID); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if detail.History, err = s.history.ListByTicket(ctx, ticket.ID); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for i := range detail.History {
		if detail.History[i].ActorID == nil {
			detail.History[i].ActorName = domain.SystemActorName
		}
	}
	return detail, nil
}

// ListTickets returns the caller's own tickets for clients and every
// ticket for staff.
func (s *TicketService) ListTickets(ctx context.Context, caller *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	repoFilter, err := buildTicketFilter(filter)
	if err != nil {
		return nil, err
	}
	if !access.CanListAllTickets(caller) {
		repoFilter.RequesterID = &caller.ID
	}
	return s.list(ctx, repoFilter)
}

// ListAssigned returns tickets assigned to the calling technician or admin.
func (s *TicketService) ListAssigned(ctx context.Context, caller *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if !access.CanListAssignment(caller) {
		return nil, apperrors.NewForbidden("only staff have assigned tickets")
	}
	repoFilter, err := buildTicketFilter(filter)
	if err != nil {
		return nil, err
	}
	repoFilter.TechnicianID = &caller.ID
	return s.list(ctx, repoFilter)
}

// ListResolved returns closed tickets assigned to the caller.
func (s *TicketService) ListResolved(ctx context.Context, caller *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if !access.CanListAssignment(caller) {
		return nil, apperrors.NewForbidden("only staff have resolved tickets")
	}
	filter.Status = nil
	repoFilter, err := buildTicketFilter(filter)
	if err != nil {
		return nil, err
	}
	repoFilter.TechnicianID = &caller.ID
	repoFilter.Statuses = []domain.TicketStatus{domain.TicketStatusClosed}
	return s.list(ctx, repoFilter)
}

func (s *TicketService) list(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func buildTicketFilter(filter TicketListFilter) (repository.TicketFilter, error) {
	var out repository.TicketFilter
	details := map[string]any{}

	if raw := trimmedOrNil(filter.Status); raw != nil {
		status, ok := domain.ParseTicketStatus(*raw)
		if !ok {
			details["status"] = *raw
		} else {
			out.Statuses = []domain.TicketStatus{status}
		}
	}
	if raw := trimmedOrNil(filter.Priority); raw != nil {
		priority, ok := domain.ParseTicketPriority(*raw)
		if !ok {
			details["priority"] = *raw
		} else {
			out.Priorities = []domain.TicketPriority{priority}
		}
	}
	if len(details) > 0 {
		return out, apperrors.NewValidationError("invalid filter", details)
	}
	out.CategoryID = trimmedOrNil(filter.CategoryID)
	out.SearchTerm = trimmedOrNil(filter.Query)

	size := filter.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	out.Limit = size
	out.Offset = (page - 1) * size
	return out, nil
}

// UpdateTicket applies a partial update from staff. Each field that
// actually changes yields one history entry and one event.
func (s *TicketService) UpdateTicket(ctx context.Context, caller *domain.User, ticketID string, input UpdateTicketInput) (*domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if caller.Role == domain.RoleClient {
		return nil, apperrors.NewForbidden("clients cannot update tickets")
	}

	var (
		newStatus   *domain.TicketStatus
		newPriority *domain.TicketPriority
		technician  *domain.User
	)
	details := map[string]any{}
	if input.Status != nil {
		status, ok := domain.ParseTicketStatus(*input.Status)
		if !ok {
			details["status"] = *input.Status
		} else {
			newStatus = &status
		}
	}
	if input.Priority != nil {
		priority, ok := domain.ParseTicketPriority(*input.Priority)
		if !ok {
			details["priority"] = *input.Priority
		} else {
			newPriority = &priority
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket update", details)
	}
	if input.TechnicianID != nil {
		techID := strings.TrimSpace(*input.TechnicianID)
		user, err := s.users.GetByID(ctx, techID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		if err != nil || !user.Role.IsStaff() {
			return nil, apperrors.NewInvalidReference(apperrors.CodeInvalidTechnician,
				"technician must be an existing technician or admin", map[string]any{"technician_id": techID})
		}
		technician = user
	}

	var denied bool
	ticket, entries, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) ([]domain.HistoryEntry, error) {
		if !access.CanAccess(caller, t, access.OpUpdate) {
			denied = true
			return nil, errAccessDenied
		}
		return applyUpdate(t, caller, newStatus, newPriority, technician, s.clock.Now()), nil
	})
	if err != nil {
		switch {
		case denied:
			return nil, apperrors.NewForbidden("not allowed to update this ticket")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		default:
			return nil, apperrors.NewInternalError(err)
		}
	}

	for _, entry := range entries {
		s.publishEvent(ctx, historyEvent(ticket.ID, userActor(caller), entry))
	}
	if len(entries) > 0 {
		s.logger.Info("ticket updated",
			zap.String("ticket_id", ticket.ID),
			zap.String("actor_id", caller.ID),
			zap.Int("changes", len(entries)))
	}
	return ticket, nil
}

var errAccessDenied = errors.New("access denied")

// applyUpdate mutates t and returns one entry per field that changed.
func applyUpdate(t *domain.Ticket, actor *domain.User, status *domain.TicketStatus, priority *domain.TicketPriority, technician *domain.User, now time.Time) []domain.HistoryEntry {
	var entries []domain.HistoryEntry
	entry := func(action domain.HistoryAction, description, oldValue, newValue string) domain.HistoryEntry {
		e := domain.HistoryEntry{
			ActorID:     &actor.ID,
			ActorName:   actor.Name,
			Action:      action,
			Description: description,
			NewValue:    strPtr(newValue),
			CreatedAt:   now,
		}
		if oldValue != "" {
			e.OldValue = strPtr(oldValue)
		}
		return e
	}

	if status != nil && *status != t.Status {
		entries = append(entries, entry(domain.HistoryActionStatusChanged,
			fmt.Sprintf("Estado cambiado de %s a %s", t.Status, *status), string(t.Status), string(*status)))
		if *status == domain.TicketStatusClosed {
			t.ClosedAt = &now
		} else if t.Status == domain.TicketStatusClosed {
			t.ClosedAt = nil
		}
		t.Status = *status
	}
	if priority != nil && *priority != t.Priority {
		entries = append(entries, entry(domain.HistoryActionPriorityChanged,
			fmt.Sprintf("Prioridad cambiada de %s a %s", t.Priority, *priority), string(t.Priority), string(*priority)))
		t.Priority = *priority
		t.PriorityChangedAt = now
	}
	if technician != nil && (t.TechnicianID == nil || *t.TechnicianID != technician.ID) {
		oldID := ""
		description := fmt.Sprintf("Asignado a técnico %s", technician.Name)
		if t.TechnicianID != nil {
			oldID = *t.TechnicianID
			oldName := oldID
			if t.TechnicianName != nil && *t.TechnicianName != "" {
				oldName = *t.TechnicianName
			}
			description = fmt.Sprintf("Reasignado de %s a %s", oldName, technician.Name)
		}
		entries = append(entries, entry(domain.HistoryActionTechnicianAssigned, description, oldID, technician.ID))
		if t.AssignedAt == nil {
			t.AssignedAt = &now
		}
		id, name := technician.ID, technician.Name
		t.TechnicianID = &id
		t.TechnicianName = &name
	}
	if len(entries) > 0 {
		t.UpdatedAt = now
	}
	return entries
}

// AddComment appends to a ticket's discussion. Callers who may not read the
// ticket get the same not-found answer as GetTicket.
func (s *TicketService) AddComment(ctx context.Context, caller *domain.User, ticketID, body string) (*domain.Comment, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment cannot be empty", map[string]any{"comment": "required"})
	}
	if _, err := s.loadReadable(ctx, caller, ticketID, access.OpComment); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	comment := &domain.Comment{
		TicketID:  ticketID,
		UserID:    caller.ID,
		UserName:  caller.Name,
		Body:      body,
		CreatedAt: now,
	}
	entry := &domain.HistoryEntry{
		ActorID:     &caller.ID,
		ActorName:   caller.Name,
		Action:      domain.HistoryActionCommented,
		Description: "Comentario agregado",
		CreatedAt:   now,
	}
	if err := s.comments.Create(ctx, comment, entry); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	comment.UserName = caller.Name

	s.publishEvent(ctx, events.NewEvent(events.EventTicketCommentAdded, ticketID, userActor(caller), now,
		events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    caller.ID,
			BodyPreview: preview(body, 140),
		}))
	return comment, nil
}

func (s *TicketService) loadReadable(ctx context.Context, caller *domain.User, ticketID string, op access.Operation) (*domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !access.CanAccess(caller, ticket, op) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// historyEvent maps a change entry onto the event announcing it.
func historyEvent(ticketID string, actor events.Actor, entry domain.HistoryEntry) events.Event {
	oldValue, newValue := deref(entry.OldValue), deref(entry.NewValue)
	switch entry.Action {
	case domain.HistoryActionStatusChanged:
		return events.NewEvent(events.EventTicketStatusChanged, ticketID, actor, entry.CreatedAt,
			events.TicketStatusChangedPayload{
				OldStatus: domain.TicketStatus(oldValue),
				NewStatus: domain.TicketStatus(newValue),
			})
	case domain.HistoryActionTechnicianAssigned:
		return events.NewEvent(events.EventTicketAssigned, ticketID, actor, entry.CreatedAt,
			events.TicketAssignedPayload{
				OldTechnicianID: entry.OldValue,
				TechnicianID:    entry.NewValue,
			})
	default:
		return events.NewEvent(events.EventTicketPriorityChanged, ticketID, actor, entry.CreatedAt,
			events.TicketPriorityChangedPayload{
				OldPriority: domain.TicketPriority(oldValue),
				NewPriority: domain.TicketPriority(newValue),
				Escalated:   entry.Action == domain.HistoryActionPriorityEscalated,
			})
	}
}

func userActor(user *domain.User) events.Actor {
	return events.Actor{UserID: &user.ID, Name: user.Name}
}

func systemActor() events.Actor {
	return events.Actor{Name: domain.SystemActorName}
}

func preview(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "…"
}

func strPtr(v string) *string {
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
