package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter captures listing parameters. Nil fields do not filter.
type TicketFilter struct {
	RequesterID           *string
	TechnicianID          *string
	CategoryID            *string
	Statuses              []domain.TicketStatus
	Priorities            []domain.TicketPriority
	SearchTerm            *string
	PriorityChangedBefore *time.Time
	// OldestPriorityFirst orders by priority_changed_at ascending instead
	// of newest ticket first.
	OldestPriorityFirst bool
	Limit               int
	Offset                int
}

// TicketMutation edits a locked ticket in place and returns the history
// entries describing the change. Returning no entries leaves the ticket
// untouched; returning an error aborts the whole mutation.
type TicketMutation func(ticket *domain.Ticket) ([]domain.HistoryEntry, error)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create stores the ticket, its attachments and its initial history in
	// one transaction.
	Create(ctx context.Context, ticket *domain.Ticket, attachments []domain.Attachment, history []domain.HistoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// Mutate serializes concurrent writers on the same ticket.
	Mutate(ctx context.Context, id string, mutate TicketMutation) (*domain.Ticket, []domain.HistoryEntry, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketSelect = `
        SELECT t.id, t.requester_id, t.technician_id, t.category_id, t.equipment_id,
               t.title, t.description, t.status, t.priority, t.created_at, t.updated_at,
               t.assigned_at, t.closed_at, t.priority_changed_at, t.version,
               COALESCE(u.name, ''), tech.name, COALESCE(c.name, '')
        FROM tickets t
        LEFT JOIN users u ON u.id = t.requester_id
        LEFT JOIN users tech ON tech.id = t.technician_id
        LEFT JOIN categories c ON c.id = t.category_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, attachments []domain.Attachment, history []domain.HistoryEntry) error {
	const insertTicket = `
        INSERT INTO tickets (requester_id, technician_id, category_id, equipment_id, title, description,
            status, priority, created_at, updated_at, assigned_at, closed_at, priority_changed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, version`
	const insertAttachment = `
        INSERT INTO attachments (ticket_id, filename, content_type, size_bytes, checksum, data, uploaded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertTicket,
			ticket.RequesterID,
			ticket.TechnicianID,
			ticket.CategoryID,
			ticket.EquipmentID,
			ticket.Title,
			ticket.Description,
			ticket.Status,
			ticket.Priority,
			ticket.CreatedAt,
			ticket.UpdatedAt,
			ticket.AssignedAt,
			ticket.ClosedAt,
			ticket.PriorityChangedAt,
		).Scan(&ticket.ID, &ticket.Version); err != nil {
			return err
		}
		for i := range attachments {
			attachments[i].TicketID = ticket.ID
			if err := tx.QueryRow(ctx, insertAttachment,
				attachments[i].TicketID,
				attachments[i].Filename,
				attachments[i].ContentType,
				attachments[i].SizeBytes,
				attachments[i].Checksum,
				attachments[i].Data,
				attachments[i].UploadedAt,
			).Scan(&attachments[i].ID); err != nil {
				return err
			}
		}
		for i := range history {
			history[i].TicketID = ticket.ID
			if err := insertHistory(ctx, tx, &history[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return translateError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return scanTicket(r.pool.QueryRow(ctx, ticketSelect+` WHERE t.id=$1`, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		if !validID(*filter.RequesterID) {
			return nil, nil
		}
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("t.requester_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		if !validID(*filter.TechnicianID) {
			return nil, nil
		}
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("t.technician_id=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		if !validID(*filter.CategoryID) {
			return nil, nil
		}
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("t.category_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.PriorityChangedBefore != nil {
		args = append(args, *filter.PriorityChangedBefore)
		clauses = append(clauses, fmt.Sprintf("t.priority_changed_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(t.title) LIKE %s OR LOWER(t.description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	order := "t.created_at DESC, t.id DESC"
	if filter.OldestPriorityFirst {
		order = "t.priority_changed_at ASC, t.id ASC"
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		ticketSelect, strings.Join(clauses, " AND "), order, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Mutate(ctx context.Context, id string, mutate TicketMutation) (*domain.Ticket, []domain.HistoryEntry, error) {
	if !validID(id) {
		return nil, nil, ErrNotFound
	}
	const update = `
        UPDATE tickets SET technician_id=$1, status=$2, priority=$3, assigned_at=$4, closed_at=$5,
            priority_changed_at=$6, updated_at=$7, version=version+1
        WHERE id=$8
        RETURNING version`

	var (
		ticket  *domain.Ticket
		entries []domain.HistoryEntry
	)
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		locked, err := scanTicket(tx.QueryRow(ctx, ticketSelect+` WHERE t.id=$1 FOR UPDATE OF t`, id))
		if err != nil {
			return err
		}
		entries, err = mutate(locked)
		if err != nil {
			return err
		}
		ticket = locked
		if len(entries) == 0 {
			return nil
		}
		if err := tx.QueryRow(ctx, update,
			locked.TechnicianID,
			locked.Status,
			locked.Priority,
			locked.AssignedAt,
			locked.ClosedAt,
			locked.PriorityChangedAt,
			locked.UpdatedAt,
			locked.ID,
		).Scan(&locked.Version); err != nil {
			return err
		}
		for i := range entries {
			entries[i].TicketID = locked.ID
			if err := insertHistory(ctx, tx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, translateError(err)
	}
	return ticket, entries, nil
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&ticket.TechnicianID,
		&ticket.CategoryID,
		&ticket.EquipmentID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AssignedAt,
		&ticket.ClosedAt,
		&ticket.PriorityChangedAt,
		&ticket.Version,
		&ticket.RequesterName,
		&ticket.TechnicianName,
		&ticket.CategoryName,
	); err != nil {
		return nil, translateError(err)
	}
	return &ticket, nil
}
