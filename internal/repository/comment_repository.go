package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CommentRepository manages the append-only ticket discussion.
type CommentRepository interface {
	// Create stores the comment and its history entry atomically. It returns
	// ErrNotFound when the ticket does not exist.
	Create(ctx context.Context, comment *domain.Comment, entry *domain.HistoryEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment, entry *domain.HistoryEntry) error {
	if !validID(comment.TicketID) {
		return ErrNotFound
	}
	const touch = `UPDATE tickets SET updated_at=GREATEST(updated_at, $1) WHERE id=$2`
	const insert = `
        INSERT INTO comments (ticket_id, user_id, body, created_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id, seq`

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, touch, comment.CreatedAt, comment.TicketID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if err := tx.QueryRow(ctx, insert,
			comment.TicketID,
			comment.UserID,
			comment.Body,
			comment.CreatedAt,
		).Scan(&comment.ID, &comment.Sequence); err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		entry.TicketID = comment.TicketID
		return insertHistory(ctx, tx, entry)
	})
	return translateError(err)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	if !validID(ticketID) {
		return nil, nil
	}
	const query = `
        SELECT c.id, c.ticket_id, c.user_id, COALESCE(u.name, ''), c.body, c.created_at, c.seq
        FROM comments c
        LEFT JOIN users u ON u.id = c.user_id
        WHERE c.ticket_id=$1 ORDER BY c.created_at ASC, c.seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.UserID,
			&comment.UserName,
			&comment.Body,
			&comment.CreatedAt,
			&comment.Sequence,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
