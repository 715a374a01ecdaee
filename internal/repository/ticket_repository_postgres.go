package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
)

type postgresTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketRepository stores ticket items in the ticket_items table.
func NewPostgresTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &postgresTicketRepository{pool: pool}
}

func (r *postgresTicketRepository) Put(ctx context.Context, ticket *domain.Ticket) error {
	item, err := newTicketItem(ticket)
	if err != nil {
		return err
	}

	if item.Version == 1 {
		const insert = `
        INSERT INTO ticket_items (id, item_type, sort_key, status, priority, category, assigned_to, created_at, version, body)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (id) DO NOTHING`
		cmd, err := r.pool.Exec(ctx, insert,
			item.ID,
			item.Type,
			item.SortKey,
			item.Status,
			item.Priority,
			item.Category,
			item.AssignedTo,
			item.CreatedAt,
			item.Version,
			[]byte(item.Body),
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s already exists", ErrVersionConflict, item.ID)
		}
		return nil
	}

	const update = `
        UPDATE ticket_items SET status=$1, priority=$2, category=$3, assigned_to=$4, version=$5, body=$6
        WHERE id=$7 AND version=$8`
	cmd, err := r.pool.Exec(ctx, update,
		item.Status,
		item.Priority,
		item.Category,
		item.AssignedTo,
		item.Version,
		[]byte(item.Body),
		item.ID,
		item.Version-1,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s not at version %d", ErrVersionConflict, item.ID, item.Version-1)
	}
	return nil
}

func (r *postgresTicketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT body FROM ticket_items WHERE id=$1 AND item_type=$2`
	var body []byte
	if err := r.pool.QueryRow(ctx, query, id, ItemTypeTicket).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticketItem{ID: id, Body: json.RawMessage(body)}.decode()
}

func (r *postgresTicketRepository) Query(ctx context.Context, q TicketQuery) ([]domain.Ticket, error) {
	args := []any{ItemTypeTicket}
	clauses := []string{"item_type=$1"}

	if q.Status != "" {
		args = append(args, string(q.Status))
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if q.Priority != "" {
		args = append(args, string(q.Priority))
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if q.Category != "" {
		args = append(args, string(q.Category))
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if q.AssignedTo != "" {
		args = append(args, q.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if q.CreatedFrom != nil {
		args = append(args, *q.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q.CreatedTo != nil {
		args = append(args, *q.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT id, body FROM ticket_items WHERE %s ORDER BY created_at DESC`,
		strings.Join(clauses, " AND "))
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		ticket, err := ticketItem{ID: id, Body: json.RawMessage(body)}.decode()
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *postgresTicketRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}
