package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coolfix/service-desk/internal/domain"
)

// TicketFilter captures ticket search parameters. Zero values mean "any".
type TicketFilter struct {
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	ServiceTypes  []domain.ServiceType
	TechnicianID  *string
	CustomerPhone *string
	CustomerName  *string
	TicketNumber  *string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int
	Offset        int
}

// DefaultListLimit applies when a filter sets no limit.
const DefaultListLimit = 20

// TicketRepository encapsulates ticket persistence. Update is compare-and-swap on
// Version and fails with domain.ErrVersionConflict when the stored version moved.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.ServiceTicket) error
	Update(ctx context.Context, ticket *domain.ServiceTicket) error
	GetByID(ctx context.Context, id string) (*domain.ServiceTicket, error)
	GetByNumber(ctx context.Context, number string) (*domain.ServiceTicket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.ServiceTicket, error)
	AppendCommunication(ctx context.Context, entry *domain.CommunicationEntry) error
	ListCommunications(ctx context.Context, ticketID string) ([]domain.CommunicationEntry, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, customer_name, customer_phone, customer_location, customer_email,
               service_type, appliance, problem_description, urgency, status, priority, technician,
               related_failed_call_ref, is_emergency, requires_part_ordering, estimated_response_time,
               tags, scheduled_at, completed_at, created_at, updated_at, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.ServiceTicket) error {
	const query = `
        INSERT INTO service_tickets (id, ticket_number, customer_name, customer_phone, customer_location,
            customer_email, service_type, appliance, problem_description, urgency, status, priority, technician,
            related_failed_call_ref, is_emergency, requires_part_ordering, estimated_response_time, tags,
            scheduled_at, completed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
        RETURNING created_at, updated_at, version`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.Customer.Name,
		ticket.Customer.Phone,
		ticket.Customer.Location,
		ticket.Customer.Email,
		ticket.ServiceType,
		ticket.Appliance,
		ticket.ProblemDescription,
		ticket.Urgency,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTechnician,
		ticket.RelatedFailedCallRef,
		ticket.IsEmergency,
		ticket.RequiresPartOrdering,
		ticket.EstimatedResponseTime,
		ticket.Tags,
		ticket.ScheduledAt,
		ticket.CompletedAt,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt, &ticket.Version)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.ServiceTicket) error {
	const query = `
        UPDATE service_tickets SET customer_name=$1, customer_phone=$2, customer_location=$3, customer_email=$4,
            service_type=$5, appliance=$6, problem_description=$7, urgency=$8, status=$9, priority=$10,
            technician=$11, is_emergency=$12, requires_part_ordering=$13, estimated_response_time=$14,
            tags=$15, scheduled_at=$16, completed_at=$17, updated_at=NOW(), version=version+1
        WHERE id=$18 AND version=$19
        RETURNING updated_at, version`
	err := r.pool.QueryRow(ctx, query,
		ticket.Customer.Name,
		ticket.Customer.Phone,
		ticket.Customer.Location,
		ticket.Customer.Email,
		ticket.ServiceType,
		ticket.Appliance,
		ticket.ProblemDescription,
		ticket.Urgency,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTechnician,
		ticket.IsEmergency,
		ticket.RequiresPartOrdering,
		ticket.EstimatedResponseTime,
		ticket.Tags,
		ticket.ScheduledAt,
		ticket.CompletedAt,
		ticket.ID,
		ticket.Version,
	).Scan(&ticket.UpdatedAt, &ticket.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM service_tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrTicketNotFound
		}
		return domain.ErrVersionConflict
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.ServiceTicket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM service_tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.ServiceTicket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM service_tickets WHERE ticket_number=$1`, strings.ToUpper(number))
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.ServiceTicket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	log, err := r.ListCommunications(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.CommunicationLog = log
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.ServiceTicket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.ServiceTypes) > 0 {
		placeholders := make([]string, len(filter.ServiceTypes))
		for i, st := range filter.ServiceTypes {
			args = append(args, st)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("service_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician->>'id' = $%d", len(args)))
	}
	if filter.CustomerPhone != nil {
		args = append(args, *filter.CustomerPhone)
		clauses = append(clauses, fmt.Sprintf("customer_phone = $%d", len(args)))
	}
	if filter.CustomerName != nil && strings.TrimSpace(*filter.CustomerName) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.CustomerName))+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(customer_name) LIKE $%d", len(args)))
	}
	if filter.TicketNumber != nil {
		args = append(args, strings.ToUpper(*filter.TicketNumber))
		clauses = append(clauses, fmt.Sprintf("ticket_number = $%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM service_tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ServiceTicket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) AppendCommunication(ctx context.Context, entry *domain.CommunicationEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `
        INSERT INTO ticket_communications (id, ticket_id, created_at, type, direction, content, author, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := tx.Exec(ctx, insert,
		entry.ID,
		entry.TicketID,
		entry.Timestamp,
		entry.Type,
		entry.Direction,
		entry.Content,
		entry.Author,
		entry.Status,
	); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `UPDATE service_tickets SET updated_at=NOW() WHERE id=$1`, entry.TicketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) ListCommunications(ctx context.Context, ticketID string) ([]domain.CommunicationEntry, error) {
	const query = `
        SELECT id, ticket_id, created_at, type, direction, content, author, status
        FROM ticket_communications WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CommunicationEntry
	for rows.Next() {
		var entry domain.CommunicationEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Timestamp,
			&entry.Type,
			&entry.Direction,
			&entry.Content,
			&entry.Author,
			&entry.Status,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.ServiceTicket, error) {
	var ticket domain.ServiceTicket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Customer.Name,
		&ticket.Customer.Phone,
		&ticket.Customer.Location,
		&ticket.Customer.Email,
		&ticket.ServiceType,
		&ticket.Appliance,
		&ticket.ProblemDescription,
		&ticket.Urgency,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssignedTechnician,
		&ticket.RelatedFailedCallRef,
		&ticket.IsEmergency,
		&ticket.RequiresPartOrdering,
		&ticket.EstimatedResponseTime,
		&ticket.Tags,
		&ticket.ScheduledAt,
		&ticket.CompletedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
