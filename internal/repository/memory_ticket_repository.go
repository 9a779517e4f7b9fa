package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coolfix/service-desk/internal/domain"
)

// MemoryTicketRepository keeps tickets in process memory. It backs DSN-less runs and tests
// and honours the same version contract as the Postgres store.
type MemoryTicketRepository struct {
	mu       sync.Mutex
	rows     map[string]*domain.ServiceTicket
	comms    map[string][]domain.CommunicationEntry
	now      func() time.Time
	failWith error
}

// NewMemoryTicketRepository constructs an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		rows:  map[string]*domain.ServiceTicket{},
		comms: map[string][]domain.CommunicationEntry{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// FailWith makes every subsequent call return err; nil restores normal behaviour.
func (r *MemoryTicketRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.ServiceTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.rows[ticket.ID]; ok {
		return domain.ErrVersionConflict
	}
	now := r.now()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	ticket.Version = 1
	stored := ticket.Clone()
	stored.CommunicationLog = nil
	r.rows[ticket.ID] = stored
	return nil
}

func (r *MemoryTicketRepository) Update(_ context.Context, ticket *domain.ServiceTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	current, ok := r.rows[ticket.ID]
	if !ok {
		return domain.ErrTicketNotFound
	}
	if current.Version != ticket.Version {
		return domain.ErrVersionConflict
	}
	ticket.Version++
	ticket.UpdatedAt = r.now()
	stored := ticket.Clone()
	stored.CommunicationLog = nil
	stored.TicketNumber = current.TicketNumber
	stored.CreatedAt = current.CreatedAt
	r.rows[ticket.ID] = stored
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.ServiceTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	return r.load(strings.TrimSpace(id))
}

func (r *MemoryTicketRepository) GetByNumber(_ context.Context, number string) (*domain.ServiceTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	number = strings.ToUpper(strings.TrimSpace(number))
	for id, t := range r.rows {
		if t.TicketNumber == number {
			return r.load(id)
		}
	}
	return nil, domain.ErrTicketNotFound
}

func (r *MemoryTicketRepository) load(id string) (*domain.ServiceTicket, error) {
	stored, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	out := stored.Clone()
	out.CommunicationLog = append([]domain.CommunicationEntry(nil), r.comms[id]...)
	return out, nil
}

func (r *MemoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.ServiceTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}

	items := make([]domain.ServiceTicket, 0, len(r.rows))
	for _, t := range r.rows {
		if matches(t, filter) {
			items = append(items, *t.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].TicketNumber > items[j].TicketNumber
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []domain.ServiceTicket{}, nil
	}
	items = items[offset:]
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func matches(t *domain.ServiceTicket, f TicketFilter) bool {
	if len(f.Statuses) > 0 && !containsValue(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsValue(f.Priorities, t.Priority) {
		return false
	}
	if len(f.ServiceTypes) > 0 && !containsValue(f.ServiceTypes, t.ServiceType) {
		return false
	}
	if f.TechnicianID != nil && (t.AssignedTechnician == nil || t.AssignedTechnician.ID != *f.TechnicianID) {
		return false
	}
	if f.CustomerPhone != nil && t.Customer.Phone != *f.CustomerPhone {
		return false
	}
	if f.CustomerName != nil {
		name := strings.ToLower(strings.TrimSpace(*f.CustomerName))
		if name != "" && !strings.Contains(strings.ToLower(t.Customer.Name), name) {
			return false
		}
	}
	if f.TicketNumber != nil && t.TicketNumber != strings.ToUpper(*f.TicketNumber) {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (r *MemoryTicketRepository) AppendCommunication(_ context.Context, entry *domain.CommunicationEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	stored, ok := r.rows[entry.TicketID]
	if !ok {
		return domain.ErrTicketNotFound
	}
	r.comms[entry.TicketID] = append(r.comms[entry.TicketID], *entry)
	stored.UpdatedAt = r.now()
	return nil
}

func (r *MemoryTicketRepository) ListCommunications(_ context.Context, ticketID string) ([]domain.CommunicationEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	return append([]domain.CommunicationEntry(nil), r.comms[ticketID]...), nil
}
