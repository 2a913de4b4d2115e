package records

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps records in maps behind a single lock.
type MemoryStore struct {
	mu           sync.RWMutex
	customers    map[int64]Customer
	tickets      map[int64]Ticket
	nextCustomer int64
	nextTicket   int64
	now          func() time.Time
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Seeder = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:    make(map[int64]Customer),
		tickets:      make(map[int64]Ticket),
		nextCustomer: 1,
		nextTicket:   1,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Seed(_ context.Context, customers []Customer, tickets []Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, c := range customers {
		if c.ID < 1 {
			c.ID = s.nextCustomer
		}
		if c.Status == "" {
			c.Status = StatusActive
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.Before(c.CreatedAt) {
			c.UpdatedAt = c.CreatedAt
		}
		s.customers[c.ID] = c
		s.nextCustomer = max(s.nextCustomer, c.ID+1)
	}
	for _, t := range tickets {
		if _, ok := s.customers[t.CustomerID]; !ok {
			return fmt.Errorf("%w: ticket %d references unknown customer %d", ErrInvalid, t.ID, t.CustomerID)
		}
		if t.ID < 1 {
			t.ID = s.nextTicket
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		s.tickets[t.ID] = t
		s.nextTicket = max(s.nextTicket, t.ID+1)
	}
	return nil
}

func (s *MemoryStore) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return Customer{}, fmt.Errorf("%w: customer %d", ErrNotFound, id)
	}
	return c, nil
}

func (s *MemoryStore) ListCustomers(ctx context.Context, filter ListFilter) ([]Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.mu.RLock()
	out := make([]Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if filter.Status == "" || c.Status == filter.Status {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Customer) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit := filter.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateCustomer(ctx context.Context, id int64, patch CustomerPatch) (Customer, error) {
	if err := validateCustomerPatch(patch); err != nil {
		return Customer{}, err
	}
	if err := ctx.Err(); err != nil {
		return Customer{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return Customer{}, fmt.Errorf("%w: customer %d", ErrNotFound, id)
	}
	patch.apply(&c)
	c.UpdatedAt = s.now()
	if c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}
	s.customers[id] = c
	return c, nil
}

func (s *MemoryStore) CreateTicket(ctx context.Context, in NewTicket) (Ticket, error) {
	if err := validateNewTicket(&in); err != nil {
		return Ticket{}, err
	}
	if err := ctx.Err(); err != nil {
		return Ticket{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[in.CustomerID]; !ok {
		return Ticket{}, fmt.Errorf("%w: customer %d", ErrNotFound, in.CustomerID)
	}
	t := Ticket{
		ID:         s.nextTicket,
		CustomerID: in.CustomerID,
		Issue:      in.Issue,
		Status:     in.Status,
		Priority:   in.Priority,
		CreatedAt:  s.now(),
	}
	s.tickets[t.ID] = t
	s.nextTicket++
	return t, nil
}

func (s *MemoryStore) UpdateTicket(ctx context.Context, id int64, patch TicketPatch) (Ticket, error) {
	if err := validateTicketPatch(patch); err != nil {
		return Ticket{}, err
	}
	if err := ctx.Err(); err != nil {
		return Ticket{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: ticket %d", ErrNotFound, id)
	}
	patch.apply(&t)
	s.tickets[id] = t
	return t, nil
}

func (s *MemoryStore) CustomerHistory(ctx context.Context, customerID int64) ([]Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, fmt.Errorf("%w: customer %d", ErrNotFound, customerID)
	}
	out := make([]Ticket, 0)
	for _, t := range s.tickets {
		if t.CustomerID == customerID {
			out = append(out, t)
		}
	}
	sortTickets(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortTickets(ts []Ticket) {
	slices.SortFunc(ts, func(a, b Ticket) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
