// Package records is the customer and ticket store behind the tool endpoint.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalid     = errors.New("invalid record")
	ErrUnavailable = errors.New("store unavailable")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 1000
)

// Native status values. "disabled" predates the inactive status and may still
// appear in older data.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
	StatusDisabled  = "disabled"

	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
	TicketEscalated  = "escalated"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID        int64     `bun:"id,pk,autoincrement" yaml:"id"`
	Name      string    `bun:"name,notnull" yaml:"name"`
	Email     string    `bun:"email" yaml:"email"`
	Phone     string    `bun:"phone" yaml:"phone"`
	Status    string    `bun:"status,notnull,default:'active'" yaml:"status"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" yaml:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" yaml:"updated_at"`
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID         int64     `bun:"id,pk,autoincrement" yaml:"id"`
	CustomerID int64     `bun:"customer_id,notnull" yaml:"customer_id"`
	Issue      string    `bun:"issue,notnull" yaml:"issue"`
	Status     string    `bun:"status,notnull,default:'open'" yaml:"status"`
	Priority   string    `bun:"priority,notnull,default:'medium'" yaml:"priority"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" yaml:"created_at"`
}

type ListFilter struct {
	Status string
	Limit  int
}

// EffectiveLimit clamps Limit into [1, MaxListLimit], defaulting to DefaultListLimit.
func (f ListFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// CustomerPatch holds the fields to change. Nil means unchanged.
type CustomerPatch struct {
	Name   *string
	Email  *string
	Phone  *string
	Status *string
}

func (p CustomerPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Status == nil
}

// Columns lists the changed columns in a stable order.
func (p CustomerPatch) Columns() []string {
	cols := make([]string, 0, 4)
	if p.Name != nil {
		cols = append(cols, "name")
	}
	if p.Email != nil {
		cols = append(cols, "email")
	}
	if p.Phone != nil {
		cols = append(cols, "phone")
	}
	if p.Status != nil {
		cols = append(cols, "status")
	}
	return cols
}

func (p CustomerPatch) apply(c *Customer) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
}

type NewTicket struct {
	CustomerID int64
	Issue      string
	Priority   string
	Status     string
}

type TicketPatch struct {
	Status   *string
	Priority *string
}

func (p TicketPatch) Empty() bool { return p.Status == nil && p.Priority == nil }

func (p TicketPatch) Columns() []string {
	cols := make([]string, 0, 2)
	if p.Status != nil {
		cols = append(cols, "status")
	}
	if p.Priority != nil {
		cols = append(cols, "priority")
	}
	return cols
}

func (p TicketPatch) apply(t *Ticket) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
}

// Store is safe for concurrent use. Conflicting writes are serialized by the
// implementation; there is no atomicity across calls.
type Store interface {
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context, filter ListFilter) ([]Customer, error)
	UpdateCustomer(ctx context.Context, id int64, patch CustomerPatch) (Customer, error)
	CreateTicket(ctx context.Context, in NewTicket) (Ticket, error)
	UpdateTicket(ctx context.Context, id int64, patch TicketPatch) (Ticket, error)
	CustomerHistory(ctx context.Context, customerID int64) ([]Ticket, error)
	Close() error
}

// Seeder loads fixture rows with their ids preserved.
type Seeder interface {
	Seed(ctx context.Context, customers []Customer, tickets []Ticket) error
}

func validCustomerStatus(s string) bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusDisabled:
		return true
	default:
		return false
	}
}

func validTicketStatus(s string) bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketEscalated:
		return true
	default:
		return false
	}
}

func validPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

func validateNewTicket(in *NewTicket) error {
	in.Issue = strings.TrimSpace(in.Issue)
	if in.CustomerID < 1 {
		return fmt.Errorf("%w: customer_id must be positive", ErrInvalid)
	}
	if in.Issue == "" {
		return fmt.Errorf("%w: issue is empty", ErrInvalid)
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !validPriority(in.Priority) {
		return fmt.Errorf("%w: priority must be low, medium or high", ErrInvalid)
	}
	if in.Status == "" {
		in.Status = TicketOpen
	}
	if !validTicketStatus(in.Status) {
		return fmt.Errorf("%w: unknown ticket status %s", ErrInvalid, in.Status)
	}
	return nil
}

func validateCustomerPatch(p CustomerPatch) error {
	if p.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalid)
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalid)
	}
	if p.Status != nil && !validCustomerStatus(*p.Status) {
		return fmt.Errorf("%w: unknown customer status %s", ErrInvalid, *p.Status)
	}
	return nil
}

func validateTicketPatch(p TicketPatch) error {
	if p.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalid)
	}
	if p.Status != nil && !validTicketStatus(*p.Status) {
		return fmt.Errorf("%w: unknown ticket status %s", ErrInvalid, *p.Status)
	}
	if p.Priority != nil && !validPriority(*p.Priority) {
		return fmt.Errorf("%w: priority must be low, medium or high", ErrInvalid)
	}
	return nil
}
