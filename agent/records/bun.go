package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver       string        `split_words:"true" default:"memory"`
	DSN          string        `envconfig:"DSN" default:"file::memory:?cache=shared"`
	MaxOpenConns int           `split_words:"true" default:"4"`
	PingTimeout  time.Duration `split_words:"true" default:"5s"`
}

// Open builds the store selected by cfg.Driver. SQL stores get their schema created.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite allows one writer at a time.
		sqldb.SetMaxOpenConns(1)
		return newBunStore(ctx, bun.NewDB(sqldb, sqlitedialect.New()), cfg)
	case DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		return newBunStore(ctx, bun.NewDB(sqldb, pgdialect.New()), cfg)
	default:
		return nil, fmt.Errorf("%w: unknown records driver %q", ErrInvalid, cfg.Driver)
	}
}

// BunStore persists records through the bun ORM.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

var (
	_ Store  = (*BunStore)(nil)
	_ Seeder = (*BunStore)(nil)
)

func NewBunStore(ctx context.Context, db *bun.DB) (*BunStore, error) {
	return newBunStore(ctx, db, Config{})
}

func newBunStore(ctx context.Context, db *bun.DB, cfg Config) (*BunStore, error) {
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrUnavailable, err)
	}

	s := &BunStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := s.CreateSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BunStore) CreateSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*Customer)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create customers table: %w", err)
	}
	if _, err := s.db.NewCreateTable().
		Model((*Ticket)(nil)).
		IfNotExists().
		ForeignKey(`("customer_id") REFERENCES "customers" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create tickets table: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*Ticket)(nil)).
		Index("idx_tickets_customer_id").
		Column("customer_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create tickets index: %w", err)
	}
	return nil
}

func (s *BunStore) Seed(ctx context.Context, customers []Customer, tickets []Ticket) error {
	now := s.now()
	for i := range customers {
		if customers[i].Status == "" {
			customers[i].Status = StatusActive
		}
		if customers[i].CreatedAt.IsZero() {
			customers[i].CreatedAt = now
		}
		if customers[i].UpdatedAt.Before(customers[i].CreatedAt) {
			customers[i].UpdatedAt = customers[i].CreatedAt
		}
	}
	for i := range tickets {
		if tickets[i].CreatedAt.IsZero() {
			tickets[i].CreatedAt = now
		}
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(customers) > 0 {
			if _, err := tx.NewInsert().Model(&customers).Exec(ctx); err != nil {
				return fmt.Errorf("seed customers: %w", err)
			}
		}
		if len(tickets) > 0 {
			if _, err := tx.NewInsert().Model(&tickets).Exec(ctx); err != nil {
				return fmt.Errorf("seed tickets: %w", err)
			}
		}
		if s.db.Dialect().Name() == dialect.PG {
			for _, table := range []string{"customers", "tickets"} {
				if _, err := tx.ExecContext(ctx,
					fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE(MAX(id), 1)) FROM %s", table, table),
				); err != nil {
					return fmt.Errorf("reset %s sequence: %w", table, err)
				}
			}
		}
		return nil
	})
}

func (s *BunStore) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := s.db.NewSelect().Model(&c).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return Customer{}, classify(err, "customer", id)
	}
	return c, nil
}

func (s *BunStore) ListCustomers(ctx context.Context, filter ListFilter) ([]Customer, error) {
	out := make([]Customer, 0)
	q := s.db.NewSelect().
		Model(&out).
		OrderExpr("created_at DESC").
		OrderExpr("id DESC").
		Limit(filter.EffectiveLimit())
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(err, "customers", 0)
	}
	return out, nil
}

func (s *BunStore) UpdateCustomer(ctx context.Context, id int64, patch CustomerPatch) (Customer, error) {
	if err := validateCustomerPatch(patch); err != nil {
		return Customer{}, err
	}

	var out Customer
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&out).Where("id = ?", id).Scan(ctx); err != nil {
			return classify(err, "customer", id)
		}
		patch.apply(&out)
		out.UpdatedAt = s.now()
		if out.UpdatedAt.Before(out.CreatedAt) {
			out.UpdatedAt = out.CreatedAt
		}
		cols := append(patch.Columns(), "updated_at")
		if _, err := tx.NewUpdate().Model(&out).Column(cols...).WherePK().Exec(ctx); err != nil {
			return classify(err, "customer", id)
		}
		return nil
	})
	if err != nil {
		return Customer{}, err
	}
	return out, nil
}

func (s *BunStore) CreateTicket(ctx context.Context, in NewTicket) (Ticket, error) {
	if err := validateNewTicket(&in); err != nil {
		return Ticket{}, err
	}

	t := Ticket{
		CustomerID: in.CustomerID,
		Issue:      in.Issue,
		Status:     in.Status,
		Priority:   in.Priority,
		CreatedAt:  s.now(),
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*Customer)(nil)).Where("id = ?", in.CustomerID).Exists(ctx)
		if err != nil {
			return classify(err, "customer", in.CustomerID)
		}
		if !exists {
			return fmt.Errorf("%w: customer %d", ErrNotFound, in.CustomerID)
		}
		if _, err := tx.NewInsert().Model(&t).Returning("id").Exec(ctx); err != nil {
			return classify(err, "ticket", 0)
		}
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	return t, nil
}

func (s *BunStore) UpdateTicket(ctx context.Context, id int64, patch TicketPatch) (Ticket, error) {
	if err := validateTicketPatch(patch); err != nil {
		return Ticket{}, err
	}

	var out Ticket
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&out).Where("id = ?", id).Scan(ctx); err != nil {
			return classify(err, "ticket", id)
		}
		patch.apply(&out)
		if _, err := tx.NewUpdate().Model(&out).Column(patch.Columns()...).WherePK().Exec(ctx); err != nil {
			return classify(err, "ticket", id)
		}
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	return out, nil
}

func (s *BunStore) CustomerHistory(ctx context.Context, customerID int64) ([]Ticket, error) {
	exists, err := s.db.NewSelect().Model((*Customer)(nil)).Where("id = ?", customerID).Exists(ctx)
	if err != nil {
		return nil, classify(err, "customer", customerID)
	}
	if !exists {
		return nil, fmt.Errorf("%w: customer %d", ErrNotFound, customerID)
	}

	out := make([]Ticket, 0)
	if err := s.db.NewSelect().
		Model(&out).
		Where("customer_id = ?", customerID).
		OrderExpr("created_at DESC").
		OrderExpr("id DESC").
		Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(err, "tickets", customerID)
	}
	return out, nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

// classify maps driver errors onto the store sentinels. Anything that is not a
// missing row is treated as the store being unavailable.
func classify(err error, kind string, id int64) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalid), errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
	default:
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, kind, err)
	}
}
