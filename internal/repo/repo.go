package repo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"festreg/internal/model"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrEventNotFound         = errors.New("event not found")
	ErrEventFull             = errors.New("event is full")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrDuplicateUser         = errors.New("user with this email or phone already exists")
	ErrDuplicateCode         = errors.New("user code already taken")
	ErrDuplicatePayment      = errors.New("payment already exists for registration")

	// ErrStaleState is returned by conditional writes when the row left the
	// expected state after it was read.
	ErrStaleState = errors.New("row changed concurrently")
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the set of persistence operations the engine relies on. Every method
// is safe to call on a Repository directly or on the Store handed to WithinTx.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	UserCodeExists(ctx context.Context, code string) (bool, error)

	CreateEvent(ctx context.Context, e *model.Event) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	SetRegistrationOpen(ctx context.Context, eventID string, open bool) error
	// IncrementParticipants adds one participant only while the event has room.
	IncrementParticipants(ctx context.Context, eventID string) (int, error)
	// DecrementParticipants removes one participant, never going below zero.
	DecrementParticipants(ctx context.Context, eventID string) (int, error)

	NextRegistrationSeq(ctx context.Context) (int64, error)
	InsertRegistration(ctx context.Context, reg *model.Registration) error
	GetRegistrationByID(ctx context.Context, id string) (*model.Registration, error)
	// LockRegistration reads a registration and holds its row lock until the
	// surrounding transaction ends. Lock a registration before its payment.
	LockRegistration(ctx context.Context, id string) (*model.Registration, error)
	GetRegistrationByUserEvent(ctx context.Context, userID, eventID string) (*model.Registration, error)
	GetRegistrationsByUser(ctx context.Context, userID string) ([]model.Registration, error)
	UpdateRegistrationPayment(ctx context.Context, id string, status model.PaymentStatus, paidAt *time.Time) error
	CancelRegistration(ctx context.Context, id string) error
	// DeleteRegistration removes the row and reports the cancellation state it had.
	DeleteRegistration(ctx context.Context, id string) (model.CancellationStatus, error)

	InsertPayment(ctx context.Context, p *model.Payment) error
	// UpdatePayment writes p only while the stored status still equals from.
	UpdatePayment(ctx context.Context, p *model.Payment, from model.PaymentRecordStatus) error
	GetPaymentByID(ctx context.Context, id string) (*model.Payment, error)
	LockPayment(ctx context.Context, id string) (*model.Payment, error)
	GetPaymentByRegistrationID(ctx context.Context, registrationID string) (*model.Payment, error)
	GetPaymentsByStatus(ctx context.Context, status model.PaymentRecordStatus) ([]model.Payment, error)

	GetExportRows(ctx context.Context, eventID string) ([]model.ExportRow, error)
}

type Repository interface {
	Store
	// WithinTx runs fn against a transactional Store. Any error rolls back every write made through it.
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
	Ping(ctx context.Context) error
	MigrateUp(ctx context.Context) error
	MigrateDown(ctx context.Context) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type store struct {
	q querier
}

type repository struct {
	store
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{store: store{q: db}, db: db, log: log}, nil
}

func (r *repository) Ping(ctx context.Context) error {
	return r.db.Master.PingContext(ctx)
}

func (r *repository) WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &store{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error().Err(rbErr).Msg("failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const schemaMigrations = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// MigrateUp applies every embedded *.up.sql file not yet recorded in
// schema_migrations, in file order. Each file and its record commit together.
func (r *repository) MigrateUp(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}

	var n int
	for _, file := range files {
		version := migrationVersion(file)
		if applied[version] {
			continue
		}
		if err := r.execMigration(ctx, file, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
		n++
	}

	r.log.Info().Int("applied", n).Int("total", len(files)).Msg("migrations applied")
	return nil
}

// MigrateDown rolls back every applied migration, newest first.
func (r *repository) MigrateDown(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.down.sql")
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}

	var n int
	for _, file := range files {
		version := migrationVersion(file)
		if !applied[version] {
			continue
		}
		if err := r.execMigration(ctx, file, `DELETE FROM schema_migrations WHERE version = $1`, version); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
		n++
	}

	r.log.Info().Int("rolled_back", n).Msg("migrations rolled back")
	return nil
}

func (r *repository) appliedVersions(ctx context.Context) (map[string]bool, error) {
	if _, err := r.db.Master.ExecContext(ctx, schemaMigrations); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	rows, err := r.db.Master.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// execMigration runs one migration file and its bookkeeping statement in a transaction.
func (r *repository) execMigration(ctx context.Context, file, record, version string) error {
	sqlBytes, err := migrations.ReadFile(file)
	if err != nil {
		return err
	}

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// migrationVersion maps migrations/000001_init.up.sql to 000001_init.
func migrationVersion(file string) string {
	name := path.Base(file)
	name = strings.TrimSuffix(name, ".up.sql")
	return strings.TrimSuffix(name, ".down.sql")
}
