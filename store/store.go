package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/emrecunlu/trello-clone/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Repository is the transactional view of boards and tasks handed to a unit
// of work by RunTransaction.
type Repository interface {
	FindBoards(ctx context.Context, ownerID string) ([]model.Board, error)
	FindBoard(ctx context.Context, ownerID, boardID string) (model.Board, error)
	CreateBoard(ctx context.Context, ownerID, title string, order int) (model.Board, error)
	UpdateBoard(ctx context.Context, boardID string, p model.BoardPatch) error
	DeleteBoard(ctx context.Context, boardID string) error

	FindTasks(ctx context.Context, boardID string) ([]model.Task, error)
	FindTask(ctx context.Context, ownerID, taskID string) (model.Task, error)
	CreateTask(ctx context.Context, boardID, ownerID, description string, order int) (model.Task, error)
	UpdateTask(ctx context.Context, taskID string, p model.TaskPatch) error
	DeleteTask(ctx context.Context, taskID string) error

	// LockBoards serializes writers of one owner's board list until the
	// transaction ends. LockTasks does the same for the task lists of the
	// given boards. Writers that need both take LockBoards first.
	LockBoards(ctx context.Context, ownerID string) error
	LockTasks(ctx context.Context, boardIDs ...string) error
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store { return &Store{db: db, dialect: dialect} }

// Open connects to dsn. postgres:// URLs use pgx, sqlite:// paths and file:
// URIs use the pure Go sqlite driver.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, conn, dialect := resolveDSN(dsn)
	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// one connection: sqlite writers are serialized and in-memory
		// databases live as long as their connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return New(db, dialect), nil
}

func resolveDSN(dsn string) (driver, conn string, dialect Dialect) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", withForeignKeys("file:" + strings.TrimPrefix(dsn, "sqlite://")), SQLite
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return "sqlite", withForeignKeys(dsn), SQLite
	default:
		return "pgx", dsn, Postgres
	}
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func (s *Store) DB() *sql.DB { return s.db }
func (s *Store) Dialect() Dialect { return s.dialect }
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";\n") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// RunTransaction runs fn inside one database transaction. Every write fn
// makes through repo is committed when fn returns nil and rolled back
// otherwise.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return s.withTx(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

func (s *Store) withTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	if err := fn(&Tx{tx: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ConstraintViolation reports whether err was raised by a unique, check or
// foreign key constraint of either backend.
func ConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// conn is the part of *sql.Tx the repository uses.
type conn interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

// Tx implements Repository on top of a *sql.Tx.
type Tx struct {
	tx      conn
	dialect Dialect
}

func (t *Tx) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, rebind(t.dialect, q), args...)
}

func (t *Tx) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, rebind(t.dialect, q), args...)
}

func (t *Tx) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, rebind(t.dialect, q), args...)
}

// rebind rewrites ? placeholders into $n for postgres.
func rebind(d Dialect, q string) string {
	if d != Postgres || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const schema = `
create table if not exists users(
    id text primary key,
    email text not null,
    provider text not null default 'local',
    name text not null default '',
    avatar_url text not null default '',
    password_hash text not null default '',
    created_unix bigint not null default 0,
    unique(email, provider)
);
create unique index if not exists users_email_idx on users(lower(email), provider);
create table if not exists sessions(
    token text primary key,
    user_id text not null references users(id) on delete cascade,
    expires_unix bigint not null
);
create index if not exists sessions_user_idx on sessions(user_id);
create table if not exists boards(
    id text primary key,
    owner_id text not null references users(id) on delete cascade,
    title text not null check (length(title) between 1 and 30),
    ord integer not null check (ord > 0)
);
create index if not exists boards_owner_idx on boards(owner_id, ord);
create table if not exists tasks(
    id text primary key,
    board_id text not null references boards(id) on delete cascade,
    owner_id text not null references users(id) on delete cascade,
    description text not null check (length(description) between 1 and 100),
    ord integer not null check (ord > 0)
);
create index if not exists tasks_board_idx on tasks(board_id, ord);
create index if not exists tasks_owner_idx on tasks(owner_id)
`
