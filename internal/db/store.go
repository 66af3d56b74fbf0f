package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

//go:embed migrations/*/*.sql
var embedMigrations embed.FS

// Store defines the interface for database operations
type Store interface {
	// User operations
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsersWithCredentials(ctx context.Context) ([]*models.User, error)

	// Credential operations
	ReplaceCredential(ctx context.Context, cred *models.Credential) error
	GetCredential(ctx context.Context, userID string) (*models.Credential, error)
	DeleteCredentials(ctx context.Context, userID string) error

	// Starred repository operations
	ListStarredRepositories(ctx context.Context, userID string) ([]*models.StarredRepository, error)
	ListStarredRepositoriesWithCommits(ctx context.Context, userID string) ([]*models.StarredRepository, error)
	UpsertStarredRepository(ctx context.Context, repo *models.StarredRepository) error
	DeleteStarredRepositories(ctx context.Context, ids []string) (int64, error)

	// Commit count operations
	LatestCommitDate(ctx context.Context, repositoryID string) (*models.Date, error)
	UpsertCommitCount(ctx context.Context, cc *models.CommitCount) (bool, error)
	ListCommitCounts(ctx context.Context, repositoryID string) ([]models.CommitCount, error)

	Ping(ctx context.Context) error
	Close() error
}

type dialect struct {
	driver      string
	gooseDriver string
	migrations  string
}

var (
	postgresDialect = dialect{driver: "postgres", gooseDriver: "postgres", migrations: "migrations/postgres"}
	sqliteDialect   = dialect{driver: "sqlite", gooseDriver: "sqlite3", migrations: "migrations/sqlite"}
)

// SQLStore implements Store over database/sql for Postgres and SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	clock   clockwork.Clock
	logger  *logrus.Logger
}

// StoreOption configures a SQLStore
type StoreOption func(*SQLStore)

// WithClock sets the clock used for row timestamps.
func WithClock(clock clockwork.Clock) StoreOption {
	return func(s *SQLStore) {
		s.clock = clock
	}
}

// WithLogger sets the logger used by the store and its migrations.
func WithLogger(logger *logrus.Logger) StoreOption {
	return func(s *SQLStore) {
		s.logger = logger
	}
}

func NewPostgresStore(connectionString string, opts ...StoreOption) (*SQLStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newSQLStore(db, postgresDialect, opts), nil
}

// NewSQLiteStore opens a SQLite database at path (":memory:" for an in-memory database).
func NewSQLiteStore(path string, opts ...StoreOption) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{"PRAGMA foreign_keys=ON"}
	if !strings.Contains(path, ":memory:") {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return newSQLStore(db, sqliteDialect, opts), nil
}

func newSQLStore(db *sql.DB, d dialect, opts []StoreOption) *SQLStore {
	s := &SQLStore{
		db:      db,
		dialect: d,
		clock:   clockwork.NewRealClock(),
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *SQLStore) Migrate() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(s.logger)

	if err := goose.SetDialect(s.dialect.gooseDriver); err != nil {
		return err
	}

	if err := goose.Up(s.db, s.dialect.migrations); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// q adapts a query written with Postgres placeholders to the store's dialect.
func (s *SQLStore) q(query string) string {
	if s.dialect.driver == postgresDialect.driver {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?$1")
}

func (s *SQLStore) now() time.Time {
	return s.clock.Now().UTC()
}

// placeholders returns "$from, $from+1, ..." for n arguments.
func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}
