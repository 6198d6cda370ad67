package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/pressly/goose/v3"

	"github.com/google/uuid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies the embedded schema migrations against dsn.
func RunMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// PostgresStore persists whole session records as JSONB rows, one document
// per session, with the same Store contract as the memory store.
type PostgresStore struct {
	pool  *pgxpool.Pool
	clock Clock
}

// NewPostgresStore connects a pgx pool to dsn. A nil clock uses the system clock.
func NewPostgresStore(ctx context.Context, dsn string, clock Clock) (*PostgresStore, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect session database: %w", err)
	}
	return &PostgresStore{pool: pool, clock: clock}, nil
}

// Close releases the underlying pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) Create(ctx context.Context, userID string, mode Mode) (*Session, error) {
	now := p.clock.Now()
	s := New(uuid.NewString(), userID, mode, now)

	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO coach_sessions (id, user_id, mode, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		s.ID, userID, string(mode), payload, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	var payload []byte
	var createdAt time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT payload, created_at FROM coach_sessions WHERE id = $1`, id,
	).Scan(&payload, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if p.clock.Now().Sub(createdAt) >= Retention {
		_ = p.Delete(ctx, id)
		return nil, ErrNotFound
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`UPDATE coach_sessions SET payload = $2, updated_at = $3 WHERE id = $1`,
		s.ID, payload, p.clock.Now(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM coach_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows older than the retention window.
func (p *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := p.clock.Now().Add(-Retention)
	tag, err := p.pool.Exec(ctx, `DELETE FROM coach_sessions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
