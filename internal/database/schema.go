package database

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

//go:embed schema.sql
var schemaSQL string

// Statements returns the schema as individual statements.
func Statements() []string {
	var out []string
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the application tables at most once per process.
// Concurrent first callers share a single attempt; a failed attempt is not
// remembered, so the next caller retries.
type Schema struct {
	db     Execer
	logger zerolog.Logger

	group singleflight.Group
	mu    sync.Mutex
	done  bool
}

func NewSchema(db Execer, logger zerolog.Logger) *Schema {
	return &Schema{db: db, logger: logger.With().Str("service", "Schema").Logger()}
}

func (s *Schema) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Ensure runs the idempotent schema statements unless a previous call
// already succeeded.
func (s *Schema) Ensure(ctx context.Context) error {
	if s.ready() {
		return nil
	}
	_, err, _ := s.group.Do("ensure", func() (any, error) {
		if s.ready() {
			return nil, nil
		}
		for _, stmt := range Statements() {
			if _, err := s.db.Exec(ctx, stmt); err != nil {
				s.logger.Error().Err(err).Msg("Table init failed")
				return nil, fmt.Errorf("ensure tables: %w", err)
			}
		}
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
		s.logger.Info().Msg("Tables ready")
		return nil, nil
	})
	return err
}

// Reset forgets a previous successful initialization.
func (s *Schema) Reset() {
	s.mu.Lock()
	s.done = false
	s.mu.Unlock()
}
