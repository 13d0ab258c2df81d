package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// Querier is satisfied by both *sql.DB and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scopeKey struct{}

// connScope holds at most one connection for the lifetime of a request.
type connScope struct {
	pool *sql.DB

	mu     sync.Mutex
	conn   *sql.Conn
	closed bool
}

func (s *connScope) acquire(ctx context.Context) (*sql.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("acquire connection: request scope already released")
	}
	if s.conn != nil {
		return s.conn, nil
	}

	conn, err := s.pool.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	s.conn = conn
	return conn, nil
}

func (s *connScope) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Scope is HTTP middleware giving each request its own lazily opened
// connection. The connection is returned to the pool when the handler
// returns, including when it panics.
func (db *DB) Scope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := &connScope{pool: db.SQL}
		defer func() {
			if err := scope.release(); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("release request connection")
			}
		}()

		ctx := context.WithValue(r.Context(), scopeKey{}, scope)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Querier returns the request-scoped connection when ctx carries one,
// opening it on first use. Outside a request scope it returns the pool.
func (db *DB) Querier(ctx context.Context) (Querier, error) {
	scope, ok := ctx.Value(scopeKey{}).(*connScope)
	if !ok {
		return db.SQL, nil
	}
	return scope.acquire(ctx)
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Conn)(nil)
)
