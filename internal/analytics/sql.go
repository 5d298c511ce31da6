package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gcbaptista/go-search-core/model"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS search_events (
		query_id TEXT NOT NULL,
		index_name TEXT NOT NULL,
		query TEXT NOT NULL,
		filters TEXT,
		search_type TEXT NOT NULL,
		response_time_us BIGINT NOT NULL,
		result_count INTEGER NOT NULL,
		cache_hit BOOLEAN NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_search_events_created_at ON search_events(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_search_events_index ON search_events(index_name, created_at)`,
}

// SQLSink stores search events in a search_events table, on PostgreSQL
// ("postgres") or SQLite ("sqlite3").
type SQLSink struct {
	db     *sql.DB
	driver string
}

// OpenSQLSink connects to the database and creates the table if needed.
func OpenSQLSink(ctx context.Context, driver, dsn string) (*SQLSink, error) {
	if driver != "postgres" && driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported analytics sql driver %q (supported: postgres, sqlite3)", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	if driver == "sqlite3" {
		// SQLite allows a single writer, and an in-memory database lives in one connection
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s: %w", driver, err)
	}

	s := &SQLSink{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLSink) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating analytics schema: %w", err)
		}
	}
	return nil
}

// placeholders returns n bind parameters in the driver's syntax.
func (s *SQLSink) placeholders(n int) string {
	params := make([]string, n)
	for i := range params {
		if s.driver == "postgres" {
			params[i] = fmt.Sprintf("$%d", i+1)
		} else {
			params[i] = "?"
		}
	}
	return strings.Join(params, ", ")
}

// Name identifies the sink in logs and health checks.
func (s *SQLSink) Name() string { return "sql" }

// inTx runs fn in a transaction, rolling back when it fails.
func (s *SQLSink) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Write inserts a batch of events in one transaction.
func (s *SQLSink) Write(ctx context.Context, events []model.SearchEvent) error {
	query := "INSERT INTO search_events (query_id, index_name, query, filters, search_type, response_time_us, result_count, cache_hit, created_at) VALUES (" +
		s.placeholders(9) + ")"
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			var filters sql.NullString
			if len(e.Filters) > 0 {
				raw, err := json.Marshal(e.Filters)
				if err != nil {
					return fmt.Errorf("encoding filters of query %s: %w", e.QueryID, err)
				}
				filters = sql.NullString{String: string(raw), Valid: true}
			}
			_, err := stmt.ExecContext(ctx, e.QueryID, e.IndexName, e.Query, filters, e.SearchType,
				e.ResponseTime.Microseconds(), e.ResultCount, e.CacheHit, e.Timestamp.UnixNano())
			if err != nil {
				return fmt.Errorf("inserting search event %s: %w", e.QueryID, err)
			}
		}
		return nil
	})
}

// Since returns up to limit events recorded at or after since, oldest first.
func (s *SQLSink) Since(ctx context.Context, since time.Time, limit int) ([]model.SearchEvent, error) {
	// Take the newest rows, then put them back in chronological order
	query := "SELECT query_id, index_name, query, filters, search_type, response_time_us, result_count, cache_hit, created_at FROM search_events WHERE created_at >= " +
		s.placeholders(1) + " ORDER BY created_at DESC LIMIT " + fmt.Sprint(limit)
	rows, err := s.db.QueryContext(ctx, query, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("querying search events: %w", err)
	}
	defer rows.Close()

	var events []model.SearchEvent
	for rows.Next() {
		var (
			e          model.SearchEvent
			filters    sql.NullString
			responseUs int64
			createdAt  int64
		)
		if err := rows.Scan(&e.QueryID, &e.IndexName, &e.Query, &filters, &e.SearchType, &responseUs, &e.ResultCount, &e.CacheHit, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning search event: %w", err)
		}
		if filters.Valid {
			if err := json.Unmarshal([]byte(filters.String), &e.Filters); err != nil {
				return nil, fmt.Errorf("decoding filters of query %s: %w", e.QueryID, err)
			}
		}
		e.ResponseTime = time.Duration(responseUs) * time.Microsecond
		e.Timestamp = time.Unix(0, createdAt)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search events: %w", err)
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// Ping checks the database connection.
func (s *SQLSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLSink) Close() error {
	return s.db.Close()
}
