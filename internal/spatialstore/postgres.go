package spatialstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/alertsql"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/observability"
)

// Postgres queries a PostGIS database directly with bound parameters.
type Postgres struct {
	logger *slog.Logger
	db     *sql.DB
}

func OpenPostgres(logger *slog.Logger, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewPostgres(logger, db), nil
}

func NewPostgres(logger *slog.Logger, db *sql.DB) *Postgres {
	return &Postgres{logger: logger, db: db}
}

func (p *Postgres) Execute(ctx context.Context, q alertsql.Select) ([]Row, error) {
	text, args, err := q.Bound()
	if err != nil {
		return nil, fmt.Errorf("render query: %w", err)
	}

	start := time.Now()
	rs, err := p.db.QueryContext(ctx, text, args...)
	if err != nil {
		observability.IncUpstreamError("postgres", "query")
		return nil, fmt.Errorf("%w: postgres: %w", model.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = rs.Close() }()

	cols, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: postgres columns: %w", model.ErrUpstreamUnavailable, err)
	}

	var out []Row
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: postgres scan: %w", model.ErrUpstreamUnavailable, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("%w: postgres rows: %w", model.ErrUpstreamUnavailable, err)
	}

	dur := time.Since(start)
	observability.ObserveUpstreamLatency("postgres", dur.Seconds())
	p.logger.DebugContext(ctx, "postgres query done", "rows", len(out), "duration", dur.String())
	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }
