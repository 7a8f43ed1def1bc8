package store

import (
	"context"
	"embed"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/visit-planner/internal/db"
	"github.com/sells-group/visit-planner/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	listVisitsSQL = `SELECT id, rep_id, candidate_id, visit_date, reason, created_at FROM planner.visits
		WHERE rep_id = $1 AND visit_date BETWEEN $2 AND $3
		ORDER BY visit_date, created_at, id`
	writeVisitSQL = `INSERT INTO planner.visits (id, rep_id, candidate_id, visit_date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (rep_id, candidate_id, visit_date) DO NOTHING`
)

// preparedStatements lists queries to prepare on each new connection for
// the hot path of a planner run.
var preparedStatements = map[string]string{
	"list_visits": listVisitsSQL,
	"write_visit": writeVisitSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// Tables may not exist before the first migrate.
		var exists bool
		if err := conn.QueryRow(ctx, `SELECT to_regclass('planner.visits') IS NOT NULL`).Scan(&exists); err != nil || !exists {
			return nil
		}
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying pool for subsystems that share the database,
// such as the geocode cache.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return eris.Wrap(db.Migrate(ctx, s.pool, migrationFS, "migrations"), "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, repID string) ([]model.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+candidateColumns+` FROM planner.candidates
		 WHERE rep_id = $1 AND pipeline_status <> $2 ORDER BY id`,
		repID, string(model.PipelineDiscarded),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list candidates iterate")
}

func (s *PostgresStore) ListAnchors(ctx context.Context, repID string) ([]model.Anchor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+anchorColumns+` FROM planner.anchors WHERE rep_id = $1 ORDER BY id`,
		repID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list anchors")
	}
	defer rows.Close()

	var out []model.Anchor
	for rows.Next() {
		a, err := scanAnchor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list anchors iterate")
}

func (s *PostgresStore) ListExistingVisits(ctx context.Context, repID string, from, to time.Time) ([]model.Visit, error) {
	rows, err := s.pool.Query(ctx, listVisitsSQL, repID, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list visits")
	}
	defer rows.Close()

	var out []model.Visit
	for rows.Next() {
		var v model.Visit
		if err := rows.Scan(&v.ID, &v.RepID, &v.CandidateID, &v.Date, &v.Reason, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan visit")
		}
		v.Date = dateOnly(v.Date)
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list visits iterate")
}

// WriteVisit inserts the visit; a row already present for the same rep,
// candidate and date, including one written concurrently, is reported as
// already existing.
func (s *PostgresStore) WriteVisit(ctx context.Context, v model.Visit) (model.WriteOutcome, error) {
	tag, err := s.pool.Exec(ctx, writeVisitSQL,
		v.ID, v.RepID, v.CandidateID, dateOnly(v.Date), v.Reason, v.CreatedAt.UTC(),
	)
	if err != nil {
		return model.WriteError, eris.Wrapf(err, "postgres: write visit %s", v.CandidateID)
	}
	if tag.RowsAffected() == 0 {
		return model.WriteAlreadyExists, nil
	}
	return model.WriteOK, nil
}

var (
	candidateUpsertColumns = []string{
		"id", "rep_id", "name", "street", "city", "state", "postal_code", "country", "location",
		"potential_tier", "rating", "review_count", "projected_volume", "pipeline_status", "updated_at",
	}
	anchorUpsertColumns = []string{
		"id", "rep_id", "candidate_id", "name", "location", "search_radius_km", "weekdays", "month_days", "updated_at",
	}
)

func (s *PostgresStore) UpsertCandidates(ctx context.Context, candidates []model.Candidate) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(candidates))
	for _, c := range candidates {
		r, err := candidateRow(c, now)
		if err != nil {
			return 0, err
		}
		rows = append(rows, r)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "planner.candidates",
		Columns:      candidateUpsertColumns,
		ConflictKeys: []string{"id"},
		CoalesceCols: []string{"location"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert candidates")
}

func (s *PostgresStore) UpsertAnchors(ctx context.Context, anchors []model.Anchor) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(anchors))
	for _, a := range anchors {
		r, err := anchorRow(a, now)
		if err != nil {
			return 0, err
		}
		rows = append(rows, r)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "planner.anchors",
		Columns:      anchorUpsertColumns,
		ConflictKeys: []string{"id"},
		CoalesceCols: []string{"location"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert anchors")
}

// dateOnly truncates t to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
