package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/visit-planner/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id               TEXT PRIMARY KEY,
	rep_id           TEXT NOT NULL,
	name             TEXT NOT NULL DEFAULT '',
	street           TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	postal_code      TEXT NOT NULL DEFAULT '',
	country          TEXT NOT NULL DEFAULT '',
	location         BLOB,
	potential_tier   TEXT NOT NULL DEFAULT 'unknown',
	rating           REAL NOT NULL DEFAULT 0,
	review_count     INTEGER NOT NULL DEFAULT 0,
	projected_volume REAL NOT NULL DEFAULT 0,
	pipeline_status  TEXT NOT NULL DEFAULT 'new',
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS anchors (
	id               TEXT PRIMARY KEY,
	rep_id           TEXT NOT NULL,
	candidate_id     TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL DEFAULT '',
	location         BLOB,
	search_radius_km REAL NOT NULL DEFAULT 10,
	weekdays         TEXT NOT NULL DEFAULT '',
	month_days       TEXT NOT NULL DEFAULT '',
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS visits (
	id           TEXT PRIMARY KEY,
	rep_id       TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	visit_date   TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (rep_id, candidate_id, visit_date)
);

CREATE INDEX IF NOT EXISTS idx_candidates_rep ON candidates(rep_id);
CREATE INDEX IF NOT EXISTS idx_anchors_rep ON anchors(rep_id);
CREATE INDEX IF NOT EXISTS idx_visits_rep_date ON visits(rep_id, visit_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, repID string) ([]model.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates
		 WHERE rep_id = ? AND pipeline_status <> ? ORDER BY id`,
		repID, string(model.PipelineDiscarded),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
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
	return out, eris.Wrap(rows.Err(), "sqlite: list candidates iterate")
}

func (s *SQLiteStore) ListAnchors(ctx context.Context, repID string) ([]model.Anchor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+anchorColumns+` FROM anchors WHERE rep_id = ? ORDER BY id`,
		repID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list anchors")
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
	return out, eris.Wrap(rows.Err(), "sqlite: list anchors iterate")
}

func (s *SQLiteStore) ListExistingVisits(ctx context.Context, repID string, from, to time.Time) ([]model.Visit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rep_id, candidate_id, visit_date, reason, created_at FROM visits
		 WHERE rep_id = ? AND visit_date BETWEEN ? AND ?
		 ORDER BY visit_date, created_at, id`,
		repID, from.Format(model.DateLayout), to.Format(model.DateLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list visits")
	}
	defer rows.Close()

	var out []model.Visit
	for rows.Next() {
		var v model.Visit
		var date string
		if err := rows.Scan(&v.ID, &v.RepID, &v.CandidateID, &date, &v.Reason, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan visit")
		}
		if v.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, eris.Wrapf(err, "sqlite: visit %s date", v.ID)
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list visits iterate")
}

// WriteVisit inserts the visit; an existing row for the same rep, candidate
// and date is left untouched and reported as already existing.
func (s *SQLiteStore) WriteVisit(ctx context.Context, v model.Visit) (model.WriteOutcome, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO visits (id, rep_id, candidate_id, visit_date, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (rep_id, candidate_id, visit_date) DO NOTHING`,
		v.ID, v.RepID, v.CandidateID, v.Date.Format(model.DateLayout), v.Reason, v.CreatedAt.UTC(),
	)
	if err != nil {
		return model.WriteError, eris.Wrapf(err, "sqlite: write visit %s", v.CandidateID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.WriteError, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return model.WriteAlreadyExists, nil
	}
	return model.WriteOK, nil
}

func (s *SQLiteStore) UpsertCandidates(ctx context.Context, candidates []model.Candidate) (int64, error) {
	const q = `INSERT INTO candidates (` + candidateColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			rep_id = excluded.rep_id, name = excluded.name,
			street = excluded.street, city = excluded.city, state = excluded.state,
			postal_code = excluded.postal_code, country = excluded.country,
			location = COALESCE(excluded.location, candidates.location),
			potential_tier = excluded.potential_tier, rating = excluded.rating,
			review_count = excluded.review_count, projected_volume = excluded.projected_volume,
			pipeline_status = excluded.pipeline_status, updated_at = excluded.updated_at`
	now := time.Now().UTC()
	return s.upsert(ctx, q, len(candidates), func(i int) ([]any, error) {
		return candidateRow(candidates[i], now)
	})
}

func (s *SQLiteStore) UpsertAnchors(ctx context.Context, anchors []model.Anchor) (int64, error) {
	const q = `INSERT INTO anchors (` + anchorColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			rep_id = excluded.rep_id, candidate_id = excluded.candidate_id, name = excluded.name,
			location = COALESCE(excluded.location, anchors.location),
			search_radius_km = excluded.search_radius_km,
			weekdays = excluded.weekdays, month_days = excluded.month_days,
			updated_at = excluded.updated_at`
	now := time.Now().UTC()
	return s.upsert(ctx, q, len(anchors), func(i int) ([]any, error) {
		return anchorRow(anchors[i], now)
	})
}

// upsert runs q once per row inside a single transaction.
func (s *SQLiteStore) upsert(ctx context.Context, q string, n int, row func(int) ([]any, error)) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert: prepare")
	}
	defer stmt.Close()

	var total int64
	for i := 0; i < n; i++ {
		args, err := row(i)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert row %d", i)
		}
		affected, _ := res.RowsAffected()
		total += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert: commit tx")
	}
	return total, nil
}
