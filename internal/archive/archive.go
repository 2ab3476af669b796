// Package archive persists pipeline results in SQLite so they can be listed,
// re-rendered and reused as fallback records without calling the reasoning
// service again.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/basin-analysis/internal/basinanalysis"
)

var ErrNotFound = errors.New("analysis not found")

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id              TEXT PRIMARY KEY,
	basin           TEXT NOT NULL,
	status          TEXT NOT NULL,
	decision        TEXT NOT NULL DEFAULT '',
	combined_chance REAL,
	warnings        INTEGER NOT NULL DEFAULT 0,
	started_at      TEXT NOT NULL,
	completed_at    TEXT NOT NULL,
	result          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS analyses_basin ON analyses (basin, completed_at);
`

// Store is a SQLite-backed result archive. The whole result is stored as JSON;
// the summary columns exist only for listing and filtering.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Summary is one listed analysis.
type Summary struct {
	ID             string          `db:"id" json:"id"`
	Basin          string          `db:"basin" json:"basin"`
	Status         string          `db:"status" json:"status"`
	Decision       string          `db:"decision" json:"decision,omitempty"`
	CombinedChance sql.NullFloat64 `db:"combined_chance" json:"-"`
	Warnings       int             `db:"warnings" json:"warnings"`
	CompletedAt    string          `db:"completed_at" json:"completed_at"`
}

// Chance returns the combined chance and whether the analysis reached it.
func (s Summary) Chance() (float64, bool) { return s.CombinedChance.Float64, s.CombinedChance.Valid }

func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	out := struct {
		plain
		CombinedChance *float64 `json:"combined_chance,omitempty"`
	}{plain: plain(s)}
	if v, ok := s.Chance(); ok {
		out.CombinedChance = &v
	}
	return json.Marshal(out)
}

// Filter narrows List. Zero fields match everything; Limit defaults to 50.
type Filter struct {
	Basin  string
	Status basinanalysis.PipelineStatus
	Limit  int
}

type row struct {
	ID             string          `db:"id"`
	Basin          string          `db:"basin"`
	Status         string          `db:"status"`
	Decision       string          `db:"decision"`
	CombinedChance sql.NullFloat64 `db:"combined_chance"`
	Warnings       int             `db:"warnings"`
	StartedAt      string          `db:"started_at"`
	CompletedAt    string          `db:"completed_at"`
	Result         string          `db:"result"`
}

// Open creates the database file and schema if needed. Use ":memory:" for a
// private in-memory archive.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts res, replacing an earlier result with the same ID.
func (s *Store) Save(ctx context.Context, res basinanalysis.PipelineResult) error {
	if res.ID == "" {
		return errors.New("save analysis: empty id")
	}
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode analysis %s: %w", res.ID, err)
	}
	r := row{
		ID:          res.ID,
		Basin:       res.Basin,
		Status:      string(res.Status),
		Warnings:    len(res.Warnings),
		StartedAt:   res.Metadata.StartedAt.UTC().Format(timeLayout),
		CompletedAt: res.Metadata.CompletedAt.UTC().Format(timeLayout),
		Result:      string(body),
	}
	if res.Chance != nil {
		r.Decision = string(res.Chance.Decision)
		r.CombinedChance = sql.NullFloat64{Float64: res.Chance.Combined, Valid: true}
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO analyses
		(id, basin, status, decision, combined_chance, warnings, started_at, completed_at, result)
		VALUES (:id, :basin, :status, :decision, :combined_chance, :warnings, :started_at, :completed_at, :result)
		ON CONFLICT(id) DO UPDATE SET
			basin = excluded.basin, status = excluded.status, decision = excluded.decision,
			combined_chance = excluded.combined_chance, warnings = excluded.warnings,
			started_at = excluded.started_at, completed_at = excluded.completed_at, result = excluded.result`, r)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", res.ID, err)
	}
	s.logger.Debug("analysis archived", zap.String("analysis_id", res.ID), zap.String("status", r.Status), zap.Int("bytes", len(body)))
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (basinanalysis.PipelineResult, error) {
	var body string
	err := s.db.GetContext(ctx, &body, "SELECT result FROM analyses WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return basinanalysis.PipelineResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return basinanalysis.PipelineResult{}, fmt.Errorf("load analysis %s: %w", id, err)
	}
	var res basinanalysis.PipelineResult
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return basinanalysis.PipelineResult{}, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return res, nil
}

// List returns summaries, most recently completed first.
func (s *Store) List(ctx context.Context, f Filter) ([]Summary, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	out := []Summary{}
	err := s.db.SelectContext(ctx, &out, `SELECT id, basin, status, decision, combined_chance, warnings, completed_at
		FROM analyses
		WHERE (? = '' OR basin = ?) AND (? = '' OR status = ?)
		ORDER BY completed_at DESC, id
		LIMIT ?`, f.Basin, f.Basin, string(f.Status), string(f.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM analyses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Fallback returns the records of a stored analysis in the shape a new run
// accepts as fallbacks. Records the stored run never produced stay nil.
func (s *Store) Fallback(ctx context.Context, id string) (*basinanalysis.Fallback, error) {
	res, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &basinanalysis.Fallback{
		System:   res.System,
		Charge:   res.Charge,
		Reserves: res.Reserves,
		Recovery: res.Recovery,
		Risk:     res.Risk,
	}, nil
}
