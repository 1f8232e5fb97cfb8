// Package store keeps measured metric values in a SQLite database, one
// JSON row per subject, assessment and region.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"facemetrics/internal/models"
	"facemetrics/pkg/metric"
)

// ErrNotFound is returned when nothing is stored for an assessment.
var ErrNotFound = errors.New("assessment not stored")

// DefaultPath is used when Open is given an empty path.
const DefaultPath = "facemetrics.db"

// Store is a SQLite backed measurement store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS measurements (
		subject TEXT NOT NULL,
		assessment INTEGER NOT NULL,
		region TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (subject, assessment, region)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create measurements table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database path
func (s *Store) Path() string { return s.path }

// row is the JSON payload of one value. JSON has no NaN, so undefined
// statistics are null.
type row struct {
	ID     int      `json:"id"`
	Source string   `json:"source,omitempty"`
	Dims   []rowDim `json:"dims"`
}

type rowDim struct {
	Value  float64  `json:"value"`
	Mean   *float64 `json:"mean"`
	ZScore *float64 `json:"zscore"`
}

func encode(set *metric.Set) ([]byte, error) {
	rows := make([]row, 0, set.Len())
	for _, v := range set.Values() {
		r := row{ID: v.ID(), Source: v.Source()}
		for _, d := range v.Dims() {
			r.Dims = append(r.Dims, rowDim{Value: d.Value, Mean: nullable(d.Mean), ZScore: nullable(d.ZScore)})
		}
		rows = append(rows, r)
	}
	return json.Marshal(rows)
}

func decode(payload []byte) ([]metric.Value, error) {
	var rows []row
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, err
	}
	out := make([]metric.Value, len(rows))
	for i, r := range rows {
		dims := make([]metric.Dim, len(r.Dims))
		for j, d := range r.Dims {
			dims[j] = metric.Dim{Value: d.Value, Mean: nanIfNull(d.Mean), ZScore: nanIfNull(d.ZScore)}
		}
		out[i] = metric.NewValue(r.ID, dims...).WithSource(r.Source)
	}
	return out, nil
}

func nullable(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

func nanIfNull(x *float64) float64 {
	if x == nil {
		return math.NaN()
	}
	return *x
}

// SaveAssessment writes the three metric sets of a, replacing whatever was
// stored for the same subject and assessment.
func (s *Store) SaveAssessment(ctx context.Context, subject uuid.UUID, a metric.Assessment) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, r := range models.Regions {
		data, err := encode(a.Metrics(r))
		if err != nil {
			return fmt.Errorf("encode %s: %w", r, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO measurements(subject,assessment,region,payload) VALUES(?,?,?,?)
			ON CONFLICT(subject,assessment,region) DO UPDATE SET payload=excluded.payload`,
			subject.String(), a.ID(), r.String(), data); err != nil {
			return fmt.Errorf("upsert %s: %w", r, err)
		}
	}
	return tx.Commit()
}

// LoadAssessment replaces the metric sets of a with the stored values and
// returns how many values changed. Listeners are notified of every change,
// including values removed because they were not stored.
func (s *Store) LoadAssessment(ctx context.Context, subject uuid.UUID, a metric.Assessment) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT region, payload FROM measurements WHERE subject = ? AND assessment = ?`,
		subject.String(), a.ID())
	if err != nil {
		return 0, fmt.Errorf("select measurements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stored := map[models.Region][]metric.Value{}
	for rows.Next() {
		var region string
		var payload []byte
		if err := rows.Scan(&region, &payload); err != nil {
			return 0, fmt.Errorf("scan: %w", err)
		}
		r, err := models.ParseRegion(region)
		if err != nil {
			return 0, err
		}
		vals, err := decode(payload)
		if err != nil {
			return 0, fmt.Errorf("decode %s: %w", region, err)
		}
		stored[r] = vals
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(stored) == 0 {
		return 0, fmt.Errorf("%w: %s/%d", ErrNotFound, subject, a.ID())
	}

	n := 0
	for _, r := range models.Regions {
		set := a.Metrics(r)
		keep := map[int]bool{}
		for _, v := range stored[r] {
			keep[v.ID()] = true
			if set.Put(v) {
				a.MetricChanged(r, v.ID())
				n++
			}
		}
		for _, id := range set.IDs() {
			if !keep[id] && set.Remove(id) {
				a.MetricChanged(r, id)
				n++
			}
		}
	}
	return n, nil
}

// Assessments returns the ids of the stored assessments of subject.
func (s *Store) Assessments(ctx context.Context, subject uuid.UUID) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT assessment FROM measurements WHERE subject = ? ORDER BY assessment`,
		subject.String())
	if err != nil {
		return nil, fmt.Errorf("select assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSubject removes everything stored for subject and returns the
// number of rows deleted.
func (s *Store) DeleteSubject(ctx context.Context, subject uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM measurements WHERE subject = ?`, subject.String())
	if err != nil {
		return 0, fmt.Errorf("delete subject: %w", err)
	}
	return res.RowsAffected()
}
