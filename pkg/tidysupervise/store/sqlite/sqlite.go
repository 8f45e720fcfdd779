// Package sqlite is a store.Store backed by an SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store"
)

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a model registry with WAL mode and foreign
// keys enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	// a single connection keeps PRAGMAs and in-memory databases consistent
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS models (
	id TEXT PRIMARY KEY,
	format INTEGER NOT NULL,
	strategy TEXT NOT NULL,
	created_at TEXT NOT NULL,
	segment_size INTEGER NOT NULL,
	drop_partial INTEGER NOT NULL,
	num_docs INTEGER NOT NULL,
	lemmatization TEXT NOT NULL DEFAULT '',
	stoplist TEXT NOT NULL DEFAULT '',
	strip_markup INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS model_terms (
	model_id TEXT NOT NULL,
	col INTEGER NOT NULL,
	term TEXT NOT NULL,
	doc_count INTEGER NOT NULL,
	idf REAL NOT NULL,
	PRIMARY KEY(model_id, col),
	FOREIGN KEY(model_id) REFERENCES models(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS model_labels (
	model_id TEXT NOT NULL,
	k INTEGER NOT NULL,
	label TEXT NOT NULL,
	bias REAL NOT NULL,
	weights TEXT NOT NULL,
	PRIMARY KEY(model_id, k),
	FOREIGN KEY(model_id) REFERENCES models(id) ON DELETE CASCADE
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveModel replaces any model with the same id inside one transaction.
func (s *sqliteStore) SaveModel(ctx context.Context, m *model.Model) error {
	a := m.Artifact()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, a.ID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO models(id, format, strategy, created_at, segment_size, drop_partial, num_docs,
			lemmatization, stoplist, strip_markup)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Format, a.Strategy, a.CreatedAt.UTC().Format(time.RFC3339Nano),
		a.SegmentSize, a.DropPartial, a.NumDocs,
		a.Preprocessing.Lemmatization, a.Preprocessing.Stoplist, a.Preprocessing.StripMarkup)
	if err != nil {
		return fmt.Errorf("insert model: %w", err)
	}

	termStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO model_terms(model_id, col, term, doc_count, idf) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer termStmt.Close()
	for j, term := range a.Terms {
		if _, err := termStmt.ExecContext(ctx, a.ID, j, term, a.DocCounts[j], a.IDF[j]); err != nil {
			return fmt.Errorf("insert term %q: %w", term, err)
		}
	}

	for k, label := range a.Labels {
		weights, err := json.Marshal(a.Weights[k])
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO model_labels(model_id, k, label, bias, weights) VALUES(?, ?, ?, ?, ?)`,
			a.ID, k, label, a.Bias[k], string(weights))
		if err != nil {
			return fmt.Errorf("insert label %q: %w", label, err)
		}
	}

	return tx.Commit()
}

// LoadModel rebuilds a model from its rows.
func (s *sqliteStore) LoadModel(ctx context.Context, id string) (*model.Model, error) {
	var (
		a         model.Artifact
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, format, strategy, created_at, segment_size, drop_partial, num_docs,
			lemmatization, stoplist, strip_markup
		FROM models WHERE id = ?`, id).
		Scan(&a.ID, &a.Format, &a.Strategy, &createdAt, &a.SegmentSize, &a.DropPartial, &a.NumDocs,
			&a.Preprocessing.Lemmatization, &a.Preprocessing.Stoplist, &a.Preprocessing.StripMarkup)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: model %s", internalerr.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("model %s created_at: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT term, doc_count, idf FROM model_terms WHERE model_id = ? ORDER BY col`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			term string
			df   int
			idf  float64
		)
		if err := rows.Scan(&term, &df, &idf); err != nil {
			rows.Close()
			return nil, err
		}
		a.Terms = append(a.Terms, term)
		a.DocCounts = append(a.DocCounts, df)
		a.IDF = append(a.IDF, idf)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT label, bias, weights FROM model_labels WHERE model_id = ? ORDER BY k`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			label, weights string
			bias           float64
			w              []float64
		)
		if err := rows.Scan(&label, &bias, &weights); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(weights), &w); err != nil {
			return nil, fmt.Errorf("model %s label %q weights: %w", id, label, err)
		}
		a.Labels = append(a.Labels, label)
		a.Bias = append(a.Bias, bias)
		a.Weights = append(a.Weights, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return model.FromArtifact(a)
}

// ListModels implements store.Store.
func (s *sqliteStore) ListModels(ctx context.Context) ([]store.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.strategy, m.created_at, m.segment_size,
			(SELECT COUNT(*) FROM model_terms t WHERE t.model_id = m.id)
		FROM models m ORDER BY m.id`)
	if err != nil {
		return nil, err
	}

	var out []store.Summary
	for rows.Next() {
		var (
			sum       store.Summary
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Strategy, &createdAt, &sum.SegmentSize, &sum.Terms); err != nil {
			rows.Close()
			return nil, err
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, sum)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		labels, err := s.labels(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Labels = labels
	}
	return out, nil
}

func (s *sqliteStore) labels(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label FROM model_labels WHERE model_id = ? ORDER BY k`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteModel removes a model and, by cascade, its terms and labels.
func (s *sqliteStore) DeleteModel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: model %s", internalerr.ErrNotFound, id)
	}
	return nil
}
