package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/logtech/roadsafe/internal/adapters/repository/migrations"
	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/pkg/logger"
)

const eventColumns = "id, timestamp, event_kind, intensity, synced, vocal_defense, integrity_hash, status"

// SQLiteStore persists the logs in a local SQLite database.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	log      logger.Logger
	reporter *sizeReporter
}

// OpenConnection opens a SQLite database with the pragmas the store relies on.
// A single connection is used so ":memory:" databases behave as one database
// and writes are serialized.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return db, nil
}

// NewSQLiteStore opens path, migrates it to the latest schema and starts the
// metrics updater.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	version, _, err := migrations.Status(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	o.log.Info(ctx, "sqlite store ready",
		logger.String("path", path),
		logger.Int("schema_version", int(version)))

	s := &SQLiteStore{db: db, path: path, log: o.log}
	s.reporter = startSizeReporter(ctx, o.metricsInterval, s.Count)
	return s, nil
}

func (s *SQLiteStore) Append(ctx context.Context, ev model.RoadEvent) (int64, error) {
	defer observe("append", time.Now())
	if ev.Status == "" {
		ev.Status = model.AppealNone
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO road_events (timestamp, event_kind, intensity, synced, vocal_defense, integrity_hash, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Timestamp, string(ev.Kind), ev.Intensity, ev.Synced, ev.VocalDefense, ev.IntegrityHash, string(ev.Status))
	if err != nil {
		return 0, fmt.Errorf("inserting event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading event id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) QueryAll(ctx context.Context) ([]model.RoadEvent, error) {
	defer observe("query_all", time.Now())
	rows, err := s.db.QueryContext(ctx, "SELECT "+eventColumns+" FROM road_events ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []model.RoadEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (model.RoadEvent, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM road_events WHERE id = ?", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RoadEvent{}, ErrNotFound
	}
	return ev, err
}

func (s *SQLiteStore) UpdateAppeal(ctx context.Context, id int64, statement, hash string) error {
	defer observe("update_appeal", time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE road_events SET vocal_defense = ?, integrity_hash = ?, status = ?
		 WHERE id = ? AND status = ?`,
		statement, hash, string(model.AppealAppealed), id, string(model.AppealNone))
	if err != nil {
		return fmt.Errorf("updating appeal: %w", err)
	}
	return s.guarded(ctx, res, id)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status model.AppealStatus) error {
	defer observe("update_status", time.Now())
	if !status.Terminal() {
		return ErrConflict
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE road_events SET status = ? WHERE id = ? AND status = ?`,
		string(status), id, string(model.AppealAppealed))
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return s.guarded(ctx, res, id)
}

// guarded maps a conditional update that touched no row to ErrNotFound or
// ErrConflict.
func (s *SQLiteStore) guarded(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

func (s *SQLiteStore) AppendLearning(ctx context.Context, rec model.LearningRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO learning_records (topic_id, person_id, completed_at) VALUES (?, ?, ?)`,
		rec.TopicID, rec.PersonID, rec.CompletedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("inserting learning record: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListLearning(ctx context.Context) ([]model.LearningRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic_id, person_id, completed_at FROM learning_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying learning records: %w", err)
	}
	defer rows.Close()

	var out []model.LearningRecord
	for rows.Next() {
		var (
			rec model.LearningRecord
			ms  int64
		)
		if err := rows.Scan(&rec.ID, &rec.TopicID, &rec.PersonID, &ms); err != nil {
			return nil, fmt.Errorf("scanning learning record: %w", err)
		}
		rec.CompletedAt = time.UnixMilli(ms).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating learning records: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM road_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// Close stops the metrics updater and closes the database.
func (s *SQLiteStore) Close() error {
	s.reporter.stop()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.RoadEvent, error) {
	var (
		ev     model.RoadEvent
		kind   string
		status string
	)
	err := row.Scan(&ev.ID, &ev.Timestamp, &kind, &ev.Intensity, &ev.Synced, &ev.VocalDefense, &ev.IntegrityHash, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ev, err
		}
		return ev, fmt.Errorf("scanning event: %w", err)
	}
	ev.Kind = model.EventKind(kind)
	ev.Status = model.AppealStatus(status)
	return ev, nil
}
