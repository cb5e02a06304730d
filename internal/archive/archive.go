// Package archive keeps an append-only history of pipeline runs in
// Postgres. It is optional: the file store in internal/track remains
// the source of truth for change tracking.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"promowatch/internal/model"
)

// Store wraps a shared *sql.DB with pooling.
type Store struct {
	DB *sql.DB
}

// Open connects to Postgres via the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// RecordRun inserts one row per pipeline run with the full record list
// as JSON plus summary counts for cheap querying.
func (s *Store) RecordRun(ctx context.Context, competitor string, promos []model.StandardPromo, startedAt time.Time) error {
	payload, err := json.Marshal(promos)
	if err != nil {
		return fmt.Errorf("encode promotions: %w", err)
	}

	var newCount, updatedCount int
	for _, p := range promos {
		switch p.ChangeStatus {
		case model.StatusNew:
			newCount++
		case model.StatusUpdated:
			updatedCount++
		}
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO runs (id, competitor, started_at, finished_at, promo_count, new_count, updated_count, promotions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), competitor, startedAt.UTC(), time.Now().UTC(),
		len(promos), newCount, updatedCount, payload,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Run summarizes one archived pipeline run.
type Run struct {
	ID           uuid.UUID
	Competitor   string
	StartedAt    time.Time
	FinishedAt   time.Time
	PromoCount   int
	NewCount     int
	UpdatedCount int
}

// RecentRuns lists the latest archived runs for a competitor, newest
// first.
func (s *Store) RecentRuns(ctx context.Context, competitor string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, competitor, started_at, finished_at, promo_count, new_count, updated_count
		FROM runs
		WHERE competitor = $1
		ORDER BY started_at DESC
		LIMIT $2`, competitor, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Competitor, &r.StartedAt, &r.FinishedAt, &r.PromoCount, &r.NewCount, &r.UpdatedCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
