package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/stepwise-ai/stepwise/internal/model"
)

const (
	DefaultRetention     = 30 * 24 * time.Hour
	DefaultSweepInterval = time.Hour

	// sweepBatchSize bounds one pass so a long backlog cannot hold the
	// sqlite writer for the whole sweep.
	sweepBatchSize = 500
)

// RetentionSweeper periodically deletes decompositions older than the
// retention window. When an archiver is configured, each batch is archived
// before it is deleted; an archive failure leaves the rows in place for the
// next pass.
type RetentionSweeper struct {
	db        *sql.DB
	archiver  Archiver // may be nil
	Retention time.Duration
	Interval  time.Duration
}

// NewRetentionSweeper creates a RetentionSweeper. db must not be nil;
// archiver may be.
func NewRetentionSweeper(db *sql.DB, archiver Archiver, retention, interval time.Duration) *RetentionSweeper {
	if retention < 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &RetentionSweeper{
		db:        db,
		archiver:  archiver,
		Retention: retention,
		Interval:  interval,
	}
}

// Start runs the sweep loop until ctx is cancelled.
// It should be launched as a goroutine.
func (s *RetentionSweeper) Start(ctx context.Context) {
	if s.Retention == 0 {
		log.Println("retention sweeper disabled (retention=0)")
		return
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Printf("retention sweeper started (retention=%s interval=%s)", s.Retention, s.Interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("retention sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("retention sweep error: %v", err)
			}
		}
	}
}

// Sweep runs one pass: collect everything past the retention window,
// archive it, then delete it.
func (s *RetentionSweeper) Sweep(ctx context.Context) error {
	if s.Retention == 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-s.Retention).Format(time.RFC3339Nano)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prompt, tasks, source, model, trace_id, duration_ms, created_at
		FROM decompositions
		WHERE created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("query expired decompositions: %w", err)
	}
	defer rows.Close()

	var expired []model.Decomposition
	for rows.Next() {
		item, err := scanDecomposition(rows)
		if err != nil {
			log.Printf("retention: scan row: %v", err)
			continue
		}
		expired = append(expired, *item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	if s.archiver != nil {
		if err := s.archiver.Store(ctx, expired); err != nil {
			return fmt.Errorf("archive batch: %w", err)
		}
	}

	deleted := 0
	for _, dec := range expired {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM decompositions WHERE id = $1`, dec.DecompositionID); err != nil {
			log.Printf("retention: delete %s: %v", dec.DecompositionID, err)
			continue
		}
		deleted++
	}
	log.Printf("retention: removed %d decomposition(s) older than %s", deleted, cutoff)
	return nil
}
