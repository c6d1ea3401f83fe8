package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"avatarforge/internal/domain"
	"avatarforge/internal/infra"
	"avatarforge/internal/sqlinline"
	"avatarforge/internal/workflow"
)

// GenerationStats aggregates generation history over a window.
type GenerationStats struct {
	Since      time.Time        `json:"since"`
	Total      int64            `json:"total"`
	Succeeded  int64            `json:"succeeded"`
	Failed     int64            `json:"failed"`
	Animated   int64            `json:"animated"`
	Bytes      int64            `json:"bytes"`
	ByCategory map[string]int64 `json:"byCategory"`
}

// GenerationRepository persists generation outcomes in PostgreSQL.
type GenerationRepository struct {
	db  infra.SQLExecutor
	now func() time.Time
}

// NewGenerationRepository constructs the repository.
func NewGenerationRepository(db infra.SQLExecutor) *GenerationRepository {
	return &GenerationRepository{db: db, now: time.Now}
}

// Migrate creates the history table when missing.
func (r *GenerationRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QGenerationSchema); err != nil {
		return fmt.Errorf("repo: migrate generation_history: %w", err)
	}
	return nil
}

// RecordGeneration stores one committed generation outcome.
func (r *GenerationRepository) RecordGeneration(ctx context.Context, o workflow.Outcome) error {
	category := strings.TrimSpace(o.Category)
	_, err := r.db.Exec(ctx, sqlinline.QGenerationInsert,
		uuid.New(),
		o.SessionID,
		int64(o.RequestID),
		o.DecorationID,
		category,
		o.Err == nil,
		failureKind(o.Err),
		o.Animated,
		o.Bytes,
		o.Frames,
		o.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("repo: insert generation: %w", err)
	}
	return nil
}

// StatsSince summarises history recorded at or after since.
func (r *GenerationRepository) StatsSince(ctx context.Context, since time.Time) (*GenerationStats, error) {
	stats := &GenerationStats{Since: since.UTC(), ByCategory: map[string]int64{}}
	if err := r.db.QueryRow(ctx, sqlinline.QGenerationSummarySince, since).Scan(
		&stats.Total,
		&stats.Succeeded,
		&stats.Failed,
		&stats.Animated,
		&stats.Bytes,
	); err != nil {
		return nil, fmt.Errorf("repo: generation summary: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlinline.QGenerationCategoriesSince, since)
	if err != nil {
		return nil, fmt.Errorf("repo: generation categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			category string
			total    int64
		)
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("repo: scan category: %w", err)
		}
		if category == "" {
			category = "none"
		}
		stats.ByCategory[category] += total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: generation categories: %w", err)
	}
	return stats, nil
}

// Last24h is StatsSince for the trailing day.
func (r *GenerationRepository) Last24h(ctx context.Context) (*GenerationStats, error) {
	return r.StatsSince(ctx, r.now().Add(-24*time.Hour))
}

// Prune deletes history older than cutoff and returns the number of rows removed.
func (r *GenerationRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, sqlinline.QGenerationPrune, cutoff)
	if err != nil {
		return 0, fmt.Errorf("repo: prune generations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func failureKind(err error) string {
	if err == nil {
		return ""
	}
	return domain.ErrorKind(err)
}

var _ workflow.Recorder = (*GenerationRepository)(nil)
