package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ SourceRepository = (*SourceRepo)(nil)

type SourceRepo struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func (r *SourceRepo) UpsertSource(name, indexURL, label string) error {
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO sources (name, index_url, label, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			index_url = excluded.index_url,
			label = excluded.label,
			updated_at = excluded.updated_at
	`, name, indexURL, label, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	return nil
}

func (r *SourceRepo) UpdateCrawlStats(name string, discovered, inserted int, nextCrawlAt time.Time) error {
	now := time.Now().UTC()

	res, err := r.db.Exec(`
		UPDATE sources
		SET last_crawled_at = ?, next_crawl_at = ?, last_discovered = ?, last_inserted = ?, updated_at = ?
		WHERE name = ?
	`, now, nextCrawlAt.UTC(), discovered, inserted, now, name)
	if err != nil {
		return fmt.Errorf("failed to update crawl stats: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source '%s' is not registered", name)
	}

	return nil
}

func (r *SourceRepo) GetSource(name string) (*Source, error) {
	var source Source
	var lastCrawledAt, nextCrawlAt sql.NullTime

	err := r.db.QueryRow(`
		SELECT name, index_url, label, last_crawled_at, next_crawl_at,
		       last_discovered, last_inserted, created_at, updated_at
		FROM sources
		WHERE name = ?
	`, name).Scan(
		&source.Name, &source.IndexURL, &source.Label, &lastCrawledAt, &nextCrawlAt,
		&source.LastDiscovered, &source.LastInserted, &source.CreatedAt, &source.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	source.LastCrawledAt = timePtr(lastCrawledAt)
	source.NextCrawlAt = timePtr(nextCrawlAt)

	return &source, nil
}

func (r *SourceRepo) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
