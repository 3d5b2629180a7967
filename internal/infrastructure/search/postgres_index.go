package search

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"digitalwall/internal/domain"
	"digitalwall/internal/ports"
)

// PostgresIndex maintains a flat keyword table for content discovery. It is
// deliberately simple; callers treat indexing as best-effort.
type PostgresIndex struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.SearchIndex = (*PostgresIndex)(nil)

// NewPostgresIndex wires a sql.DB implementation.
func NewPostgresIndex(db *sql.DB) *PostgresIndex {
	return &PostgresIndex{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Index upserts the item's display title and search keywords.
func (p *PostgresIndex) Index(ctx context.Context, item *domain.ContentItem) error {
	if p.db == nil {
		return fmt.Errorf("search index not connected")
	}

	title, keywords := indexableFields(item)

	query, args, err := p.builder.
		Insert("search_index").
		Columns("item_id", "title", "keywords", "indexed_at").
		Values(item.ID, title, pq.StringArray(keywords), time.Now().UTC()).
		Suffix(`ON CONFLICT (item_id) DO UPDATE
			SET title = EXCLUDED.title,
			    keywords = EXCLUDED.keywords,
			    indexed_at = EXCLUDED.indexed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build index upsert: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert index row: %w", err)
	}
	return nil
}

func indexableFields(item *domain.ContentItem) (string, []string) {
	title := "Shared Content"
	var keywords []string

	if item.Enriched != nil {
		if display, ok := item.Enriched["display"].(map[string]any); ok {
			if t, ok := display["title"].(string); ok && t != "" {
				title = t
			}
		}
		if kw, ok := item.Enriched["search_keywords"].([]string); ok {
			keywords = kw
		}
	}

	return title, keywords
}
