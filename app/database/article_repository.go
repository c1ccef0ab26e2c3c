package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ ArticleRepository = (*ArticleRepo)(nil)

const articleColumns = `id, url, source, title, content, COALESCE(original_content, ''), is_optimized,
       author, published_at, tags, created_at, updated_at, optimized_at`

type ArticleRepo struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

func (r *ArticleRepo) InsertIfAbsent(article NewArticle) (string, bool, error) {
	tags, err := json.Marshal(nonNilTags(article.Tags))
	if err != nil {
		return "", false, fmt.Errorf("failed to encode tags: %w", err)
	}

	var publishedAt any
	if article.PublishedAt != nil {
		publishedAt = article.PublishedAt.UTC()
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	res, err := r.db.Exec(`
		INSERT INTO articles (id, url, source, title, content, author, published_at, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING
	`, id, article.URL, article.Source, article.Title, article.Content, article.Author,
		publishedAt, string(tags), now, now)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert article: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("failed to read insert result: %w", err)
	}

	if n == 0 {
		existing, err := r.FindByURL(article.URL)
		if err != nil {
			return "", false, err
		}
		if existing == nil {
			return "", false, fmt.Errorf("article with URL %s vanished after conflicting insert", article.URL)
		}
		return existing.ID, false, nil
	}

	return id, true, nil
}

func (r *ArticleRepo) SaveOptimization(id string, content string, references []Reference) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	res, err := tx.Exec(`
		UPDATE articles
		SET original_content = COALESCE(original_content, content),
		    content = ?,
		    is_optimized = 1,
		    optimized_at = ?,
		    updated_at = ?
		WHERE id = ? AND is_optimized = 0
	`, content, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update article content: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}

	if n == 0 {
		var optimized bool
		err := tx.QueryRow("SELECT is_optimized FROM articles WHERE id = ?", id).Scan(&optimized)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrArticleNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check article state: %w", err)
		}
		return ErrAlreadyOptimized
	}

	for i, ref := range references {
		_, err := tx.Exec(`
			INSERT INTO article_references (article_id, position, title, url, harvested_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, i+1, ref.Title, ref.URL, ref.HarvestedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to store reference: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit optimization: %w", err)
	}

	return nil
}

func (r *ArticleRepo) FindByID(id string) (*Article, error) {
	row := r.db.QueryRow("SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	return r.findOne(row)
}

func (r *ArticleRepo) FindByURL(url string) (*Article, error) {
	row := r.db.QueryRow("SELECT "+articleColumns+" FROM articles WHERE url = ?", url)
	return r.findOne(row)
}

func (r *ArticleRepo) ListArticles(filter ArticleFilter) ([]Article, int, error) {
	var conditions []string
	var args []any

	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Optimized != nil {
		conditions = append(conditions, "is_optimized = ?")
		args = append(args, *filter.Optimized)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM articles"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	query := "SELECT " + articleColumns + " FROM articles" + where +
		" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	articles, err := r.queryArticles(query, append(args, limit, max(filter.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list articles: %w", err)
	}

	return articles, total, nil
}

func (r *ArticleRepo) GetPendingArticles(source string, limit int) ([]Article, error) {
	articles, err := r.queryArticles(
		"SELECT "+articleColumns+" FROM articles WHERE source = ? AND is_optimized = 0 ORDER BY created_at LIMIT ?",
		source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending articles: %w", err)
	}
	return articles, nil
}

func (r *ArticleRepo) GetArticleStats(source string) (ArticleStats, error) {
	var stats ArticleStats

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_optimized = 1 THEN 1 ELSE 0 END), 0)
		FROM articles`
	var args []any
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}

	if err := r.db.QueryRow(query, args...).Scan(&stats.Total, &stats.Optimized); err != nil {
		return stats, fmt.Errorf("failed to get article stats: %w", err)
	}
	stats.Pending = stats.Total - stats.Optimized

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ArticleRepo) findOne(row *sql.Row) (*Article, error) {
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	if article.IsOptimized {
		refs, err := r.loadReferences(article.ID)
		if err != nil {
			return nil, err
		}
		article.References = refs
	}

	return article, nil
}

func (r *ArticleRepo) queryArticles(query string, args ...any) ([]Article, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}
	rows.Close()

	for i := range articles {
		if !articles[i].IsOptimized {
			continue
		}
		refs, err := r.loadReferences(articles[i].ID)
		if err != nil {
			return nil, err
		}
		articles[i].References = refs
	}

	return articles, nil
}

func (r *ArticleRepo) loadReferences(articleID string) ([]Reference, error) {
	rows, err := r.db.Query(`
		SELECT title, url, harvested_at
		FROM article_references
		WHERE article_id = ?
		ORDER BY position
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get references: %w", err)
	}
	defer rows.Close()

	refs := []Reference{}
	for rows.Next() {
		var ref Reference
		if err := rows.Scan(&ref.Title, &ref.URL, &ref.HarvestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reference row: %w", err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reference rows: %w", err)
	}

	return refs, nil
}

func scanArticle(row rowScanner) (*Article, error) {
	var article Article
	var publishedAt, optimizedAt sql.NullTime
	var tags string

	err := row.Scan(
		&article.ID, &article.URL, &article.Source, &article.Title, &article.Content,
		&article.OriginalContent, &article.IsOptimized, &article.Author, &publishedAt, &tags,
		&article.CreatedAt, &article.UpdatedAt, &optimizedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &article.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	article.PublishedAt = timePtr(publishedAt)
	article.OptimizedAt = timePtr(optimizedAt)

	return &article, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
