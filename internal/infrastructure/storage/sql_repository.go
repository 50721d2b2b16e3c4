package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"ArticlesBot/internal/config"
	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
)

// SQLRepository reads and writes article status records through database/sql.
type SQLRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	tables  config.TablesConfig
	history bool
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.ArticleRepository = (*SQLRepository)(nil)

// NewSQLRepository wires a sql.DB for the given dialect.
func NewSQLRepository(db *sql.DB, cfg config.DatabaseConfig, logger *slog.Logger) *SQLRepository {
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholderFor(cfg.Driver)),
		tables:  cfg.Tables,
		history: cfg.RecordHistory,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// ListArticles returns listed articles ordered by id.
func (r *SQLRepository) ListArticles(ctx context.Context, filter domain.ArticleStatus, order domain.SortOrder) []domain.Article {
	articles, err := r.listArticles(ctx, filter, order)
	if err != nil {
		r.logger.Error("list articles", "filter", filter, "order", order, "error", err)
		return nil
	}
	return articles
}

// GetArticle returns the article with the given id, if any.
func (r *SQLRepository) GetArticle(ctx context.Context, id int64) (domain.Article, bool) {
	article, err := r.getArticle(ctx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			r.logger.Error("get article", "article_id", id, "error", err)
		}
		return domain.Article{}, false
	}
	return article, true
}

// UpdateStatus sets the status of the article row assigned to principalID.
// With history recording on, a history entry is appended in the same transaction.
func (r *SQLRepository) UpdateStatus(ctx context.Context, id, principalID int64, status domain.ArticleStatus) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := r.now()
	update := r.builder.Update(r.tables.Articles).
		Set("status", string(status)).
		Where(sq.Eq{"article_id": id, "user_id": principalID})

	switch status {
	case domain.StatusStarted:
		update = update.Set("start_time", now)
	case domain.StatusDone:
		update = update.Set("end_time", now)
	}

	updateSQL, updateArgs, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, updateSQL, updateArgs...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("article %d for user %d: %w", id, principalID, domain.ErrNotFound)
	}

	if r.history {
		if err := r.recordHistory(ctx, tx, id, principalID, status, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLRepository) recordHistory(ctx context.Context, tx *sql.Tx, id, principalID int64, status domain.ArticleStatus, at time.Time) error {
	stmt, args, err := r.builder.Insert(r.tables.History).
		Columns("article_id", "user_id", "status", "changed_at").
		Values(id, principalID, string(status), at).
		ToSql()
	if err != nil {
		return fmt.Errorf("build history insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// UserHistory returns a page of the principal's status changes.
func (r *SQLRepository) UserHistory(ctx context.Context, principalID int64, limit, offset int) []domain.HistoryEntry {
	entries, err := r.userHistory(ctx, principalID, limit, offset)
	if err != nil {
		r.logger.Error("user history", "user_id", principalID, "error", err)
		return nil
	}
	return entries
}

// CountUserHistory returns the total number of the principal's status changes.
func (r *SQLRepository) CountUserHistory(ctx context.Context, principalID int64) int {
	count, err := r.countUserHistory(ctx, principalID)
	if err != nil {
		r.logger.Error("count user history", "user_id", principalID, "error", err)
		return 0
	}
	return count
}

// GetLinks returns the external and internal URLs of an article.
func (r *SQLRepository) GetLinks(ctx context.Context, id int64) (domain.Links, bool) {
	links, err := r.getLinks(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("links not found", "article_id", id)
		} else {
			r.logger.Error("get links", "article_id", id, "error", err)
		}
		return domain.Links{}, false
	}
	return links, true
}

func (r *SQLRepository) listArticles(ctx context.Context, filter domain.ArticleStatus, order domain.SortOrder) ([]domain.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := r.builder.Select("article_id", "status").
		From(r.tables.Articles).
		Where(sq.Eq{"status": statusStrings(domain.ListedStatuses)})
	if filter != "" {
		query = query.Where(sq.Eq{"status": string(filter)})
	}
	if order == domain.SortDescending {
		query = query.OrderBy("article_id DESC")
	} else {
		query = query.OrderBy("article_id ASC")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var (
			article domain.Article
			status  string
		)
		if err := rows.Scan(&article.ID, &status); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		article.Status = domain.ArticleStatus(status)
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

func (r *SQLRepository) getArticle(ctx context.Context, id int64) (domain.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stmt, args, err := r.builder.Select("article_id", "status").
		From(r.tables.Articles).
		Where(sq.Eq{"article_id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build query: %w", err)
	}

	var (
		article domain.Article
		status  string
	)
	if err := r.db.QueryRowContext(ctx, stmt, args...).Scan(&article.ID, &status); err != nil {
		return domain.Article{}, fmt.Errorf("query article: %w", err)
	}
	article.Status = domain.ArticleStatus(status)
	return article, nil
}

func (r *SQLRepository) userHistory(ctx context.Context, principalID int64, limit, offset int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stmt, args, err := r.builder.Select("article_id", "status").
		From(r.tables.History).
		Where(sq.Eq{"user_id": principalID, "status": statusStrings(domain.HistoryStatuses)}).
		OrderBy("article_id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			entry  domain.HistoryEntry
			status string
		)
		if err := rows.Scan(&entry.ArticleID, &status); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.Status = domain.ArticleStatus(status)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return entries, nil
}

func (r *SQLRepository) countUserHistory(ctx context.Context, principalID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stmt, args, err := r.builder.Select("COUNT(*)").
		From(r.tables.History).
		Where(sq.Eq{"user_id": principalID, "status": statusStrings(domain.HistoryStatuses)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

func (r *SQLRepository) getLinks(ctx context.Context, id int64) (domain.Links, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stmt, args, err := r.builder.Select("DONOR_DOM", "PROJ_DOM").
		From(r.tables.Links).
		Where(sq.Eq{"ID_TAB": id}).
		ToSql()
	if err != nil {
		return domain.Links{}, fmt.Errorf("build query: %w", err)
	}

	var links domain.Links
	if err := r.db.QueryRowContext(ctx, stmt, args...).Scan(&links.External, &links.Internal); err != nil {
		return domain.Links{}, fmt.Errorf("query links: %w", err)
	}
	return links, nil
}

func statusStrings(statuses []domain.ArticleStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
