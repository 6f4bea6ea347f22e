package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/vadimbarashkov/linkcache/internal/entity"
)

func isUniqueViolationError(err error) (sqlite3.Error, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return sqliteErr, true
	}
	return sqliteErr, false
}

type urlDB struct {
	ID          int64     `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	Clicks      int64     `db:"clicks"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	return &entity.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		Clicks:      u.Clicks,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// URLRepository stores URLs in SQLite. It mirrors the Postgres repository
// without RETURNING clauses, reading rows back by key instead.
type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.Save"
	const query = `INSERT INTO urls(short_code, original_url) VALUES (?, ?)`

	res, err := r.db.ExecContext(ctx, query, shortCode, originalURL)
	if err != nil {
		if sqliteErr, ok := isUniqueViolationError(err); ok {
			if strings.Contains(sqliteErr.Error(), "urls.original_url") {
				return nil, fmt.Errorf("%s: %w", op, entity.ErrOriginalURLExists)
			}
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get last insert id: %w", op, err)
	}

	var url urlDB

	if err := r.db.GetContext(ctx, &url, `SELECT * FROM urls WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.RetrieveByShortCode"
	return r.retrieve(ctx, op, `SELECT * FROM urls WHERE short_code = ?`, shortCode)
}

func (r *URLRepository) RetrieveByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.RetrieveByOriginalURL"
	return r.retrieve(ctx, op, `SELECT * FROM urls WHERE original_url = ?`, originalURL)
}

func (r *URLRepository) retrieve(ctx context.Context, op, query string, arg any) (*entity.URL, error) {
	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) RetrieveAndIncrementClicks(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.RetrieveAndIncrementClicks"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE urls SET clicks = clicks + 1, updated_at = CURRENT_TIMESTAMP WHERE short_code = ?`, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update urls table row: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected != 1 {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	var url urlDB

	if err := tx.GetContext(ctx, &url, `SELECT * FROM urls WHERE short_code = ?`, shortCode); err != nil {
		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) IncrementClicks(ctx context.Context, shortCode string, delta int64) error {
	const op = "adapter.repository.sqlite.URLRepository.IncrementClicks"
	const query = `UPDATE urls SET clicks = clicks + ?, updated_at = CURRENT_TIMESTAMP WHERE short_code = ?`

	res, err := r.db.ExecContext(ctx, query, delta, shortCode)
	if err != nil {
		return fmt.Errorf("%s: failed to update urls table row: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return nil
}

func (r *URLRepository) ListRecent(ctx context.Context, limit int) ([]*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.ListRecent"
	const query = `SELECT * FROM urls ORDER BY created_at DESC, id DESC LIMIT ?`

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("%s: failed to select from urls table: %w", op, err)
	}

	urls := make([]*entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, rows[i].toEntity())
	}

	return urls, nil
}

func (r *URLRepository) Ping(ctx context.Context) error {
	const op = "adapter.repository.sqlite.URLRepository.Ping"

	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
