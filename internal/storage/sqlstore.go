package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/snipvault/pkg/types"
)

// SQLStorage implements Storage on top of database/sql. SQLite and Postgres
// share the implementation and differ only in dialect.
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
}

var _ Storage = (*SQLStorage)(nil)

func newSQLStorage(ctx context.Context, db *sql.DB, d dialect) (*SQLStorage, error) {
	if err := applyMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &SQLStorage{db: db, dialect: d}, nil
}

// Open returns the storage for driver ("sqlite" or "postgres"). For sqlite
// dsn is a file path, for postgres a connection URL.
func Open(ctx context.Context, driver, dsn string) (*SQLStorage, error) {
	switch driver {
	case "", sqliteDialect.name:
		return NewSQLiteStorage(dsn)
	case postgresDialect.name:
		return NewPostgresStorage(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Dialect names the SQL backend in use
func (s *SQLStorage) Dialect() string {
	return s.dialect.name
}

// SchemaVersion returns the highest applied migration
func (s *SQLStorage) SchemaVersion(ctx context.Context) (string, error) {
	v, err := currentVersion(ctx, s.db, s.dialect)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLStorage) exec(ctx context.Context, q querier, query string, args ...interface{}) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStorage) query(ctx context.Context, q querier, query string, args ...interface{}) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStorage) queryRow(ctx context.Context, q querier, query string, args ...interface{}) *sql.Row {
	return q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

const snippetColumns = `id, user_id, title, description, code, language, tags, framework, complexity,
		       is_public, is_favorite, usage_count, last_used_at, embedding, created_at, updated_at`

// newest first, insertion order breaks created_at ties
const recentOrder = `ORDER BY created_at DESC, seq DESC`

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Snippet operations

func (s *SQLStorage) CreateSnippet(ctx context.Context, snippet *types.Snippet) error {
	tags, err := encodeTags(snippet.Tags)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	ts := now()
	query := `
		INSERT INTO snippets (id, user_id, title, description, code, language, tags, framework,
		                      complexity, is_public, is_favorite, usage_count, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`
	_, err = s.exec(ctx, s.db, query,
		id, snippet.UserID, snippet.Title, nullString(snippet.Description), snippet.Code,
		snippet.Language, tags, nullString(snippet.Framework), nullString(snippet.Complexity),
		snippet.IsPublic, snippet.IsFavorite, nullString(snippet.Embedding), ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create snippet: %w", err)
	}

	snippet.ID = id
	snippet.UsageCount = 0
	snippet.LastUsedAt = nil
	snippet.CreatedAt = ts
	snippet.UpdatedAt = ts
	return nil
}

func (s *SQLStorage) GetSnippet(ctx context.Context, userID, id string) (*types.Snippet, error) {
	return s.getSnippetWithQuerier(ctx, s.db, userID, id)
}

func (s *SQLStorage) getSnippetWithQuerier(ctx context.Context, q querier, userID, id string) (*types.Snippet, error) {
	query := `SELECT ` + snippetColumns + ` FROM snippets WHERE id = ? AND user_id = ?`
	snippet, err := scanSnippet(s.queryRow(ctx, q, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snippet: %w", err)
	}
	return snippet, nil
}

// UpdateSnippet writes the full merged state of the snippet in one statement.
// Usage counters and creation time are not touched.
func (s *SQLStorage) UpdateSnippet(ctx context.Context, userID, id string, snippet *types.Snippet) error {
	tags, err := encodeTags(snippet.Tags)
	if err != nil {
		return err
	}

	ts := now()
	query := `
		UPDATE snippets
		SET title = ?, description = ?, code = ?, language = ?, tags = ?, framework = ?,
		    complexity = ?, is_public = ?, is_favorite = ?, embedding = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`
	result, err := s.exec(ctx, s.db, query,
		snippet.Title, nullString(snippet.Description), snippet.Code, snippet.Language, tags,
		nullString(snippet.Framework), nullString(snippet.Complexity), snippet.IsPublic,
		snippet.IsFavorite, nullString(snippet.Embedding), ts, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update snippet: %w", err)
	}
	if err := expectRow(result); err != nil {
		return err
	}

	snippet.ID = id
	snippet.UserID = userID
	snippet.UpdatedAt = ts
	return nil
}

func (s *SQLStorage) DeleteSnippet(ctx context.Context, userID, id string) error {
	result, err := s.exec(ctx, s.db, "DELETE FROM snippets WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete snippet: %w", err)
	}
	return expectRow(result)
}

func (s *SQLStorage) ListSnippets(ctx context.Context, userID string, opts ListOptions) ([]*types.Snippet, error) {
	opts = opts.normalized()

	var where strings.Builder
	where.WriteString("user_id = ?")
	args := []interface{}{userID}
	if opts.Language != "" {
		where.WriteString(" AND " + s.dialect.lower("language") + " = ?")
		args = append(args, strings.ToLower(opts.Language))
	}
	if opts.FavoritesOnly {
		where.WriteString(" AND is_favorite = ?")
		args = append(args, true)
	}
	args = append(args, opts.Limit, opts.Offset)

	query := `SELECT ` + snippetColumns + ` FROM snippets WHERE ` + where.String() + ` ` + recentOrder + ` LIMIT ? OFFSET ?`
	return s.querySnippets(ctx, s.db, query, args...)
}

// RecordUsage bumps the usage counter and returns the updated snippet
func (s *SQLStorage) RecordUsage(ctx context.Context, userID, id string) (*types.Snippet, error) {
	query := `
		UPDATE snippets
		SET usage_count = usage_count + 1, last_used_at = ?
		WHERE id = ? AND user_id = ?
	`
	result, err := s.exec(ctx, s.db, query, now(), id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}
	if err := expectRow(result); err != nil {
		return nil, err
	}
	return s.GetSnippet(ctx, userID, id)
}

// Search operations

// FindRecentByOwner returns up to limit of the user's snippets, newest first
func (s *SQLStorage) FindRecentByOwner(ctx context.Context, userID string, limit int) ([]*types.Snippet, error) {
	query := `SELECT ` + snippetColumns + ` FROM snippets WHERE user_id = ? ` + recentOrder + ` LIMIT ?`
	return s.querySnippets(ctx, s.db, query, userID, limit)
}

// SearchByOwner performs a case-insensitive substring match over title,
// description, code and language. LIKE wildcards in query match literally.
func (s *SQLStorage) SearchByOwner(ctx context.Context, userID, query string, limit int) ([]*types.Snippet, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	sqlQuery := `
		SELECT ` + snippetColumns + `
		FROM snippets
		WHERE user_id = ?
		  AND (` + s.dialect.contains("title") + `
		    OR ` + s.dialect.contains("description") + `
		    OR ` + s.dialect.contains("code") + `
		    OR ` + s.dialect.contains("language") + `)
		` + recentOrder + `
		LIMIT ?
	`
	return s.querySnippets(ctx, s.db, sqlQuery, userID, pattern, pattern, pattern, pattern, limit)
}

// Embedding maintenance

// ListMissingEmbeddings returns snippets with code but no stored vector
func (s *SQLStorage) ListMissingEmbeddings(ctx context.Context, userID string, limit int) ([]*types.Snippet, error) {
	query := `
		SELECT ` + snippetColumns + `
		FROM snippets
		WHERE user_id = ? AND (embedding IS NULL OR embedding = '') AND code <> ''
		` + recentOrder + `
		LIMIT ?
	`
	return s.querySnippets(ctx, s.db, query, userID, limit)
}

// SetEmbedding stores a vector computed from snippet's title, description and
// code. It returns ErrConflict when any of those changed since snippet was
// read, or when another writer already stored a vector.
func (s *SQLStorage) SetEmbedding(ctx context.Context, snippet *types.Snippet, embedding string) error {
	query := `
		UPDATE snippets
		SET embedding = ?
		WHERE id = ? AND user_id = ?
		  AND (embedding IS NULL OR embedding = '')
		  AND title = ? AND code = ? AND COALESCE(description, '') = ?
	`
	result, err := s.exec(ctx, s.db, query, embedding, snippet.ID, snippet.UserID,
		snippet.Title, snippet.Code, snippet.DescriptionText())
	if err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}
	if err := expectRow(result); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// Status operations

func (s *SQLStorage) Stats(ctx context.Context, userID string) (*types.SnippetStats, error) {
	stats := &types.SnippetStats{Languages: make(map[string]int)}

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_favorite THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN embedding IS NOT NULL AND embedding <> '' THEN 1 ELSE 0 END), 0)
		FROM snippets
		WHERE user_id = ?
	`
	if err := s.queryRow(ctx, s.db, query, userID).Scan(&stats.Total, &stats.Favorites, &stats.WithEmbedded); err != nil {
		return nil, fmt.Errorf("failed to count snippets: %w", err)
	}

	rows, err := s.query(ctx, s.db, "SELECT language, COUNT(*) FROM snippets WHERE user_id = ? GROUP BY language", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count languages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, err
		}
		stats.Languages[lang] = n
	}
	return stats, rows.Err()
}

// helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnippet(row rowScanner) (*types.Snippet, error) {
	var (
		snippet                                       types.Snippet
		description, framework, complexity, embedding sql.NullString
		tags                                          string
		lastUsedAt                                    sql.NullTime
	)
	err := row.Scan(
		&snippet.ID, &snippet.UserID, &snippet.Title, &description, &snippet.Code,
		&snippet.Language, &tags, &framework, &complexity, &snippet.IsPublic,
		&snippet.IsFavorite, &snippet.UsageCount, &lastUsedAt, &embedding,
		&snippet.CreatedAt, &snippet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	snippet.Description = stringPtr(description)
	snippet.Framework = stringPtr(framework)
	snippet.Complexity = stringPtr(complexity)
	snippet.Embedding = stringPtr(embedding)
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		snippet.LastUsedAt = &t
	}
	snippet.Tags, err = decodeTags(tags)
	if err != nil {
		return nil, err
	}
	return &snippet, nil
}

func (s *SQLStorage) querySnippets(ctx context.Context, q querier, query string, args ...interface{}) ([]*types.Snippet, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]*types.Snippet, 0)
	for rows.Next() {
		snippet, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		snippets = append(snippets, snippet)
	}
	return snippets, rows.Err()
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(s string) ([]string, error) {
	tags := []string{}
	if s == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, fmt.Errorf("%w: tags: %v", types.ErrMalformedData, err)
	}
	return tags, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
