package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
)

// foldFunction lowercases text with Go's Unicode tables. SQLite's own LOWER
// only folds ASCII, which misses titles such as "Émile" or "ÜBERFALL".
const foldFunction = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(foldFunction, 1, foldText)
}

func foldText(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch value := args[0].(type) {
	case string:
		return strings.ToLower(value), nil
	case []byte:
		return strings.ToLower(string(value)), nil
	default:
		return value, nil
	}
}

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}

	// Every connection to an in-memory database sees its own empty database,
	// so the pool has to be pinned to a single connection.
	if isInMemory(connectionString) {
		db.SetMaxOpenConns(1)
	}

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func isInMemory(connectionString string) bool {
	return strings.Contains(connectionString, ":memory:") || strings.Contains(connectionString, "mode=memory")
}

func (s *SQLiteDatabase) CreateDatabase(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL,
		thumbnail_url TEXT NOT NULL DEFAULT '',
		storage_key TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		uploaded_at INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_images_uploaded_at ON images (uploaded_at DESC, id DESC)`)
	return err
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist(ctx context.Context) bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.PingContext(ctx)
	return err == nil
}

func (s *SQLiteDatabase) CreateImage(ctx context.Context, image *Image) (*Image, error) {
	created := *image
	created.UploadedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO images (title, description, image_url, thumbnail_url, storage_key, location, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		created.Title, created.Description, created.ImageURL, created.ThumbnailURL,
		created.StorageKey, created.Location, created.UploadedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert image: %w", err)
	}

	created.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted image id: %w", err)
	}
	return &created, nil
}

func (s *SQLiteDatabase) GetImages(ctx context.Context, filter ImageFilter) ([]*Image, error) {
	where, args := sqliteWhere(filter)
	query := `SELECT id, title, description, image_url, thumbnail_url, storage_key, location, uploaded_at
		FROM images` + where + ` ORDER BY uploaded_at DESC, id DESC`

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	images := make([]*Image, 0)
	for rows.Next() {
		img, err := scanSQLiteImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}
	return images, nil
}

func (s *SQLiteDatabase) CountImages(ctx context.Context, filter ImageFilter) (int, error) {
	where, args := sqliteWhere(filter)
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

func (s *SQLiteDatabase) GetImageByID(ctx context.Context, id int64) (*Image, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, image_url, thumbnail_url, storage_key, location, uploaded_at
		FROM images WHERE id = ?`, id)

	img, err := scanSQLiteImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteImage(row rowScanner) (*Image, error) {
	var img Image
	var uploadedAt int64
	err := row.Scan(&img.ID, &img.Title, &img.Description, &img.ImageURL, &img.ThumbnailURL,
		&img.StorageKey, &img.Location, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}
	img.UploadedAt = time.Unix(0, uploadedAt).UTC()
	return &img, nil
}

// sqliteWhere builds the WHERE clause for a filter. The query matches title,
// description and location case-insensitively.
func sqliteWhere(filter ImageFilter) (string, []any) {
	query := strings.TrimSpace(filter.Query)
	if query == "" {
		return "", nil
	}
	pattern := likePattern(query)
	return fmt.Sprintf(` WHERE (%[1]s(title) LIKE ? ESCAPE '\' OR %[1]s(description) LIKE ? ESCAPE '\' OR %[1]s(location) LIKE ? ESCAPE '\')`, foldFunction),
		[]any{pattern, pattern, pattern}
}

// likePattern lowercases the term, escapes LIKE wildcards and wraps it for a substring match.
func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(term)) + "%"
}
