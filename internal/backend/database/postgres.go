package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDatabase struct {
	pool *pgxpool.Pool
}

func NewPostgresDatabase(ctx context.Context, connectionString string) (DatabaseService, error) {
	cfg, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	return &PostgresDatabase{pool: pool}, nil
}

func (p *PostgresDatabase) CreateDatabase(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS images (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description VARCHAR(1000) NOT NULL DEFAULT '',
		image_url TEXT NOT NULL,
		thumbnail_url TEXT NOT NULL DEFAULT '',
		storage_key TEXT NOT NULL DEFAULT '',
		location VARCHAR(255) NOT NULL DEFAULT '',
		uploaded_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_images_uploaded_at ON images (uploaded_at DESC, id DESC)`)
	return err
}

func (p *PostgresDatabase) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *PostgresDatabase) DoesDatabaseExist(ctx context.Context) bool {
	return p.pool.Ping(ctx) == nil
}

func (p *PostgresDatabase) CreateImage(ctx context.Context, image *Image) (*Image, error) {
	created := *image
	created.UploadedAt = time.Now().UTC()

	err := p.pool.QueryRow(ctx,
		`INSERT INTO images (title, description, image_url, thumbnail_url, storage_key, location, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		created.Title, created.Description, created.ImageURL, created.ThumbnailURL,
		created.StorageKey, created.Location, created.UploadedAt).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert image: %w", err)
	}
	return &created, nil
}

func (p *PostgresDatabase) GetImages(ctx context.Context, filter ImageFilter) ([]*Image, error) {
	where, args := postgresWhere(filter)
	query := `SELECT id, title, description, image_url, thumbnail_url, storage_key, location, uploaded_at
		FROM images` + where + ` ORDER BY uploaded_at DESC, id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	images := make([]*Image, 0)
	for rows.Next() {
		img, err := scanPostgresImage(rows)
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

func (p *PostgresDatabase) CountImages(ctx context.Context, filter ImageFilter) (int, error) {
	where, args := postgresWhere(filter)
	var count int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM images"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

func (p *PostgresDatabase) GetImageByID(ctx context.Context, id int64) (*Image, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, title, description, image_url, thumbnail_url, storage_key, location, uploaded_at
		FROM images WHERE id = $1`, id)

	img, err := scanPostgresImage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

func scanPostgresImage(row pgx.Row) (*Image, error) {
	var img Image
	err := row.Scan(&img.ID, &img.Title, &img.Description, &img.ImageURL, &img.ThumbnailURL,
		&img.StorageKey, &img.Location, &img.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}
	img.UploadedAt = img.UploadedAt.UTC()
	return &img, nil
}

func postgresWhere(filter ImageFilter) (string, []any) {
	query := strings.TrimSpace(filter.Query)
	if query == "" {
		return "", nil
	}
	return ` WHERE (LOWER(title) LIKE $1 OR LOWER(description) LIKE $1 OR LOWER(location) LIKE $1)`,
		[]any{likePattern(query)}
}
