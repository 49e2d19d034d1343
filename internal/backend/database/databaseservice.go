package database

import "context"

type DatabaseService interface {
	CreateDatabase(ctx context.Context) error
	DoesDatabaseExist(ctx context.Context) bool
	Close() error

	// CreateImage inserts the image and returns it with the server assigned ID and UploadedAt.
	// Any ID or UploadedAt already set on the argument is ignored.
	CreateImage(ctx context.Context, image *Image) (*Image, error)
	// GetImages returns images newest first.
	GetImages(ctx context.Context, filter ImageFilter) ([]*Image, error)
	CountImages(ctx context.Context, filter ImageFilter) (int, error)
	// GetImageByID returns ErrImageNotFound if no row matches.
	GetImageByID(ctx context.Context, id int64) (*Image, error)
}
