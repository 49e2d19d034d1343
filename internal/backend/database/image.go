package database

import (
	"errors"
	"time"
)

// ErrImageNotFound is returned when no image exists for a requested id.
var ErrImageNotFound = errors.New("image not found")

type Image struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"imageUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	StorageKey   string    `json:"storageKey"` // key of the stored blob, empty for images referenced by URL
	Location     string    `json:"location"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// ImageFilter narrows and pages image listings. A zero Limit means no limit.
type ImageFilter struct {
	Query  string
	Limit  int
	Offset int
}
