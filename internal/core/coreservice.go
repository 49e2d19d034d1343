package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/jo-hoe/worldscars/internal/backend/cache"
	"github.com/jo-hoe/worldscars/internal/backend/commands"
	"github.com/jo-hoe/worldscars/internal/backend/commandstructure"
	"github.com/jo-hoe/worldscars/internal/backend/database"
	"github.com/jo-hoe/worldscars/internal/backend/storage"
)

var (
	// ErrInvalidInput wraps validation failures of user supplied metadata
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidImage is returned when uploaded bytes are not a supported image
	ErrInvalidImage = errors.New("invalid image")
)

const thumbnailQuality = 80

// NewImageByURL describes an image that is already hosted elsewhere
type NewImageByURL struct {
	Title       string `validate:"required,max=255"`
	Description string `validate:"max=1000"`
	Location    string `validate:"max=255"`
	ImageURL    string `validate:"required,url"`
}

// NewUploadedImage describes an image whose bytes are stored by the service
type NewUploadedImage struct {
	Title       string `validate:"required,max=255"`
	Description string `validate:"max=1000"`
	Location    string `validate:"max=255"`
	Filename    string
	Data        []byte
}

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	blobStore       storage.BlobStore
	imageCache      cache.ImageCache
	pipeline        *commandstructure.CommandInvoker
	thumbnails      *commandstructure.CommandInvoker
	validate        *validator.Validate
	newKey          func() string
}

func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	databaseService, err := database.NewDatabase(ctx, config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)

	blobStore, err := storage.NewBlobStore(ctx, config.Storage)
	if err != nil {
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	slog.Info("storage initialized successfully", "type", config.Storage.Type)

	imageCache, err := cache.NewImageCache(config.Cache)
	if err != nil {
		_ = databaseService.Close()
		_ = blobStore.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	slog.Info("cache initialized successfully", "type", config.Cache.Type)

	service, err := newCoreService(config, databaseService, blobStore, imageCache)
	if err != nil {
		_ = databaseService.Close()
		_ = blobStore.Close()
		_ = imageCache.Close()
		return nil, err
	}
	return service, nil
}

func newCoreService(config *ServiceConfig, databaseService database.DatabaseService, blobStore storage.BlobStore, imageCache cache.ImageCache) (*CoreService, error) {
	pipeline, err := commandstructure.NewCommandInvokerFromConfig(commandstructure.DefaultRegistry, config.commandConfigs())
	if err != nil {
		return nil, fmt.Errorf("failed to build processing pipeline: %w", err)
	}
	thumbnails, err := newThumbnailInvoker(config.ThumbnailWidth)
	if err != nil {
		return nil, fmt.Errorf("failed to build thumbnail pipeline: %w", err)
	}
	slog.Info("image processing configured", "commands", pipeline.Names(), "thumbnail_width", config.ThumbnailWidth)

	return &CoreService{
		config:          config,
		databaseService: databaseService,
		blobStore:       blobStore,
		imageCache:      imageCache,
		pipeline:        pipeline,
		thumbnails:      thumbnails,
		validate:        validator.New(),
		newKey:          uuid.NewString,
	}, nil
}

// newThumbnailInvoker converts to JPEG and bounds the width. SVG without an
// explicit size is rendered as a square of the thumbnail width.
func newThumbnailInvoker(width int) (*commandstructure.CommandInvoker, error) {
	convert, err := commands.NewConvertCommand(map[string]any{
		"format":            commands.FormatJPEG,
		"quality":           thumbnailQuality,
		"svgFallbackWidth":  width,
		"svgFallbackHeight": width,
	})
	if err != nil {
		return nil, err
	}
	fit, err := commands.NewFitCommand(map[string]any{
		"maxWidth": width,
		"quality":  thumbnailQuality,
	})
	if err != nil {
		return nil, err
	}
	return commandstructure.NewCommandInvoker([]commandstructure.Command{convert, fit}), nil
}

// AddImageByURL stores metadata for an image that is hosted elsewhere
func (service *CoreService) AddImageByURL(ctx context.Context, input NewImageByURL) (*database.Image, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Location = strings.TrimSpace(input.Location)
	input.ImageURL = strings.TrimSpace(input.ImageURL)

	if err := service.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !isHTTPURL(input.ImageURL) {
		return nil, fmt.Errorf("%w: imageUrl must be an absolute http or https URL", ErrInvalidInput)
	}

	image, err := service.databaseService.CreateImage(ctx, &database.Image{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		ImageURL:    input.ImageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	service.imageCache.InvalidateLists(ctx)
	slog.Info("image added by url", "image_id", image.ID)
	return image, nil
}

// AddUploadedImage processes and stores the uploaded bytes and records the
// image. Stored blobs are removed again if the record cannot be saved.
func (service *CoreService) AddUploadedImage(ctx context.Context, input NewUploadedImage) (*database.Image, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Location = strings.TrimSpace(input.Location)

	if err := service.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("%w: no image data", ErrInvalidImage)
	}
	info, err := commands.DetectImage(input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if limit := service.config.API.MaxImagePixels; limit > 0 && info.Pixels() > limit {
		return nil, fmt.Errorf("%w: %dx%d exceeds the limit of %d pixels", ErrInvalidImage, info.Width, info.Height, limit)
	}

	processed, err := service.pipeline.Execute(input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	format, err := commands.DetectFormat(processed)
	if err != nil {
		return nil, fmt.Errorf("%w: processed image: %v", ErrInvalidImage, err)
	}

	baseKey := service.newKey()
	original, err := service.blobStore.Put(ctx, baseKey+commands.Extension(format), commands.ContentType(format), processed)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	stored := []string{original.Key}

	thumbnailURL := ""
	if thumbnail := service.createThumbnail(ctx, baseKey, processed, input.Filename); thumbnail != nil {
		thumbnailURL = thumbnail.URL
		stored = append(stored, thumbnail.Key)
	}

	image, err := service.databaseService.CreateImage(ctx, &database.Image{
		Title:        input.Title,
		Description:  input.Description,
		Location:     input.Location,
		ImageURL:     original.URL,
		ThumbnailURL: thumbnailURL,
		StorageKey:   original.Key,
	})
	if err != nil {
		service.deleteBlobs(ctx, stored)
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	service.imageCache.InvalidateLists(ctx)
	slog.Info("image uploaded",
		"image_id", image.ID,
		"filename", input.Filename,
		"format", format,
		"size_bytes", len(processed))
	return image, nil
}

// createThumbnail is best effort, a failure leaves the image without thumbnail
func (service *CoreService) createThumbnail(ctx context.Context, baseKey string, data []byte, filename string) *storage.Object {
	thumbnail, err := service.thumbnails.Execute(data)
	if err != nil {
		slog.Warn("failed to generate thumbnail", "filename", filename, "error", err)
		return nil
	}
	object, err := service.blobStore.Put(ctx, baseKey+"_thumb"+commands.Extension(commands.FormatJPEG), commands.ContentType(commands.FormatJPEG), thumbnail)
	if err != nil {
		slog.Warn("failed to store thumbnail", "filename", filename, "error", err)
		return nil
	}
	return object
}

func (service *CoreService) deleteBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := service.blobStore.Delete(ctx, key); err != nil {
			slog.Error("failed to delete orphaned blob", "key", key, "error", err)
		}
	}
}

// ListImages returns one page of images newest first and the number of
// images matching the filter
func (service *CoreService) ListImages(ctx context.Context, filter database.ImageFilter) ([]*database.Image, int, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidInput)
	}

	cached, generation, ok := service.imageCache.GetList(ctx, filter)
	if ok {
		return cached.Images, cached.Total, nil
	}

	images, err := service.databaseService.GetImages(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list images: %w", err)
	}
	total, err := service.databaseService.CountImages(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count images: %w", err)
	}

	service.imageCache.SetList(ctx, generation, filter, &cache.ImageList{Images: images, Total: total})
	return images, total, nil
}

// GetImageByID returns database.ErrImageNotFound for unknown ids
func (service *CoreService) GetImageByID(ctx context.Context, id int64) (*database.Image, error) {
	if cached, ok := service.imageCache.GetImage(ctx, id); ok {
		return cached, nil
	}

	image, err := service.databaseService.GetImageByID(ctx, id)
	if err != nil {
		return nil, err
	}

	service.imageCache.SetImage(ctx, image)
	return image, nil
}

// MediaDirectory reports where uploads live when they are stored on the local
// filesystem, so the HTTP server can serve them
func (service *CoreService) MediaDirectory() (directory string, publicPath string, ok bool) {
	store, ok := service.blobStore.(*storage.FilesystemStore)
	if !ok {
		return "", "", false
	}
	return store.Directory(), store.PublicPath(), true
}

// Ready reports whether the database answers.
func (service *CoreService) Ready(ctx context.Context) bool {
	return service.databaseService.DoesDatabaseExist(ctx)
}

func (service *CoreService) Close() error {
	return errors.Join(
		service.databaseService.Close(),
		service.blobStore.Close(),
		service.imageCache.Close(),
	)
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
