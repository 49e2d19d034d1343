package backend

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jo-hoe/worldscars/internal/backend/database"
	"github.com/jo-hoe/worldscars/internal/common"
	"github.com/jo-hoe/worldscars/internal/core"

	"github.com/labstack/echo/v4"
)

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
}

// ImageResponse is the JSON representation of an image
type ImageResponse struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"imageUrl"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Location     string    `json:"location"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// CreateImageRequest is the JSON body of POST /api/images
type CreateImageRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" validate:"required"`
	Location    string `json:"location"`
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", s.probeHandler)

	// Uploads kept on the local filesystem are served directly
	if directory, publicPath, ok := s.coreService.MediaDirectory(); ok {
		e.Static(publicPath, directory)
	}

	// one bucket shared by both create routes
	limiter := common.RateLimit(s.config.API.UploadRateLimit.Rate, s.config.API.UploadRateLimit.Burst)

	api := e.Group("/api")
	api.GET("/images", s.listImagesHandler)
	api.GET("/images/:id", s.getImageHandler)
	api.POST("/images", s.createImageHandler, limiter)
	api.POST("/images/upload", s.uploadImageHandler, limiter)
}

func (s *APIService) probeHandler(ctx echo.Context) error {
	if !s.coreService.Ready(ctx.Request().Context()) {
		slog.Error("probeHandler: database is not reachable", "status", http.StatusServiceUnavailable)
		return ctx.String(http.StatusServiceUnavailable, "database is not reachable")
	}
	return ctx.String(http.StatusOK, "API Service is running")
}

func (s *APIService) listImagesHandler(ctx echo.Context) error {
	filter := database.ImageFilter{Query: ctx.QueryParam("q")}

	limit, err := parseNonNegativeInt(ctx.QueryParam("limit"))
	if err != nil || (ctx.QueryParam("limit") != "" && limit == 0) {
		slog.Warn("listImagesHandler: invalid limit", "status", http.StatusBadRequest, "limit", ctx.QueryParam("limit"))
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
	}
	if limit > s.config.API.MaxPageSize {
		limit = s.config.API.MaxPageSize
	}
	filter.Limit = limit

	filter.Offset, err = parseNonNegativeInt(ctx.QueryParam("offset"))
	if err != nil {
		slog.Warn("listImagesHandler: invalid offset", "status", http.StatusBadRequest, "offset", ctx.QueryParam("offset"))
		return echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
	}

	images, total, err := s.coreService.ListImages(ctx.Request().Context(), filter)
	if err != nil {
		return s.toHTTPError("listImagesHandler", err)
	}

	response := make([]ImageResponse, len(images))
	for i, image := range images {
		response[i] = toImageResponse(image)
	}
	ctx.Response().Header().Set(totalCountHeader, strconv.Itoa(total))
	return ctx.JSON(http.StatusOK, response)
}

func (s *APIService) getImageHandler(ctx echo.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		slog.Warn("getImageHandler: invalid image id",
			"status", http.StatusBadRequest,
			"route", "/api/images/:id",
			"image_id", ctx.Param("id"))
		return echo.NewHTTPError(http.StatusBadRequest, "image id must be a positive integer")
	}

	image, err := s.coreService.GetImageByID(ctx.Request().Context(), id)
	if err != nil {
		return s.toHTTPError("getImageHandler", err)
	}
	return ctx.JSON(http.StatusOK, toImageResponse(image))
}

func (s *APIService) createImageHandler(ctx echo.Context) error {
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return s.uploadImageHandler(ctx)
	}

	var request CreateImageRequest
	if err := ctx.Bind(&request); err != nil {
		slog.Warn("createImageHandler: failed to bind request body", "status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "received malformed request body")
	}
	if err := ctx.Validate(&request); err != nil {
		slog.Warn("createImageHandler: invalid request body", "status", http.StatusBadRequest, "error", err)
		return err
	}

	image, err := s.coreService.AddImageByURL(ctx.Request().Context(), core.NewImageByURL{
		Title:       request.Title,
		Description: request.Description,
		Location:    request.Location,
		ImageURL:    request.ImageURL,
	})
	if err != nil {
		return s.toHTTPError("createImageHandler", err)
	}
	return ctx.JSON(http.StatusCreated, toImageResponse(image))
}

func (s *APIService) uploadImageHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		if httpErr := asHTTPError(err); httpErr != nil {
			return httpErr
		}
		slog.Warn("uploadImageHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "a multipart field 'file' is required")
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("uploadImageHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("uploadImageHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		slog.Error("uploadImageHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file")
	}

	image, err := s.coreService.AddUploadedImage(ctx.Request().Context(), core.NewUploadedImage{
		Title:       ctx.FormValue("title"),
		Description: ctx.FormValue("description"),
		Location:    ctx.FormValue("location"),
		Filename:    file.Filename,
		Data:        data,
	})
	if err != nil {
		return s.toHTTPError("uploadImageHandler", err)
	}
	return ctx.JSON(http.StatusCreated, toImageResponse(image))
}

// toHTTPError maps core errors to HTTP statuses. Internal details are only logged.
func (s *APIService) toHTTPError(handler string, err error) error {
	switch {
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrInvalidImage):
		slog.Warn(handler+": rejected request", "status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrImageNotFound):
		slog.Warn(handler+": image not found", "status", http.StatusNotFound, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, "image not found")
	default:
		slog.Error(handler+": request failed", "status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// asHTTPError extracts errors raised by middleware while the body was read,
// e.g. the body limit
func asHTTPError(err error) *echo.HTTPError {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}

func parseNonNegativeInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if parsed < 0 {
		return 0, strconv.ErrRange
	}
	return parsed, nil
}

func toImageResponse(image *database.Image) ImageResponse {
	return ImageResponse{
		ID:           image.ID,
		Title:        image.Title,
		Description:  image.Description,
		ImageURL:     image.ImageURL,
		ThumbnailURL: image.ThumbnailURL,
		Location:     image.Location,
		UploadedAt:   image.UploadedAt,
	}
}
