package frontend

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jo-hoe/worldscars/internal/backend/database"
	"github.com/jo-hoe/worldscars/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName   = "index.html"
	uploadPageName = "upload.html"
	detailPageName = "detail.html"
	errorPageName  = "error.html"

	displayDateLayout = "January 2, 2006"
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
}

type imageCard struct {
	ID         int64
	Title      string
	Location   string
	PreviewURL string
	UploadedOn string
}

type galleryPage struct {
	PageTitle string
	Query     string
	Cards     []imageCard
	Error     string
}

type uploadForm struct {
	Title       string
	Description string
	Location    string
}

type uploadPage struct {
	PageTitle   string
	Form        uploadForm
	Error       string
	MaxFileSize string
}

type imageView struct {
	Title       string
	Description string
	Location    string
	ImageURL    string
	UploadedOn  string
}

type detailPage struct {
	PageTitle string
	Image     imageView
}

type errorPage struct {
	PageTitle string
	Message   string
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
	}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	// Create template renderer
	e.Renderer = newTemplate()

	e.GET("/", service.galleryHandler)
	e.GET("/upload", service.uploadFormHandler)
	e.POST("/upload", service.uploadHandler)
	e.GET("/images/:id", service.detailHandler)

	// Favicon (SVG) route
	e.GET("/icon.svg", service.iconHandler)
}

func (service *FrontendService) galleryHandler(ctx echo.Context) error {
	query := strings.TrimSpace(ctx.QueryParam("q"))
	page := galleryPage{PageTitle: "Gallery", Query: query}

	images, _, err := service.coreService.ListImages(ctx.Request().Context(), database.ImageFilter{Query: query})
	if err != nil {
		slog.Error("galleryHandler: failed to list images",
			"status", http.StatusInternalServerError, "error", err)
		page.Error = "Failed to load images"
		return ctx.Render(http.StatusInternalServerError, MainPageName, page)
	}

	page.Cards = make([]imageCard, len(images))
	for i, image := range images {
		preview := image.ThumbnailURL
		if preview == "" {
			preview = image.ImageURL
		}
		page.Cards[i] = imageCard{
			ID:         image.ID,
			Title:      image.Title,
			Location:   image.Location,
			PreviewURL: preview,
			UploadedOn: formatUploadDate(image.UploadedAt),
		}
	}

	// Prevent caching so new uploads are visible immediately
	service.setNoCache(ctx)

	return ctx.Render(http.StatusOK, MainPageName, page)
}

func (service *FrontendService) uploadFormHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, uploadPageName, service.newUploadPage(uploadForm{}, ""))
}

func (service *FrontendService) newUploadPage(form uploadForm, message string) uploadPage {
	return uploadPage{
		PageTitle:   "Upload",
		Form:        form,
		Error:       message,
		MaxFileSize: formatByteSize(service.config.API.MaxUploadBytes),
	}
}

func (service *FrontendService) uploadHandler(ctx echo.Context) error {
	form := uploadForm{
		Title:       ctx.FormValue("title"),
		Description: ctx.FormValue("description"),
		Location:    ctx.FormValue("location"),
	}
	renderForm := func(status int, message string) error {
		return ctx.Render(status, uploadPageName, service.newUploadPage(form, message))
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge {
			slog.Warn("uploadHandler: upload too large", "status", http.StatusRequestEntityTooLarge)
			return renderForm(http.StatusRequestEntityTooLarge,
				"The selected file is too large, the limit is "+formatByteSize(service.config.API.MaxUploadBytes)+".")
		}
		slog.Warn("uploadHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return renderForm(http.StatusBadRequest, "Please choose an image to upload.")
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("uploadHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return renderForm(http.StatusInternalServerError, "Upload failed, please try again.")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("uploadHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		slog.Error("uploadHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return renderForm(http.StatusInternalServerError, "Upload failed, please try again.")
	}

	_, err = service.coreService.AddUploadedImage(ctx.Request().Context(), core.NewUploadedImage{
		Title:       form.Title,
		Description: form.Description,
		Location:    form.Location,
		Filename:    file.Filename,
		Data:        data,
	})
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		slog.Warn("uploadHandler: invalid metadata", "status", http.StatusBadRequest, "error", err)
		return renderForm(http.StatusBadRequest, "Please provide a title (up to 255 characters); description and location are limited to 1000 and 255 characters.")
	case errors.Is(err, core.ErrInvalidImage):
		slog.Warn("uploadHandler: invalid image", "status", http.StatusBadRequest, "error", err, "filename", file.Filename)
		return renderForm(http.StatusBadRequest, "The selected file is not a supported image.")
	case err != nil:
		slog.Error("uploadHandler: failed to store uploaded image",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return renderForm(http.StatusInternalServerError, "Upload failed, please try again.")
	}

	return ctx.Redirect(http.StatusSeeOther, "/")
}

func (service *FrontendService) detailHandler(ctx echo.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		slog.Warn("detailHandler: invalid image id",
			"status", http.StatusNotFound,
			"route", "/images/:id",
			"image_id", ctx.Param("id"))
		return service.renderError(ctx, http.StatusNotFound, "Image not found")
	}

	image, err := service.coreService.GetImageByID(ctx.Request().Context(), id)
	if errors.Is(err, database.ErrImageNotFound) {
		slog.Warn("detailHandler: image not found", "status", http.StatusNotFound, "image_id", id)
		return service.renderError(ctx, http.StatusNotFound, "Image not found")
	}
	if err != nil {
		slog.Error("detailHandler: failed to load image",
			"status", http.StatusInternalServerError, "image_id", id, "error", err)
		return service.renderError(ctx, http.StatusInternalServerError, "Failed to load image")
	}

	return ctx.Render(http.StatusOK, detailPageName, detailPage{
		PageTitle: image.Title,
		Image: imageView{
			Title:       image.Title,
			Description: image.Description,
			Location:    image.Location,
			ImageURL:    image.ImageURL,
			UploadedOn:  formatUploadDate(image.UploadedAt),
		},
	})
}

func (service *FrontendService) renderError(ctx echo.Context, status int, message string) error {
	return ctx.Render(status, errorPageName, errorPage{PageTitle: "Error", Message: message})
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func formatUploadDate(t time.Time) string {
	if t.IsZero() {
		return "unknown date"
	}
	return t.Format(displayDateLayout)
}

// formatByteSize renders an upload limit as KB below one megabyte and as MB
// with at most one decimal above.
func formatByteSize(n int64) string {
	if n < 1<<20 {
		return strconv.FormatInt((n+1023)>>10, 10) + " KB"
	}
	mb := strconv.FormatFloat(float64(n)/(1<<20), 'f', 1, 64)
	return strings.TrimSuffix(mb, ".0") + " MB"
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}
