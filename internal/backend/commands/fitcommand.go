package commands

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/jo-hoe/worldscars/internal/backend/commandstructure"
	xdraw "golang.org/x/image/draw"
)

// FitParams represents typed parameters for the fit command
type FitParams struct {
	MaxWidth  *int // Optional: unbounded when nil
	MaxHeight *int // Optional: unbounded when nil
	Quality   int
}

// NewFitParamsFromMap creates FitParams from a generic map
func NewFitParamsFromMap(params map[string]any) (*FitParams, error) {
	maxWidth, err := commandstructure.GetOptionalPositiveIntParam(params, "maxWidth")
	if err != nil {
		return nil, err
	}
	maxHeight, err := commandstructure.GetOptionalPositiveIntParam(params, "maxHeight")
	if err != nil {
		return nil, err
	}
	if maxWidth == nil && maxHeight == nil {
		return nil, fmt.Errorf("at least one of 'maxWidth' or 'maxHeight' must be specified")
	}

	return &FitParams{
		MaxWidth:  maxWidth,
		MaxHeight: maxHeight,
		Quality:   commandstructure.GetIntParam(params, "quality", defaultJPEGQuality),
	}, nil
}

// FitCommand downscales images that exceed the configured bounds while
// preserving the aspect ratio. Images are never upscaled.
type FitCommand struct {
	name   string
	params *FitParams
}

func NewFitCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewFitParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &FitCommand{
		name:   "FitCommand",
		params: typedParams,
	}, nil
}

func (c *FitCommand) Name() string {
	return c.name
}

func (c *FitCommand) Execute(imageData []byte) ([]byte, error) {
	img, format, err := decodeImage(imageData, 0, 0)
	if err != nil {
		slog.Error("FitCommand: failed to decode image", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	targetWidth, targetHeight, needsScaling := c.targetSize(width, height)
	if !needsScaling {
		slog.Debug("FitCommand: image within bounds, returning original", "width", width, "height", height)
		return imageData, nil
	}

	slog.Debug("FitCommand: scaling image",
		"original_width", width,
		"original_height", height,
		"target_width", targetWidth,
		"target_height", targetHeight)

	dst := image.NewNRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)

	return encodeImage(dst, encodableFormat(format), c.params.Quality)
}

// targetSize computes the scaled dimensions. needsScaling is false when the
// image already fits.
func (c *FitCommand) targetSize(width, height int) (int, int, bool) {
	scale := 1.0
	if c.params.MaxWidth != nil && width > *c.params.MaxWidth {
		scale = math.Min(scale, float64(*c.params.MaxWidth)/float64(width))
	}
	if c.params.MaxHeight != nil && height > *c.params.MaxHeight {
		scale = math.Min(scale, float64(*c.params.MaxHeight)/float64(height))
	}
	if scale >= 1.0 {
		return width, height, false
	}

	targetWidth := max(1, int(math.Round(float64(width)*scale)))
	targetHeight := max(1, int(math.Round(float64(height)*scale)))
	return targetWidth, targetHeight, true
}

func (c *FitCommand) GetParams() *FitParams {
	return c.params
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("FitCommand", NewFitCommand); err != nil {
		panic(fmt.Sprintf("failed to register FitCommand: %v", err))
	}
}
