package commands

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"github.com/jo-hoe/worldscars/internal/backend/commandstructure"
)

const (
	ToneGrayscale = "grayscale"
	ToneSepia     = "sepia"
)

// ToneCommand recolours an image to grayscale or sepia. Alpha is preserved.
type ToneCommand struct {
	name    string
	tone    string
	quality int
}

func NewToneCommand(params map[string]any) (commandstructure.Command, error) {
	tone := commandstructure.GetStringParam(params, "tone", ToneGrayscale)
	if tone != ToneGrayscale && tone != ToneSepia {
		return nil, fmt.Errorf("invalid tone: %s (must be 'grayscale' or 'sepia')", tone)
	}
	return &ToneCommand{
		name:    "ToneCommand",
		tone:    tone,
		quality: commandstructure.GetIntParam(params, "quality", defaultJPEGQuality),
	}, nil
}

func (c *ToneCommand) Name() string {
	return c.name
}

func (c *ToneCommand) Tone() string {
	return c.tone
}

func (c *ToneCommand) Execute(imageData []byte) ([]byte, error) {
	img, format, err := decodeImage(imageData, 0, 0)
	if err != nil {
		slog.Error("ToneCommand: failed to decode image", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	width := b.Dx()
	parallelFor(b.Dy(), func(y int) {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+width*4]
		for x := 0; x < len(row); x += 4 {
			r, g, bl := float64(row[x]), float64(row[x+1]), float64(row[x+2])
			switch c.tone {
			case ToneSepia:
				row[x] = clamp8(0.393*r + 0.769*g + 0.189*bl)
				row[x+1] = clamp8(0.349*r + 0.686*g + 0.168*bl)
				row[x+2] = clamp8(0.272*r + 0.534*g + 0.131*bl)
			default:
				luma := clamp8(0.2126*r + 0.7152*g + 0.0722*bl)
				row[x], row[x+1], row[x+2] = luma, luma, luma
			}
		}
	})

	slog.Debug("ToneCommand: recoloured image", "tone", c.tone, "width", width, "height", b.Dy())
	return encodeImage(dst, encodableFormat(format), c.quality)
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("ToneCommand", NewToneCommand); err != nil {
		panic(fmt.Sprintf("failed to register ToneCommand: %v", err))
	}
}
