package commands

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
	FormatWEBP = "webp"
	FormatSVG  = "svg"

	defaultJPEGQuality = 90
)

// ErrUnsupportedImage is returned for data that is not an image in a known format.
var ErrUnsupportedImage = errors.New("unsupported or invalid image data")

var formatInfo = map[string]struct {
	contentType string
	extension   string
}{
	FormatJPEG: {"image/jpeg", ".jpg"},
	FormatPNG:  {"image/png", ".png"},
	FormatGIF:  {"image/gif", ".gif"},
	FormatBMP:  {"image/bmp", ".bmp"},
	FormatTIFF: {"image/tiff", ".tiff"},
	FormatWEBP: {"image/webp", ".webp"},
	FormatSVG:  {"image/svg+xml", ".svg"},
}

// ContentType returns the MIME type for a format name, or application/octet-stream.
func ContentType(format string) string {
	if info, ok := formatInfo[format]; ok {
		return info.contentType
	}
	return "application/octet-stream"
}

// Extension returns the file extension (with dot) for a format name.
func Extension(format string) string {
	if info, ok := formatInfo[format]; ok {
		return info.extension
	}
	return ".bin"
}

// ImageInfo is what the image header tells about an image. Width and Height
// are zero for SVG without an explicit size.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// Pixels returns Width*Height without overflowing on hostile headers.
func (info ImageInfo) Pixels() int64 {
	return int64(info.Width) * int64(info.Height)
}

// DetectImage reads format and dimensions without decoding pixel data.
func DetectImage(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, ErrUnsupportedImage
	}
	if isSVGData(data) {
		w, h, _ := parseSvgExplicitSize(data)
		return ImageInfo{Format: FormatSVG, Width: w, Height: h}, nil
	}
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return ImageInfo{Format: format, Width: config.Width, Height: config.Height}, nil
}

// DetectFormat identifies the image format without decoding pixel data.
func DetectFormat(data []byte) (string, error) {
	info, err := DetectImage(data)
	if err != nil {
		return "", err
	}
	return info.Format, nil
}

// decodeImage decodes raster formats through the registered decoders and
// rasterises SVG. SVG without explicit width/height is rendered at the
// fallback size; a zero fallback makes such SVGs an error.
func decodeImage(data []byte, svgFallbackWidth, svgFallbackHeight int) (image.Image, string, error) {
	if isSVGData(data) {
		w, h, ok := parseSvgExplicitSize(data)
		if !ok {
			if svgFallbackWidth <= 0 || svgFallbackHeight <= 0 {
				return nil, "", fmt.Errorf("SVG has no explicit size and no fallback size is configured")
			}
			w, h = svgFallbackWidth, svgFallbackHeight
		}
		img, err := renderSVG(data, w, h)
		if err != nil {
			return nil, "", err
		}
		return img, FormatSVG, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, format, nil
}

// encodableFormat maps a source format to the format used when re-encoding.
// Formats without an encoder fall back to PNG.
func encodableFormat(format string) string {
	switch format {
	case FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatTIFF:
		return format
	default:
		return FormatPNG
	}
}

func encodeImage(img image.Image, format string, jpegQuality int) ([]byte, error) {
	var buf bytes.Buffer
	b := img.Bounds()
	// rough heuristic: 1 byte per pixel
	buf.Grow(b.Dx() * b.Dy())

	var err error
	switch format {
	case FormatJPEG:
		if jpegQuality <= 0 {
			jpegQuality = defaultJPEGQuality
		}
		err = jpeg.Encode(&buf, flatten(img, color.White), &jpeg.Options{Quality: jpegQuality})
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatGIF:
		err = gif.Encode(&buf, img, nil)
	case FormatBMP:
		err = bmp.Encode(&buf, img)
	case FormatTIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return nil, fmt.Errorf("no encoder for format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	return buf.Bytes(), nil
}

// flatten composes img over an opaque background, JPEG has no alpha channel.
func flatten(img image.Image, background color.Color) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// isSVGData performs a lightweight detection of SVG content from raw bytes.
func isSVGData(data []byte) bool {
	n := len(data)
	if n == 0 {
		return false
	}
	// Only inspect the first ~4KB for detection
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte("xmlns=\"http://www.w3.org/2000/svg\"")) ||
		bytes.Contains(header, []byte("xmlns='http://www.w3.org/2000/svg'"))
}

// parseSvgExplicitSize reads width and height of the root svg element.
// viewBox is deliberately not treated as a pixel size.
func parseSvgExplicitSize(data []byte) (int, int, bool) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	for {
		token, err := decoder.Token()
		if err != nil {
			return 0, 0, false
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if !strings.EqualFold(start.Name.Local, "svg") {
			return 0, 0, false
		}
		var w, h int
		for _, attr := range start.Attr {
			switch strings.ToLower(attr.Name.Local) {
			case "width":
				w = leadingInt(attr.Value)
			case "height":
				h = leadingInt(attr.Value)
			}
		}
		return w, h, w > 0 && h > 0
	}
}

// leadingInt parses the integer part of values like "120px" or "64.5".
func leadingInt(value string) int {
	num := 0
	found := false
	for _, ch := range strings.TrimSpace(value) {
		if ch < '0' || ch > '9' {
			break
		}
		found = true
		num = num*10 + int(ch-'0')
	}
	if !found {
		return 0
	}
	return num
}

// renderSVG rasterises the SVG onto a white canvas of the given size.
func renderSVG(svgData []byte, targetW, targetH int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(targetW), float64(targetH))

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(targetW, targetH, dst, dst.Bounds())
	dasher := rasterx.NewDasher(targetW, targetH, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}
