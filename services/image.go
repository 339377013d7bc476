package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/bbrks/go-blurhash"
)

// MediaKind selects how an upload is shaped before storage.
type MediaKind string

const (
	MediaAvatar  MediaKind = "avatar"
	MediaCover   MediaKind = "cover"
	MediaProduct MediaKind = "product"
)

type ImageMeta struct {
	Width         int      `json:"width"`
	Height        int      `json:"height"`
	Format        string   `json:"format"`
	Blurhash      string   `json:"blurhash"`
	DominantColor string   `json:"dominant_color"`
	Exif          ExifInfo `json:"exif"`
}

// ProcessedImage is a re-encoded JPEG ready for storage.
type ProcessedImage struct {
	Data []byte
	Meta ImageMeta
}

// ImageProcessor validates, resizes and re-encodes uploaded images.
type ImageProcessor struct {
	validator  *FileValidator
	maxWidth   int
	avatarSize int
	quality    int
}

func NewImageProcessor(cfg MediaConfig) *ImageProcessor {
	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 88
	}
	return &ImageProcessor{
		validator:  NewFileValidator(cfg.MaxUploadBytes),
		maxWidth:   cfg.MaxWidth,
		avatarSize: cfg.AvatarSize,
		quality:    quality,
	}
}

// Process turns an uploaded file into a JPEG. Avatars are center-cropped to a square;
// other kinds are scaled down to the configured max width. EXIF is inspected before
// re-encoding, which drops it.
func (p *ImageProcessor) Process(kind MediaKind, filename string, data []byte) (*ProcessedImage, error) {
	if _, err := p.validator.Validate(filename, data); err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidUpload, err)
	}

	switch kind {
	case MediaAvatar:
		img = CropSquare(img, p.avatarSize)
	default:
		img = ResizeIfNeeded(img, p.maxWidth)
	}
	img = FlattenIfAlpha(img, color.White)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	b := img.Bounds()
	meta := ImageMeta{
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        format,
		DominantColor: extractDominantColor(img),
		Exif:          InspectExif(data),
	}
	if hash, err := blurhash.Encode(4, 3, img); err == nil {
		meta.Blurhash = hash
	}
	return &ProcessedImage{Data: buf.Bytes(), Meta: meta}, nil
}

func extractDominantColor(img image.Image) string {
	bounds := img.Bounds()
	stepX := bounds.Dx() / 10
	stepY := bounds.Dy() / 10
	if stepX < 1 {
		stepX = 1
	}
	if stepY < 1 {
		stepY = 1
	}

	var r, g, b uint32
	sampleCount := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			pixel := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			r += uint32(pixel.R)
			g += uint32(pixel.G)
			b += uint32(pixel.B)
			sampleCount++
		}
	}
	if sampleCount == 0 {
		return "#1a1a2e"
	}
	return fmt.Sprintf("#%02x%02x%02x", r/uint32(sampleCount), g/uint32(sampleCount), b/uint32(sampleCount))
}
