package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, transparent bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 200, G: 40, B: 40, A: 255}
			if transparent && x < w/2 {
				c.A = 0
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageProcessor_AvatarIsSquare(t *testing.T) {
	p := NewImageProcessor(MediaConfig{AvatarSize: 64, MaxWidth: 2048})
	out, err := p.Process(MediaAvatar, "me.png", pngBytes(t, 200, 120, false))
	require.NoError(t, err)

	assert.Equal(t, 64, out.Meta.Width)
	assert.Equal(t, 64, out.Meta.Height)
	assert.Equal(t, "png", out.Meta.Format)
	assert.NotEmpty(t, out.Meta.Blurhash)
	assert.False(t, out.Meta.Exif.Present)

	decoded, format, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, decoded.Bounds().Dx())
}

func TestImageProcessor_CoverIsScaledDown(t *testing.T) {
	p := NewImageProcessor(MediaConfig{MaxWidth: 100})
	out, err := p.Process(MediaCover, "cover.png", pngBytes(t, 400, 200, false))
	require.NoError(t, err)
	assert.Equal(t, 100, out.Meta.Width)
	assert.Equal(t, 50, out.Meta.Height)
}

func TestImageProcessor_FlattensTransparency(t *testing.T) {
	p := NewImageProcessor(MediaConfig{MaxWidth: 100})
	out, err := p.Process(MediaProduct, "item.png", pngBytes(t, 40, 40, true))
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(2, 20).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestFileValidator(t *testing.T) {
	fv := NewFileValidator(1024)
	small := pngBytes(t, 4, 4, false)

	mime, err := fv.Validate("a.png", small)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	_, err = fv.Validate("a.exe", small)
	assert.ErrorIs(t, err, ErrInvalidUpload)

	_, err = fv.Validate("a.png", []byte("just some text, not an image"))
	assert.ErrorIs(t, err, ErrInvalidUpload)

	_, err = fv.Validate("a.png", nil)
	assert.ErrorIs(t, err, ErrInvalidUpload)

	_, err = fv.Validate("big.png", bytes.Repeat([]byte{0}, 2048))
	assert.ErrorIs(t, err, ErrInvalidUpload)

	fv.MaxWidth = 2
	_, err = fv.Validate("a.png", small)
	assert.ErrorIs(t, err, ErrInvalidUpload)
}

func TestExtractDominantColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 5, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			img.Set(x, y, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff})
		}
	}
	assert.Equal(t, "#102030", extractDominantColor(img))
}

func TestInspectExif_NoMetadata(t *testing.T) {
	assert.Equal(t, ExifInfo{}, InspectExif(pngBytes(t, 2, 2, false)))
}
