package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func encodeTestImage(t *testing.T, w, h int, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 16 {
		for y := 0; y < h; y += 16 {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 128, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	switch format {
	case "png":
		require.NoError(t, png.Encode(buf, img))
	default:
		require.NoError(t, jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}))
	}
	return buf.Bytes()
}

func TestCompressShrinksOversizedImage(t *testing.T) {
	c := NewCompressor(zap.NewNop())
	data := encodeTestImage(t, 4096, 3072, "jpeg")

	result := c.Compress(context.Background(), Input{Data: data, MimeType: "image/jpeg", Name: "big.jpg"}, false, nil)
	require.False(t, result.UsedFallback, result.Error)
	assert.Equal(t, "image/jpeg", result.MimeType)
	assert.Equal(t, int64(len(data)), result.OriginalSize)

	decoded, _, err := image.Decode(bytes.NewReader(result.Blob))
	require.NoError(t, err)
	bounds := decoded.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), TierNormal.MaxDimension)
	assert.LessOrEqual(t, bounds.Dy(), TierNormal.MaxDimension)
}

func TestCompressAggressiveTierUsesSmallerBound(t *testing.T) {
	c := NewCompressor(zap.NewNop())
	data := encodeTestImage(t, 3000, 2000, "jpeg")

	result := c.Compress(context.Background(), Input{Data: data, MimeType: "image/jpeg", Name: "slow.jpg"}, true, nil)
	require.False(t, result.UsedFallback, result.Error)

	decoded, _, err := image.Decode(bytes.NewReader(result.Blob))
	require.NoError(t, err)
	assert.LessOrEqual(t, decoded.Bounds().Dx(), TierAggressive.MaxDimension)
	assert.LessOrEqual(t, decoded.Bounds().Dy(), TierAggressive.MaxDimension)
}

func TestCompressConvertsPNGToJPEG(t *testing.T) {
	c := NewCompressor(zap.NewNop())
	data := encodeTestImage(t, 640, 480, "png")

	result := c.Compress(context.Background(), Input{Data: data, MimeType: "image/png", Name: "shot.png"}, false, nil)
	require.False(t, result.UsedFallback, result.Error)
	assert.Equal(t, "image/jpeg", result.MimeType)
}

func TestCompressNonImageFallsBack(t *testing.T) {
	c := NewCompressor(zap.NewNop())
	data := []byte("definitely not an image")

	result := c.Compress(context.Background(), Input{Data: data, MimeType: "application/pdf", Name: "doc.pdf"}, false, nil)
	assert.True(t, result.UsedFallback)
	assert.Equal(t, data, result.Blob, "fallback hands the original bytes back")
	assert.NotEmpty(t, result.Error)
}

func TestCompressCorruptImageFallsBack(t *testing.T) {
	c := NewCompressor(zap.NewNop())
	data := []byte{0xFF, 0xD8, 0xFF, 0x00, 0x01, 0x02}

	result := c.Compress(context.Background(), Input{Data: data, MimeType: "image/jpeg", Name: "broken.jpg"}, false, nil)
	assert.True(t, result.UsedFallback)
	assert.Equal(t, data, result.Blob)
}

func TestCompressProgressIsMonotonicAndEndsAt100(t *testing.T) {
	c := NewCompressor(zap.NewNop())
	data := encodeTestImage(t, 800, 600, "jpeg")

	var reported []int
	c.Compress(context.Background(), Input{Data: data, MimeType: "image/jpeg", Name: "p.jpg"}, false, func(p int) {
		reported = append(reported, p)
	})

	require.NotEmpty(t, reported)
	for i := 1; i < len(reported); i++ {
		assert.Greater(t, reported[i], reported[i-1])
	}
	assert.Equal(t, 100, reported[len(reported)-1])
}

func TestCompressProgressEndsAt100OnFallback(t *testing.T) {
	c := NewCompressor(zap.NewNop())

	var reported []int
	c.Compress(context.Background(), Input{Data: []byte("junk"), MimeType: "text/plain"}, false, func(p int) {
		reported = append(reported, p)
	})
	require.NotEmpty(t, reported)
	assert.Equal(t, 100, reported[len(reported)-1])
}

func TestCompressSmallImagePassesDimensionsThrough(t *testing.T) {
	c := NewCompressor(zap.NewNop())
	data := encodeTestImage(t, 320, 240, "jpeg")

	result := c.Compress(context.Background(), Input{Data: data, MimeType: "image/jpeg", Name: "small.jpg"}, false, nil)
	require.False(t, result.UsedFallback)

	decoded, _, err := image.Decode(bytes.NewReader(result.Blob))
	require.NoError(t, err)
	assert.Equal(t, 320, decoded.Bounds().Dx())
	assert.Equal(t, 240, decoded.Bounds().Dy())
}
