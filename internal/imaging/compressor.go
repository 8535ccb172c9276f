package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Tier bounds the output of a compression pass.
type Tier struct {
	MaxDimension int
	MaxBytes     int64
	Quality      int
}

// Default tiers, selected by the caller from the declared connection speed.
var (
	TierNormal     = Tier{MaxDimension: 2048, MaxBytes: 5 * 1024 * 1024, Quality: 80}
	TierAggressive = Tier{MaxDimension: 1024, MaxBytes: 512 * 1024, Quality: 80}
)

// minQuality floors the single best-effort re-encode pass.
const minQuality = 50

// Input carries the raw photo bytes into the compressor.
type Input struct {
	Data     []byte
	MimeType string
	Name     string
}

// Result is always produced, even on failure: the fallback path hands the
// original bytes back as the "compressed" output so callers never need to
// special-case compression errors.
type Result struct {
	Blob             []byte
	MimeType         string
	OriginalSize     int64
	CompressedSize   int64
	CompressionRatio float64
	UsedFallback     bool
	Error            string
}

// ProgressFunc receives values in [0,100]; the final call is always 100.
type ProgressFunc func(percent int)

// Compressor re-encodes photos as bounded JPEGs.
type Compressor struct {
	logger *zap.Logger
}

// NewCompressor builds a compressor.
func NewCompressor(logger *zap.Logger) *Compressor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compressor{logger: logger}
}

// Compress shrinks the input to the selected tier. It never returns an
// error: any failure degrades to the fallback result carrying the original
// bytes with UsedFallback set and Error populated.
func (c *Compressor) Compress(ctx context.Context, in Input, aggressive bool, onProgress ProgressFunc) Result {
	progress := newProgressReporter(onProgress)
	defer progress.finish()

	tier := TierNormal
	if aggressive {
		tier = TierAggressive
	}

	if !strings.HasPrefix(in.MimeType, "image/") {
		return c.fallback(in, "arquivo não é uma imagem válida")
	}
	progress.report(10)

	if err := ctx.Err(); err != nil {
		return c.fallback(in, err.Error())
	}

	img, _, err := image.Decode(bytes.NewReader(in.Data))
	if err != nil {
		c.logger.Warn("image decode failed, using fallback",
			zap.String("file", in.Name), zap.Error(err))
		return c.fallback(in, fmt.Sprintf("falha ao decodificar imagem: %v", err))
	}
	progress.report(30)

	scaled := scaleToFit(img, tier.MaxDimension)

	encoded, err := encodeJPEG(scaled, tier.Quality)
	if err != nil {
		return c.fallback(in, fmt.Sprintf("falha ao codificar imagem: %v", err))
	}

	// Over budget: one best-effort re-encode at reduced quality, not a loop.
	if int64(len(encoded)) > tier.MaxBytes {
		reduced := tier.Quality * 7 / 10
		if reduced < minQuality {
			reduced = minQuality
		}
		if smaller, err := encodeJPEG(scaled, reduced); err == nil {
			encoded = smaller
		}
	}
	progress.report(90)

	if len(encoded) == 0 {
		return c.fallback(in, "compressão resultou em imagem vazia")
	}

	originalSize := int64(len(in.Data))
	compressedSize := int64(len(encoded))
	ratio := 0.0
	if originalSize > 0 {
		ratio = (1 - float64(compressedSize)/float64(originalSize)) * 100
	}

	return Result{
		Blob:             encoded,
		MimeType:         "image/jpeg",
		OriginalSize:     originalSize,
		CompressedSize:   compressedSize,
		CompressionRatio: ratio,
	}
}

func (c *Compressor) fallback(in Input, reason string) Result {
	size := int64(len(in.Data))
	return Result{
		Blob:           in.Data,
		MimeType:       in.MimeType,
		OriginalSize:   size,
		CompressedSize: size,
		UsedFallback:   true,
		Error:          reason,
	}
}

// scaleToFit shrinks img so that neither dimension exceeds maxDim while
// preserving aspect ratio. Images already inside the bound pass through.
func scaleToFit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	ratio := float64(maxDim) / float64(w)
	if hr := float64(maxDim) / float64(h); hr < ratio {
		ratio = hr
	}
	newW := int(float64(w)*ratio + 0.5)
	newH := int(float64(h)*ratio + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// progressReporter enforces monotonic progress ending at exactly 100.
type progressReporter struct {
	fn   ProgressFunc
	last int
}

func newProgressReporter(fn ProgressFunc) *progressReporter {
	return &progressReporter{fn: fn, last: -1}
}

func (p *progressReporter) report(percent int) {
	if p.fn == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= p.last {
		return
	}
	p.last = percent
	p.fn(percent)
}

func (p *progressReporter) finish() {
	if p.fn == nil {
		return
	}
	if p.last < 100 {
		p.last = 100
		p.fn(100)
	}
}
