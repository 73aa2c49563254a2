// Package compare scores a captured screenshot against a reference design
// and renders a diff artifact highlighting the differing pixels.
package compare

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// DefaultPixelThreshold is the per-pixel delta above which a pixel counts
// as different.
const DefaultPixelThreshold = 0.1

// Rec. 709 luminance weights.
const (
	weightR = 0.2126
	weightG = 0.7152
	weightB = 0.0722
)

// Config configures an Engine.
type Config struct {
	// PixelThreshold is in [0,1]. Default: 0.1.
	PixelThreshold float64
	// DiffDir receives diff images. Empty disables diff output.
	DiffDir string
	Logger  *slog.Logger
}

// Engine compares images. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	cfg Config
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.PixelThreshold <= 0 || cfg.PixelThreshold > 1 {
		cfg.PixelThreshold = DefaultPixelThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{cfg: cfg}
}

// Compare scores the screenshot at screenshotPath against referencePath.
//
// A missing or unreadable reference is not an error: the result carries no
// score and a warning. A reference with different dimensions is scaled to
// the screenshot first. An undecodable screenshot is an error.
func (e *Engine) Compare(ctx context.Context, screenshotPath, referencePath string) (models.ComparisonResult, error) {
	res := models.ComparisonResult{
		Outcome:        models.OutcomeCaptured,
		ScreenshotPath: screenshotPath,
		ReferencePath:  referencePath,
		Warnings:       []models.Warning{},
	}

	shot, err := decodeFile(screenshotPath)
	if err != nil {
		return res, fmt.Errorf("decode screenshot: %w", err)
	}

	if referencePath == "" {
		res.Warnings = append(res.Warnings, models.WarningReferenceMissing)
		return res, nil
	}
	ref, err := decodeFile(referencePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			res.Warnings = append(res.Warnings, models.WarningReferenceMissing)
		} else {
			e.cfg.Logger.Warn("compare: unreadable reference", "path", referencePath, "error", err)
			res.Warnings = append(res.Warnings, models.WarningReferenceUnreadable)
		}
		return res, nil
	}

	size := shot.Bounds().Size()
	if ref.Bounds().Size() != size {
		e.cfg.Logger.Debug("compare: scaling reference",
			"from", ref.Bounds().Size(), "to", size)
		ref = scale(ref, size)
		res.Warnings = append(res.Warnings, models.WarningDimensionMismatch)
	}

	stats, diffImg, err := diff(ctx, toNRGBA(shot), toNRGBA(ref), e.cfg.PixelThreshold)
	if err != nil {
		return res, err
	}
	score := similarity(stats)
	res.SimilarityScore = &score
	res.Stats = &stats

	if e.cfg.DiffDir != "" {
		path, err := e.writeDiff(screenshotPath, diffImg)
		if err != nil {
			e.cfg.Logger.Warn("compare: write diff image", "error", err)
		} else {
			res.DiffImagePath = &path
		}
	}
	return res, nil
}

// similarity maps mean pixel delta to a score in [0,1].
func similarity(stats models.DiffStats) float64 {
	s := 1 - stats.MeanDelta
	return math.Max(0, math.Min(1, s))
}

// diff walks both images pixel by pixel. a and b must share bounds.
func diff(ctx context.Context, a, b *image.NRGBA, threshold float64) (models.DiffStats, *image.NRGBA, error) {
	bounds := a.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	stats := models.DiffStats{Width: w, Height: h}
	minX, minY, maxX, maxY := w, h, -1, -1
	var sum float64

	for y := 0; y < h; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return models.DiffStats{}, nil, err
			}
		}
		for x := 0; x < w; x++ {
			ia := a.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			ib := b.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			pa := a.Pix[ia : ia+3 : ia+3]
			pb := b.Pix[ib : ib+3 : ib+3]

			d := (weightR*absDiff(pa[0], pb[0]) +
				weightG*absDiff(pa[1], pb[1]) +
				weightB*absDiff(pa[2], pb[2])) / 255
			sum += d

			if d > threshold {
				stats.DiffPixels++
				minX, minY = min(minX, x), min(minY, y)
				maxX, maxY = max(maxX, x), max(maxY, y)
				out.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
				continue
			}
			lum := weightR*float64(pa[0]) + weightG*float64(pa[1]) + weightB*float64(pa[2])
			g := uint8(255 - (255-lum)/4)
			out.SetNRGBA(x, y, color.NRGBA{R: g, G: g, B: g, A: 255})
		}
	}

	total := w * h
	if total > 0 {
		stats.MeanDelta = sum / float64(total)
		stats.DiffRatio = float64(stats.DiffPixels) / float64(total)
	}
	if stats.DiffPixels > 0 {
		stats.Bounds = models.Rect{MinX: minX, MinY: minY, MaxX: maxX + 1, MaxY: maxY + 1}
	}
	return stats, out, nil
}

func absDiff(a, b uint8) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}

func (e *Engine) writeDiff(screenshotPath string, img image.Image) (string, error) {
	if err := os.MkdirAll(e.cfg.DiffDir, 0755); err != nil {
		return "", fmt.Errorf("create diff dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(screenshotPath), filepath.Ext(screenshotPath))
	path := filepath.Join(e.cfg.DiffDir, base+"-diff.png")

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("encode diff: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// scale resizes src to size with bilinear interpolation.
func scale(src image.Image, size image.Point) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// toNRGBA returns img as a zero-origin *image.NRGBA.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}
