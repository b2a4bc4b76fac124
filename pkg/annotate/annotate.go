package annotate

import (
	"RailscanGolang/internal/entity"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	strokeWidth = 3
	jpegQuality = 95
	labelMargin = 5
)

var (
	boxColor     = color.NRGBA{R: 0, G: 255, B: 255, A: 255}
	boxFillColor = color.NRGBA{R: 0, G: 255, B: 255, A: 51}
	labelColor   = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	outlineColor = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
)

// Draw composites detection boxes and confidence labels onto a copy of the
// source image and re-encodes it as JPEG. Coordinates are absolute pixels
// with (x, y) the box center; predictions missing geometry are skipped and
// logged. Callers fall back to the original image when decoding fails.
func Draw(imageData []byte, predictions []entity.Prediction, log *logrus.Logger) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode source image: %w", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	for _, pred := range predictions {
		if !pred.HasGeometry() {
			log.WithFields(logrus.Fields{
				"class":      pred.Class,
				"confidence": pred.Confidence,
			}).Warn("Prediction skipped, incomplete bounding box geometry")
			continue
		}

		width := int(*pred.Width)
		height := int(*pred.Height)
		left := int(*pred.X) - width/2
		top := int(*pred.Y) - height/2
		box := image.Rect(left, top, left+width, top+height)

		fillRect(canvas, box.Intersect(bounds), boxFillColor)
		strokeRect(canvas, box, bounds, boxColor)

		label := fmt.Sprintf("%s %.1f%%", pred.Class, pred.Confidence*100)
		drawLabel(canvas, label, left, top-labelMargin)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}

	return buf.Bytes(), nil
}

func fillRect(canvas *image.RGBA, rect image.Rectangle, c color.NRGBA) {
	if rect.Empty() {
		return
	}
	draw.Draw(canvas, rect, image.NewUniform(c), image.Point{}, draw.Over)
}

func strokeRect(canvas *image.RGBA, box, bounds image.Rectangle, c color.NRGBA) {
	edges := []image.Rectangle{
		image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+strokeWidth),
		image.Rect(box.Min.X, box.Max.Y-strokeWidth, box.Max.X, box.Max.Y),
		image.Rect(box.Min.X, box.Min.Y, box.Min.X+strokeWidth, box.Max.Y),
		image.Rect(box.Max.X-strokeWidth, box.Min.Y, box.Max.X, box.Max.Y),
	}

	for _, edge := range edges {
		clipped := edge.Intersect(bounds)
		if clipped.Empty() {
			continue
		}
		draw.Draw(canvas, clipped, image.NewUniform(c), image.Point{}, draw.Src)
	}
}

// drawLabel renders text with a one-pixel dark outline so it stays legible
// against any background.
func drawLabel(canvas *image.RGBA, text string, x, y int) {
	offsets := []image.Point{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	for _, off := range offsets {
		drawText(canvas, text, x+off.X, y+off.Y, outlineColor)
	}
	drawText(canvas, text, x, y, labelColor)
}

func drawText(canvas *image.RGBA, text string, x, y int, c color.NRGBA) {
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}
