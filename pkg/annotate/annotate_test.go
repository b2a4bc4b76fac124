package annotate

import (
	"RailscanGolang/internal/entity"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func floatPtr(v float64) *float64 { return &v }

// solidJPEG renders a single-color JPEG so stroke pixels are easy to tell
// apart after a decode round trip.
func solidJPEG(t *testing.T, width, height int, c color.NRGBA) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	return buf.Bytes()
}

func TestDraw_StrokesBoxCenteredOnPrediction(t *testing.T) {
	source := solidJPEG(t, 200, 100, color.NRGBA{R: 30, G: 30, B: 30, A: 255})

	preds := []entity.Prediction{{
		X:          floatPtr(100),
		Y:          floatPtr(50),
		Width:      floatPtr(40),
		Height:     floatPtr(20),
		Confidence: 0.87,
		Class:      "crack",
	}}

	annotated, err := Draw(source, preds, testLogger())
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(annotated))
	require.NoError(t, err)
	require.Equal(t, 200, img.Bounds().Dx())
	require.Equal(t, 100, img.Bounds().Dy())

	// Box spans (80,40)-(120,60); the top edge should carry the cyan
	// stroke, the untouched corner should not.
	require.True(t, isCyanish(img.At(100, 41)), "expected stroke on top edge")
	require.True(t, isCyanish(img.At(81, 50)), "expected stroke on left edge")
	require.False(t, isCyanish(img.At(5, 95)), "corner outside box must stay dark")
}

func TestDraw_SkipsPredictionWithoutGeometry(t *testing.T) {
	source := solidJPEG(t, 64, 64, color.NRGBA{R: 30, G: 30, B: 30, A: 255})

	preds := []entity.Prediction{{Confidence: 0.9, Class: "crack"}}

	annotated, err := Draw(source, preds, testLogger())
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(annotated))
	require.NoError(t, err)

	for _, p := range []image.Point{{10, 10}, {32, 32}, {55, 55}} {
		require.False(t, isCyanish(img.At(p.X, p.Y)))
	}
}

func TestDraw_BoxClippedToImageBounds(t *testing.T) {
	source := solidJPEG(t, 60, 60, color.NRGBA{R: 30, G: 30, B: 30, A: 255})

	// Box centered near the edge hangs outside the canvas.
	preds := []entity.Prediction{{
		X:          floatPtr(2),
		Y:          floatPtr(2),
		Width:      floatPtr(30),
		Height:     floatPtr(30),
		Confidence: 0.5,
		Class:      "crack",
	}}

	annotated, err := Draw(source, preds, testLogger())
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(annotated))
	require.NoError(t, err)
	require.Equal(t, 60, img.Bounds().Dx())
}

func TestDraw_UndecodableImage(t *testing.T) {
	_, err := Draw([]byte("not an image"), nil, testLogger())
	require.Error(t, err)
}

func isCyanish(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	// JPEG is lossy; accept anything clearly green-blue over red.
	return g > 0x8000 && b > 0x8000 && r < 0x8000
}
