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

	"github.com/itsm0000/al-muallim-bot/models"
)

func testSheetPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, white)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAnnotateDrawsRectangleAndKeepsDimensions(t *testing.T) {
	a := NewAnnotator(AnnotatorConfig{})
	source := testSheetPNG(t, 800, 600)

	out, dropped, err := a.Annotate(source, []models.Annotation{
		{Coords: [4]int{100, 50, 150, 200}, Color: models.LabelCorrect, Note: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)

	decoded, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format, "png input stays png")
	assert.Equal(t, 800, decoded.Bounds().Dx())
	assert.Equal(t, 600, decoded.Bounds().Dy())

	green := defaultPalette()[models.LabelCorrect]
	onEdge := color.RGBAModel.Convert(decoded.At(100, 50)).(color.RGBA)
	assert.Equal(t, green, onEdge, "box edge carries the verdict color")

	inside := color.RGBAModel.Convert(decoded.At(125, 125)).(color.RGBA)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, inside, "box interior is untouched")
}

func TestAnnotatePartiallyOutsideIsClamped(t *testing.T) {
	a := NewAnnotator(AnnotatorConfig{})
	source := testSheetPNG(t, 200, 200)

	out, dropped, err := a.Annotate(source, []models.Annotation{
		{Coords: [4]int{-50, -50, 100, 100}, Color: models.LabelMistake},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, dropped, "partially visible boxes are clamped, not dropped")

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	red := defaultPalette()[models.LabelMistake]
	assert.Equal(t, red, color.RGBAModel.Convert(decoded.At(0, 0)).(color.RGBA))
}

func TestAnnotateFullyOutsideIsDroppedAndCounted(t *testing.T) {
	a := NewAnnotator(AnnotatorConfig{})
	source := testSheetPNG(t, 200, 200)

	out, dropped, err := a.Annotate(source, []models.Annotation{
		{Coords: [4]int{-100, -100, -10, -10}, Color: models.LabelMistake},
		{Coords: [4]int{500, 500, 600, 600}, Color: models.LabelUnclear},
		{Coords: [4]int{10, 10, 50, 50}, Color: models.LabelCorrect},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	green := defaultPalette()[models.LabelCorrect]
	assert.Equal(t, green, color.RGBAModel.Convert(decoded.At(10, 10)).(color.RGBA))
}

func TestAnnotateUndecodableSource(t *testing.T) {
	a := NewAnnotator(AnnotatorConfig{})

	_, _, err := a.Annotate([]byte("not an image at all"), nil)
	require.ErrorIs(t, err, ErrImageDecode)
}

func TestAnnotateJPEGStaysJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 90))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	a := NewAnnotator(AnnotatorConfig{})
	out, _, err := a.Annotate(buf.Bytes(), []models.Annotation{
		{Coords: [4]int{10, 10, 60, 60}, Color: models.LabelPartial, Note: "ملاحظة"},
	})
	require.NoError(t, err)

	decoded, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 120, decoded.Bounds().Dx())
	assert.Equal(t, 90, decoded.Bounds().Dy())
}

func TestClampBox(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 200)

	t.Run("inside unchanged", func(t *testing.T) {
		r, ok := clampBox([4]int{10, 20, 30, 40}, bounds)
		require.True(t, ok)
		assert.Equal(t, image.Rect(10, 20, 30, 40), r)
	})

	t.Run("overflow clamped to bounds", func(t *testing.T) {
		r, ok := clampBox([4]int{150, 150, 400, 400}, bounds)
		require.True(t, ok)
		assert.Equal(t, image.Rect(150, 150, 200, 200), r)
	})

	t.Run("fully outside", func(t *testing.T) {
		_, ok := clampBox([4]int{300, 300, 400, 400}, bounds)
		assert.False(t, ok)
	})

	t.Run("degenerate zero area", func(t *testing.T) {
		_, ok := clampBox([4]int{50, 50, 50, 90}, bounds)
		assert.False(t, ok)
	})
}
