package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/itsm0000/al-muallim-bot/models"
)

// AnnotatorService renders a grading result's annotations onto the original
// answer image: one palette-colored rectangle per annotation plus its note
// placed next to the box. The output keeps the source resolution; the only
// lossy step is re-encoding JPEG sources as JPEG.
type AnnotatorService interface {
	// Annotate returns the annotated image, the number of annotations dropped
	// because their clamped box had zero area, and an error only when the
	// source image itself cannot be decoded.
	Annotate(source []byte, annotations []models.Annotation) ([]byte, int, error)
}

// AnnotatorConfig tweaks rendering. FontPath may point to a TTF/OTF with
// Arabic glyphs; without it notes fall back to the built-in bitmap face.
type AnnotatorConfig struct {
	FontPath    string
	FontSize    float64
	StrokeWidth int
}

type annotatorServiceImpl struct {
	palette map[models.Label]color.RGBA
	face    font.Face
	stroke  int
}

// Fixed annotation palette. Teachers read these colors as verdicts, so they
// are not configurable.
func defaultPalette() map[models.Label]color.RGBA {
	return map[models.Label]color.RGBA{
		models.LabelCorrect: {R: 0x16, G: 0x8a, B: 0x2c, A: 0xff}, // green
		models.LabelMistake: {R: 0xd6, G: 0x1f, B: 0x1f, A: 0xff}, // red
		models.LabelPartial: {R: 0xe6, G: 0xc2, B: 0x00, A: 0xff}, // yellow
		models.LabelUnclear: {R: 0xf0, G: 0x7d, B: 0x00, A: 0xff}, // orange
	}
}

func NewAnnotator(cfg AnnotatorConfig) AnnotatorService {
	if cfg.StrokeWidth <= 0 {
		cfg.StrokeWidth = 4
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = 22
	}

	face := font.Face(basicfont.Face7x13)
	if cfg.FontPath != "" {
		data, err := os.ReadFile(cfg.FontPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.FontPath).Msg("SERVICE: annotation font unreadable, using builtin face")
		} else if fnt, err := opentype.Parse(data); err != nil {
			log.Warn().Err(err).Str("path", cfg.FontPath).Msg("SERVICE: annotation font unparsable, using builtin face")
		} else if f, err := opentype.NewFace(fnt, &opentype.FaceOptions{Size: cfg.FontSize, DPI: 72, Hinting: font.HintingFull}); err == nil {
			face = f
		}
	}

	return &annotatorServiceImpl{
		palette: defaultPalette(),
		face:    face,
		stroke:  cfg.StrokeWidth,
	}
}

func (a *annotatorServiceImpl) Annotate(source []byte, annotations []models.Annotation) ([]byte, int, error) {
	img, format, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)

	dropped := 0
	var placedNotes []image.Rectangle

	// Draw in the order received. Later notes may overlap earlier ones at
	// dense spots: cosmetic, not a correctness issue.
	for _, an := range annotations {
		box, ok := clampBox(an.Coords, canvas.Bounds())
		if !ok {
			dropped++
			log.Debug().Ints("coords", an.Coords[:]).Msg("SERVICE: annotation fully outside image, dropped")
			continue
		}
		col, ok := a.palette[an.Color]
		if !ok {
			dropped++
			continue
		}
		a.drawRectOutline(canvas, box, col)
		if an.Note != "" {
			placedNotes = append(placedNotes, a.drawNote(canvas, box, an.Note, col, placedNotes))
		}
	}

	out, err := encodeImage(canvas, format)
	if err != nil {
		return nil, 0, err
	}
	return out, dropped, nil
}

// clampBox maps model coordinates into the image's pixel space. Coordinates
// are clamped to the bounds, never rejected; only a box whose clamped area is
// zero (fully outside, or degenerate) reports ok=false.
func clampBox(coords [4]int, bounds image.Rectangle) (image.Rectangle, bool) {
	r := image.Rect(coords[0], coords[1], coords[2], coords[3]).Intersect(bounds)
	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

func (a *annotatorServiceImpl) drawRectOutline(dst *image.RGBA, r image.Rectangle, col color.RGBA) {
	src := image.NewUniform(col)
	w := a.stroke
	// Four edge strips, kept inside the box so the outline never spills past
	// the clamped bounds.
	top := image.Rect(r.Min.X, r.Min.Y, r.Max.X, min(r.Min.Y+w, r.Max.Y))
	bottom := image.Rect(r.Min.X, max(r.Max.Y-w, r.Min.Y), r.Max.X, r.Max.Y)
	left := image.Rect(r.Min.X, r.Min.Y, min(r.Min.X+w, r.Max.X), r.Max.Y)
	right := image.Rect(max(r.Max.X-w, r.Min.X), r.Min.Y, r.Max.X, r.Max.Y)
	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		draw.Draw(dst, edge, src, image.Point{}, draw.Src)
	}
}

// drawNote places the note text next to the box: below first, then above, then
// to the right, picking the first spot that stays on the canvas and does not
// cover an earlier note. If every candidate collides, the note goes below
// anyway and gets clipped by the canvas.
func (a *annotatorServiceImpl) drawNote(dst *image.RGBA, box image.Rectangle, note string, col color.RGBA, placed []image.Rectangle) image.Rectangle {
	const pad = 6
	metrics := a.face.Metrics()
	textW := font.MeasureString(a.face, note).Ceil()
	textH := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()

	candidates := []image.Rectangle{
		image.Rect(box.Min.X, box.Max.Y+pad, box.Min.X+textW, box.Max.Y+pad+textH),           // below
		image.Rect(box.Min.X, box.Min.Y-pad-textH, box.Min.X+textW, box.Min.Y-pad),           // above
		image.Rect(box.Max.X+pad, box.Min.Y, box.Max.X+pad+textW, box.Min.Y+textH),           // right
	}

	spot := candidates[0]
	for _, c := range candidates {
		if !c.In(dst.Bounds()) {
			continue
		}
		if overlapsAny(c, placed) {
			continue
		}
		spot = c
		break
	}

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: a.face,
		Dot:  fixed.P(spot.Min.X, spot.Min.Y+ascent),
	}
	d.DrawString(note)
	return spot
}

func overlapsAny(r image.Rectangle, placed []image.Rectangle) bool {
	for _, p := range placed {
		if r.Overlaps(p) {
			return true
		}
	}
	return false
}

// encodeImage writes the canvas back in the source's format. PNG stays PNG
// (lossless); everything else, JPEG included, is written as high-quality JPEG.
func encodeImage(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding annotated png: %w", err)
		}
		return buf.Bytes(), nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encoding annotated jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
