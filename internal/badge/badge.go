package badge

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/safestreets/safestreets/internal/score"
)

// Card dimensions for the embeddable score badge.
const (
	Width  = 360
	Height = 180
)

var gradeColors = map[score.Grade]color.RGBA{
	score.GradeA: {46, 160, 67, 255},
	score.GradeB: {132, 173, 54, 255},
	score.GradeC: {212, 167, 44, 255},
	score.GradeD: {219, 109, 40, 255},
	score.GradeF: {207, 54, 54, 255},
}

// Data is what the badge displays.
type Data struct {
	OverallScore int
	Grade        score.Grade
	Confidence   int
	Name         string
}

// Render draws a PNG score card: dark background, grade-colored band on the
// left, score and grade text on the right.
func Render(d Data) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))

	// Background gradient, dark blue-gray.
	for y := 0; y < Height; y++ {
		progress := float64(y) / float64(Height)
		bg := color.RGBA{
			R: uint8(28 + progress*8),
			G: uint8(32 + progress*10),
			B: uint8(44 + progress*14),
			A: 255,
		}
		for x := 0; x < Width; x++ {
			img.SetRGBA(x, y, bg)
		}
	}

	// Grade band.
	band, ok := gradeColors[d.Grade]
	if !ok {
		band = gradeColors[score.GradeF]
	}
	for y := 0; y < Height; y++ {
		for x := 0; x < 10; x++ {
			img.SetRGBA(x, y, band)
		}
	}

	white := color.RGBA{255, 255, 255, 255}
	gray := color.RGBA{170, 176, 190, 255}

	title := d.Name
	if title == "" {
		title = "Walkability"
	}
	drawText(img, title, 28, 36, gray)
	drawText(img, fmt.Sprintf("%d / 100", d.OverallScore), 28, 80, white)
	drawText(img, fmt.Sprintf("Grade %s", d.Grade), 28, 112, band)
	drawText(img, fmt.Sprintf("confidence %d%%", d.Confidence), 28, 150, gray)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode badge: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
