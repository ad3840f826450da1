package badge

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/safestreets/safestreets/internal/score"
)

func TestRender(t *testing.T) {
	data, err := Render(Data{OverallScore: 63, Grade: score.GradeB, Confidence: 83})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != Width || bounds.Dy() != Height {
		t.Errorf("dimensions = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), Width, Height)
	}
}

func TestRender_UnknownGradeFallsBack(t *testing.T) {
	if _, err := Render(Data{OverallScore: 0, Grade: score.Grade("?")}); err != nil {
		t.Fatalf("Render: %v", err)
	}
}
