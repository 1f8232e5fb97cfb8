package visualization

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"facemetrics/internal/models"
	"facemetrics/pkg/growth"
)

func flatData(t *testing.T) *growth.GrowthData {
	t.Helper()
	gd, err := growth.New(growth.Spec{
		Sex:    models.BothSexes,
		AgeMin: 0,
		AgeMax: 20,
		Source: "Farkas 1994",
		Stats:  [][]growth.Sample{{{Age: 0, Mean: 10, SD: 2}, {Age: 20, Mean: 10, SD: 2}}},
	})
	if err != nil {
		t.Fatalf("growth data: %v", err)
	}
	return gd
}

// TestNewChartRejects verifies argument checking
func TestNewChartRejects(t *testing.T) {
	gd := flatData(t)
	if _, err := NewChart(gd, 1, 0, 20); !errors.Is(err, ErrNoCurve) {
		t.Errorf("Expected ErrNoCurve for dimension 1, got %v", err)
	}
	if _, err := NewChart(nil, 0, 0, 20); !errors.Is(err, ErrNoCurve) {
		t.Errorf("Expected ErrNoCurve for nil data, got %v", err)
	}
	if _, err := NewChart(gd, 0, 5, 5); err == nil {
		t.Error("Expected error for empty age range")
	}
}

// TestSavePNG draws a chart with one measurement and checks the pixels at
// the measurement, on the mean curve and in empty space
func TestSavePNG(t *testing.T) {
	chart, err := NewChart(flatData(t), 0, 0, 20)
	if err != nil {
		t.Fatalf("NewChart: %v", err)
	}
	chart.Plot(10, 10)

	path := filepath.Join(t.TempDir(), "charts", "metric_1.png")
	if err := chart.SavePNG(path); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got := img.Bounds(); got != image.Rect(0, 0, DefaultWidth, DefaultHeight) {
		t.Errorf("Expected bounds %v, got %v", image.Rect(0, 0, DefaultWidth, DefaultHeight), got)
	}

	r, g, _, _ := img.At(320, 240).RGBA()
	if r>>8 < 200 || g>>8 > 100 {
		t.Errorf("Expected measurement marker at (320,240), got r=%d g=%d", r>>8, g>>8)
	}

	r, _, _, _ = img.At(100, 240).RGBA()
	if r>>8 > 160 {
		t.Errorf("Expected mean curve at (100,240), got r=%d", r>>8)
	}

	r, g, b, _ := img.At(600, 100).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("Expected background at (600,100), got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

// TestSetSize verifies the rendered image follows the configured size
func TestSetSize(t *testing.T) {
	chart, err := NewChart(flatData(t), 0, 0, 20)
	if err != nil {
		t.Fatalf("NewChart: %v", err)
	}
	chart.SetSize(200, 100)
	chart.SetSize(0, 50)
	if got := chart.Image().Bounds().Size(); got != image.Pt(200, 100) {
		t.Errorf("Expected size 200x100, got %v", got)
	}
}
