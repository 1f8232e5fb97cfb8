// Package visualization draws growth charts: the mean and standard
// deviation bands of a growth curve against age, with measurements marked
// on top.
package visualization

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"facemetrics/pkg/growth"
)

// Default image size in pixels
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

const (
	margin  = 40.0
	samples = 100
)

// ErrNoCurve is returned when the growth data has no such dimension.
var ErrNoCurve = errors.New("no growth curve for dimension")

type point struct{ age, value float64 }

// Chart is a growth chart for one dimension of a growth dataset.
type Chart struct {
	gd     *growth.GrowthData
	dim    int
	ageMin float64
	ageMax float64
	width  int
	height int
	points []point
}

// NewChart creates a chart of dimension dim of gd over ages [ageMin, ageMax].
// Curves are drawn only where the growth data applies.
func NewChart(gd *growth.GrowthData, dim int, ageMin, ageMax float64) (*Chart, error) {
	if gd == nil || gd.Curve(dim) == nil {
		return nil, fmt.Errorf("%w %d", ErrNoCurve, dim)
	}
	if !(ageMax > ageMin) {
		return nil, fmt.Errorf("empty age range [%g, %g]", ageMin, ageMax)
	}
	return &Chart{
		gd:     gd,
		dim:    dim,
		ageMin: ageMin,
		ageMax: ageMax,
		width:  DefaultWidth,
		height: DefaultHeight,
	}, nil
}

// SetSize changes the image size
func (c *Chart) SetSize(width, height int) {
	if width > 0 && height > 0 {
		c.width, c.height = width, height
	}
}

// Plot marks a measurement at age.
func (c *Chart) Plot(age, value float64) {
	c.points = append(c.points, point{age, value})
}

// span returns the ages over which curves are drawn.
func (c *Chart) span() (float64, float64, bool) {
	lo := math.Max(c.ageMin, c.gd.AgeMin())
	hi := math.Min(c.ageMax, c.gd.AgeMax())
	return lo, hi, hi > lo
}

// valueRange returns the vertical extent covering the +/-2 SD band and
// every plotted point.
func (c *Chart) valueRange() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	if a0, a1, ok := c.span(); ok {
		for i := 0; i <= samples; i++ {
			age := a0 + (a1-a0)*float64(i)/samples
			m, sd := c.gd.Mean(c.dim, age), c.gd.StdDev(c.dim, age)
			lo = math.Min(lo, m-2*sd)
			hi = math.Max(hi, m+2*sd)
		}
	}
	for _, p := range c.points {
		lo = math.Min(lo, p.value)
		hi = math.Max(hi, p.value)
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 1
	}
	if hi == lo {
		hi, lo = hi+1, lo-1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

func (c *Chart) render() *gg.Context {
	dc := gg.NewContext(c.width, c.height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	w, h := float64(c.width), float64(c.height)
	vmin, vmax := c.valueRange()
	x := func(age float64) float64 {
		return margin + (age-c.ageMin)/(c.ageMax-c.ageMin)*(w-2*margin)
	}
	y := func(v float64) float64 {
		return h - margin - (v-vmin)/(vmax-vmin)*(h-2*margin)
	}

	// axes
	dc.SetRGB(0.2, 0.2, 0.2)
	dc.SetLineWidth(1)
	dc.DrawLine(margin, h-margin, w-margin, h-margin)
	dc.DrawLine(margin, margin, margin, h-margin)
	dc.Stroke()
	dc.DrawStringAnchored(fmt.Sprintf("%g", c.ageMin), margin, h-margin+14, 0.5, 0)
	dc.DrawStringAnchored(fmt.Sprintf("%g", c.ageMax), w-margin, h-margin+14, 0.5, 0)
	dc.DrawStringAnchored(fmt.Sprintf("%.1f", vmin), margin-4, h-margin, 1, 0)
	dc.DrawStringAnchored(fmt.Sprintf("%.1f", vmax), margin-4, margin, 1, 0.5)
	if src := c.gd.CitedSource(); src != "" {
		dc.DrawStringAnchored(src, w/2, margin/2, 0.5, 0.5)
	}

	if a0, a1, ok := c.span(); ok {
		curves := []struct {
			k    float64
			gray float64
			dash bool
		}{
			{0, 0.1, false},
			{1, 0.4, true}, {-1, 0.4, true},
			{2, 0.65, true}, {-2, 0.65, true},
		}
		for _, cv := range curves {
			dc.SetRGB(cv.gray, cv.gray, cv.gray)
			dc.SetLineWidth(1.5)
			if cv.dash {
				dc.SetDash(6, 4)
			} else {
				dc.SetDash()
			}
			for i := 0; i <= samples; i++ {
				age := a0 + (a1-a0)*float64(i)/samples
				v := c.gd.Mean(c.dim, age) + cv.k*c.gd.StdDev(c.dim, age)
				if i == 0 {
					dc.MoveTo(x(age), y(v))
				} else {
					dc.LineTo(x(age), y(v))
				}
			}
			dc.Stroke()
		}
		dc.SetDash()
	}

	dc.SetRGB(0.85, 0.1, 0.1)
	for _, p := range c.points {
		dc.DrawCircle(x(p.age), y(p.value), 4)
		dc.Fill()
	}
	return dc
}

// Image renders the chart
func (c *Chart) Image() image.Image { return c.render().Image() }

// WritePNG encodes the chart as PNG to w.
func (c *Chart) WritePNG(w io.Writer) error { return c.render().EncodePNG(w) }

// SavePNG writes the chart to path, creating parent directories.
func (c *Chart) SavePNG(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating chart directory: %w", err)
	}
	if err := c.render().SavePNG(path); err != nil {
		return fmt.Errorf("error saving chart: %w", err)
	}
	return nil
}
