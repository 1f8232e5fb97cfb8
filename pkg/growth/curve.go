package growth

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// Sample is one tabulated point of a growth curve
type Sample struct {
	Age  float64
	Mean float64
	SD   float64
}

// Curve gives the mean and standard deviation of one measured dimension as a
// function of age. Values between samples are linearly interpolated; ages
// outside the sampled span take the value of the nearest end sample.
type Curve struct {
	samples []Sample
	mean    interp.PiecewiseLinear
	sd      interp.PiecewiseLinear
}

// NewCurve fits a curve through samples. Ages must be strictly increasing and
// every standard deviation must be positive.
func NewCurve(samples []Sample) (*Curve, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: curve has no samples", ErrInvalid)
	}
	ages := make([]float64, len(samples))
	means := make([]float64, len(samples))
	sds := make([]float64, len(samples))
	for i, s := range samples {
		if i > 0 && s.Age <= samples[i-1].Age {
			return nil, fmt.Errorf("%w: sample ages must be strictly increasing (%g after %g)", ErrInvalid, s.Age, samples[i-1].Age)
		}
		if !(s.SD > 0) {
			return nil, fmt.Errorf("%w: standard deviation at age %g must be positive", ErrInvalid, s.Age)
		}
		ages[i], means[i], sds[i] = s.Age, s.Mean, s.SD
	}

	c := &Curve{samples: append([]Sample(nil), samples...)}
	if len(samples) > 1 {
		if err := c.mean.Fit(ages, means); err != nil {
			return nil, fmt.Errorf("%w: fitting mean: %v", ErrInvalid, err)
		}
		if err := c.sd.Fit(ages, sds); err != nil {
			return nil, fmt.Errorf("%w: fitting standard deviation: %v", ErrInvalid, err)
		}
	}
	return c, nil
}

// Mean returns the expected value at age
func (c *Curve) Mean(age float64) float64 {
	if len(c.samples) == 1 {
		return c.samples[0].Mean
	}
	return c.mean.Predict(age)
}

// SD returns the standard deviation at age
func (c *Curve) SD(age float64) float64 {
	if len(c.samples) == 1 {
		return c.samples[0].SD
	}
	return c.sd.Predict(age)
}

// Samples returns a copy of the tabulated points
func (c *Curve) Samples() []Sample {
	return append([]Sample(nil), c.samples...)
}

// unionAges returns the sorted distinct sample ages of both curves.
func unionAges(a, b *Curve) []float64 {
	seen := make(map[float64]bool)
	var ages []float64
	for _, c := range []*Curve{a, b} {
		for _, s := range c.samples {
			if !seen[s.Age] {
				seen[s.Age] = true
				ages = append(ages, s.Age)
			}
		}
	}
	sort.Float64s(ages)
	return ages
}
