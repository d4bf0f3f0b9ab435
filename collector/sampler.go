package collector

import "math/rand/v2"

// Sampler decides whether an incoming event is kept.
type Sampler interface {
	ShouldSample() bool
}

// RateSampler keeps each event independently with probability Rate.
type RateSampler struct {
	Rate float64
	rand func() float64
}

// NewRateSampler builds a sampler drawing from the global math/rand/v2 source.
func NewRateSampler(rate float64) *RateSampler {
	return &RateSampler{Rate: rate, rand: rand.Float64}
}

// ShouldSample draws one value in [0, 1) and keeps the event iff it is below Rate.
func (s *RateSampler) ShouldSample() bool {
	draw := s.rand
	if draw == nil {
		draw = rand.Float64
	}
	return draw() < s.Rate
}
