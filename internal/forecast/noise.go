package forecast

import "math/rand"

// DefaultNoiseSigma is the noise standard deviation in min-max scaled units.
const DefaultNoiseSigma = 0.002

// NoiseSource yields the additive noise term of each forecast step after the
// first.
type NoiseSource interface {
	Sample() float64
}

// NoiseFactory creates a fresh NoiseSource for one forecast run.
type NoiseFactory func() NoiseSource

// NoNoise disables noise; forecasts become fully deterministic.
type NoNoise struct{}

func (NoNoise) Sample() float64 { return 0 }

// NoNoiseFactory returns NoNoise for every run.
func NoNoiseFactory() NoiseSource { return NoNoise{} }

// Gaussian draws zero-mean normal noise from its own seeded generator.
// Not safe for concurrent use; create one per run.
type Gaussian struct {
	rng   *rand.Rand
	sigma float64
}

// NewGaussian creates a Gaussian source with the given seed and stddev.
func NewGaussian(seed int64, sigma float64) *Gaussian {
	return &Gaussian{
		rng:   rand.New(rand.NewSource(seed)),
		sigma: sigma,
	}
}

func (g *Gaussian) Sample() float64 { return g.rng.NormFloat64() * g.sigma }

// SeededGaussianFactory returns a factory whose runs all replay the same
// sequence, so identical inputs give identical forecasts.
func SeededGaussianFactory(seed int64, sigma float64) NoiseFactory {
	return func() NoiseSource { return NewGaussian(seed, sigma) }
}
