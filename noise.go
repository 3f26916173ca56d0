package dcgan_go

import (
	"time"

	rng "github.com/leesper/go_rng"
	"gorgonia.org/tensor"
)

// NoiseSource Every source of randomness used during training: latent noise sampling,
// input-noise injection, label smoothing and gradient-penalty interpolation coefficients.
// It is injected into the model at construction so runs can be made reproducible by seeding.
type NoiseSource struct {
	gauss   *rng.GaussianGenerator
	uniform *rng.UniformGenerator
}

// NewNoiseSource Constructor for NoiseSource with explicit seed
func NewNoiseSource(seed int64) *NoiseSource {
	return &NoiseSource{
		gauss:   rng.NewGaussianGenerator(seed),
		uniform: rng.NewUniformGenerator(seed),
	}
}

// NewUnseededNoiseSource Constructor for NoiseSource seeded from the wall clock.
// Runs built on it are not reproducible.
func NewUnseededNoiseSource() *NoiseSource {
	return NewNoiseSource(time.Now().UnixNano())
}

// Normal Returns reference to tensor.Dense of shape (batchSize, n) filled with standard normal float64 values
func (src *NoiseSource) Normal(batchSize, n int) *tensor.Dense {
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = src.gauss.Gaussian(0.0, 1.0)
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// Uniform Returns reference to tensor.Dense of shape (batchSize, n) filled with uniform float64 values in [0.0, 1.0)
func (src *NoiseSource) Uniform(batchSize, n int) *tensor.Dense {
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = src.uniform.Float64()
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// SmoothLabels Builds the per-example targets for one discriminator step over a
// fake+real batch: first batchSize entries are exactly 0 (fake), last batchSize
// entries are uniform in [0.8, 1.0] (smoothed real).
// See ref. github.com/soumith/ganhacks#6-use-soft-and-noisy-labels
func (src *NoiseSource) SmoothLabels(batchSize int) []float64 {
	labels := make([]float64, 2*batchSize)
	for i := batchSize; i < 2*batchSize; i++ {
		labels[i] = src.uniform.Float64Range(0.8, 1.0)
	}
	return labels
}

// InjectNoise Adds zero-mean Gaussian noise with provided sigma to every element in place.
// See ref. github.com/soumith/ganhacks#13-add-noise-to-inputs-decay-over-time
func (src *NoiseSource) InjectNoise(batch *tensor.Dense, sigma float64) {
	data := batch.Data().([]float64)
	for i := range data {
		data[i] += src.gauss.Gaussian(0.0, sigma)
	}
}

// Interpolants Returns per-example interpolation coefficients uniform in [0.0, 1.0)
// for the gradient penalty
func (src *NoiseSource) Interpolants(batchSize int) []float64 {
	data := make([]float64, batchSize)
	for i := range data {
		data[i] = src.uniform.Float64()
	}
	return data
}
