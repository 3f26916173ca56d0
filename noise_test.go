package dcgan_go

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestNoiseSourceSeededDeterminism(t *testing.T) {
	first := NewNoiseSource(7)
	second := NewNoiseSource(7)
	a := first.Normal(2, 3).Data().([]float64)
	b := second.Normal(2, 3).Data().([]float64)
	require.Equal(t, a, b)
}

func TestNormalShape(t *testing.T) {
	src := NewNoiseSource(1)
	sampled := src.Normal(4, 16)
	require.Equal(t, tensor.Shape{4, 16}, sampled.Shape())
}

func TestSmoothLabels(t *testing.T) {
	src := NewNoiseSource(99)
	batchSize := 8
	labels := src.SmoothLabels(batchSize)
	require.Len(t, labels, 2*batchSize)
	for i := 0; i < batchSize; i++ {
		assert.Zero(t, labels[i], "fake label #%d must be exactly zero", i)
	}
	for i := batchSize; i < 2*batchSize; i++ {
		assert.GreaterOrEqual(t, labels[i], 0.8, "real label #%d must be smoothed", i)
		assert.LessOrEqual(t, labels[i], 1.0, "real label #%d must be smoothed", i)
	}
}

func TestInjectNoisePerturbsBatch(t *testing.T) {
	src := NewNoiseSource(5)
	batch := tensor.New(tensor.WithShape(2, 1, 2, 2), tensor.WithBacking(make([]float64, 8)))
	src.InjectNoise(batch, 0.1)
	perturbed := 0
	for _, v := range batch.Data().([]float64) {
		if v != 0.0 {
			perturbed++
		}
	}
	assert.NotZero(t, perturbed)
}

func TestInterpolantsRange(t *testing.T) {
	src := NewNoiseSource(3)
	coefficients := src.Interpolants(6)
	require.Len(t, coefficients, 6)
	for _, v := range coefficients {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}
