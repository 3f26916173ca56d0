package dcgan_go

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHyper() Hyper {
	return Hyper{
		ImageShape:           [3]int{1, 8, 8},
		GeneratorFilters:     []int{8, 4},
		GeneratorStrides:     []int{1, 2},
		DiscriminatorFilters: []int{4, 8},
		DiscriminatorStrides: []int{2, 2},
		LatentSize:           4,
		NoiseSize:            8,
		InitialShape:         [2]int{4, 4},
	}
}

func TestHyperValidateOK(t *testing.T) {
	require.NoError(t, validHyper().Validate())
}

func TestHyperValidateStrideFilterMismatch(t *testing.T) {
	h := validHyper()
	h.GeneratorStrides = []int{1}
	assert.Error(t, h.Validate())

	h = validHyper()
	h.DiscriminatorStrides = []int{2}
	assert.Error(t, h.Validate())
}

func TestHyperValidateSpatialMismatch(t *testing.T) {
	h := validHyper()
	// 4x4 initial shape with no upsampling can't reach 8x8
	h.GeneratorStrides = []int{1, 1}
	assert.Error(t, h.Validate())
}

func TestHyperValidateNonPositive(t *testing.T) {
	h := validHyper()
	h.LatentSize = 0
	assert.Error(t, h.Validate())

	h = validHyper()
	h.NoiseSize = -1
	assert.Error(t, h.Validate())

	h = validHyper()
	h.ImageShape = [3]int{0, 8, 8}
	assert.Error(t, h.Validate())
}

func TestLearningDecayStaircase(t *testing.T) {
	l := Learning{RateD: 1.0, RateG: 1.0, Decay: 0.5, StepsPerDecay: 10}
	assert.Equal(t, 1.0, l.At(1.0, 0))
	assert.Equal(t, 1.0, l.At(1.0, 9))
	assert.Equal(t, 0.5, l.At(1.0, 10))
	assert.Equal(t, 0.25, l.At(1.0, 25))
}

func TestLearningNoDecay(t *testing.T) {
	l := NewLearning(2e-4)
	assert.Equal(t, 2e-4, l.At(l.RateD, 1000))
}
