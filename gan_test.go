package dcgan_go

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func testRealBatch(src *NoiseSource, batchSize int) *tensor.Dense {
	batch := src.Uniform(batchSize, 64)
	return tensor.New(tensor.WithShape(batchSize, 1, 8, 8), tensor.WithBacking(batch.Data().([]float64)))
}

func TestGenerateShapeAndRange(t *testing.T) {
	model, err := NewModel(validHyper(), NewLearning(1e-4), DCGANVariant{}, 2, NewNoiseSource(1))
	require.NoError(t, err)
	defer model.Close()

	generated, err := model.Generate(model.SampleNoise())
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 1, 8, 8}, generated.Shape())
	for _, v := range generated.Data().([]float64) {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestGenerateDeterministicWithFixedSeedAndWeights(t *testing.T) {
	model, err := NewModel(validHyper(), NewLearning(1e-4), DCGANVariant{}, 2, NewNoiseSource(11))
	require.NoError(t, err)
	defer model.Close()

	noise := NewNoiseSource(21).Normal(2, validHyper().NoiseSize)
	first, err := model.Generate(noise)
	require.NoError(t, err)
	second, err := model.Generate(noise)
	require.NoError(t, err)
	require.Equal(t, first.Data().([]float64), second.Data().([]float64))
}

func TestTrainOnBatchStability(t *testing.T) {
	src := NewNoiseSource(17)
	model, err := NewModel(validHyper(), NewLearning(1e-4), DCGANVariant{}, 2, src)
	require.NoError(t, err)
	defer model.Close()

	real := testRealBatch(src, 2)
	for step := 0; step < 10; step++ {
		losses, err := model.TrainOnBatch(real)
		require.NoError(t, err, "step %d failed", step)
		require.Len(t, losses, 2)
		require.Contains(t, losses, "D")
		require.Contains(t, losses, "G")
		assert.False(t, math.IsNaN(losses["D"]) || math.IsInf(losses["D"], 0), "D loss must stay finite, step %d", step)
		assert.False(t, math.IsNaN(losses["G"]) || math.IsInf(losses["G"], 0), "G loss must stay finite, step %d", step)
	}
}

func TestTrainOnBatchSummary(t *testing.T) {
	src := NewNoiseSource(23)
	model, err := NewModel(validHyper(), NewLearning(1e-4), DCGANVariant{}, 2, src)
	require.NoError(t, err)
	defer model.Close()

	losses, summary, err := model.TrainOnBatchSummary(testRealBatch(src, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Step)
	assert.Equal(t, losses["D"], summary.DiscriminatorLoss)
	assert.Equal(t, losses["G"], summary.GeneratorLoss)
	assert.Equal(t, 1e-4, summary.RateD)
	assert.Equal(t, 1e-4, summary.RateG)
}

func TestEncodeShape(t *testing.T) {
	src := NewNoiseSource(29)
	model, err := NewModel(validHyper(), NewLearning(1e-4), DCGANVariant{}, 2, src)
	require.NoError(t, err)
	defer model.Close()

	latents, err := model.Encode(testRealBatch(src, 2))
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, validHyper().LatentSize}, latents.Shape())
}

func TestLearningRateSnapshot(t *testing.T) {
	model, err := NewModel(validHyper(), Learning{RateD: 2e-4, RateG: 1e-4}, DCGANVariant{}, 2, NewNoiseSource(31))
	require.NoError(t, err)
	defer model.Close()

	rates := model.LearningRate()
	require.Len(t, rates, 2)
	assert.Equal(t, 2e-4, rates["D"])
	assert.Equal(t, 1e-4, rates["G"])
}

func TestLearningRateDecays(t *testing.T) {
	src := NewNoiseSource(37)
	learning := Learning{RateD: 1e-4, RateG: 1e-4, Decay: 0.5, StepsPerDecay: 2}
	model, err := NewModel(validHyper(), learning, DCGANVariant{}, 2, src)
	require.NoError(t, err)
	defer model.Close()

	real := testRealBatch(src, 2)
	for step := 0; step < 2; step++ {
		_, err := model.TrainOnBatch(real)
		require.NoError(t, err)
	}
	rates := model.LearningRate()
	assert.Equal(t, 0.5e-4, rates["D"])
	assert.Equal(t, 0.5e-4, rates["G"])
}

// The critic's input gradient lives on its own graph as a first-derivative pass, so
// building the Wasserstein model must not trip the symbolic engine's restriction to
// differentiating against input nodes.
func TestWassersteinModelConstruction(t *testing.T) {
	model, err := NewModel(validHyper(), NewLearning(1e-4), WassersteinVariant{}, 2, NewNoiseSource(47))
	require.NoError(t, err)
	require.NoError(t, model.Close())
}

func TestWassersteinTrainSmoke(t *testing.T) {
	src := NewNoiseSource(41)
	model, err := NewModel(validHyper(), NewLearning(1e-4), WassersteinVariant{}, 2, src)
	require.NoError(t, err)
	defer model.Close()

	real := testRealBatch(src, 2)
	for step := 0; step < 3; step++ {
		losses, err := model.TrainOnBatch(real)
		require.NoError(t, err, "step %d failed", step)
		assert.False(t, math.IsNaN(losses["D"]) || math.IsInf(losses["D"], 0), "critic loss must stay finite, step %d", step)
		assert.False(t, math.IsNaN(losses["G"]) || math.IsInf(losses["G"], 0), "generator loss must stay finite, step %d", step)
	}
}

func TestTrainOnBatchPanicsOnWrongImageShape(t *testing.T) {
	src := NewNoiseSource(43)
	model, err := NewModel(validHyper(), NewLearning(1e-4), DCGANVariant{}, 2, src)
	require.NoError(t, err)
	defer model.Close()

	wrong := tensor.New(tensor.WithShape(2, 1, 4, 4), tensor.WithBacking(make([]float64, 32)))
	assert.Panics(t, func() {
		model.TrainOnBatch(wrong)
	})
}
