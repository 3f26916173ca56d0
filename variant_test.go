package dcgan_go

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// The DCGAN score is sigmoid-bounded to [0, 1]; the Wasserstein critic's is not.
func TestFinalActivationBounding(t *testing.T) {
	g := gorgonia.NewGraph()
	raw := valueNode(g, "raw", tensor.Shape{2}, []float64{3.0, -4.0})

	bounded, err := DCGANVariant{}.FinalActivation()(raw)
	require.NoError(t, err)
	unbounded, err := WassersteinVariant{}.FinalActivation()(raw)
	require.NoError(t, err)
	runGraph(t, g)

	for _, v := range bounded.Value().Data().([]float64) {
		assert.Greater(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
	unboundedData := unbounded.Value().Data().([]float64)
	assert.Equal(t, 3.0, unboundedData[0])
	assert.Equal(t, -4.0, unboundedData[1])
}

func TestWassersteinGeneratorLossIsNegatedMean(t *testing.T) {
	g := gorgonia.NewGraph()
	scores := valueNode(g, "scores", tensor.Shape{2, 1}, []float64{1.0, 3.0})
	loss, err := WassersteinVariant{}.GeneratorLoss(scores)
	require.NoError(t, err)
	runGraph(t, g)
	require.InDelta(t, -2.0, loss.Value().Data().(float64), 1e-12)
}

func TestDCGANGeneratorLossAgainstOnes(t *testing.T) {
	g := gorgonia.NewGraph()
	scores := valueNode(g, "scores", tensor.Shape{2, 1}, []float64{0.5, 0.5})
	loss, err := DCGANVariant{}.GeneratorLoss(scores)
	require.NoError(t, err)
	runGraph(t, g)
	// BCE(1, 0.5) = -log(0.5)
	require.InDelta(t, -math.Log(0.5), loss.Value().Data().(float64), 1e-6)
}

func TestPenaltySurrogateInputs(t *testing.T) {
	mix := tensor.New(tensor.WithShape(2, 1, 1, 2), tensor.WithBacking([]float64{0.5, -0.5, 0.25, 0.75}))
	grad := tensor.New(tensor.WithShape(2, 1, 1, 2), tensor.WithBacking([]float64{3.0, 4.0, 0.0, 0.0}))
	lambda := 10.0

	plus, minus, coef, shift := penaltySurrogate(mix, grad, lambda)

	// first example: gradient norm 5, offsets along the unit direction (0.6, 0.8)
	plusData := plus.Data().([]float64)
	minusData := minus.Data().([]float64)
	require.InDelta(t, 0.5+penaltyFiniteStep*0.6, plusData[0], 1e-12)
	require.InDelta(t, -0.5+penaltyFiniteStep*0.8, plusData[1], 1e-12)
	require.InDelta(t, 0.5-penaltyFiniteStep*0.6, minusData[0], 1e-12)
	require.InDelta(t, -0.5-penaltyFiniteStep*0.8, minusData[1], 1e-12)
	coefData := coef.Data().([]float64)
	shiftData := shift.Data().([]float64)
	require.InDelta(t, lambda*4.0/penaltyFiniteStep, coefData[0], 1e-9)
	require.InDelta(t, lambda*(16.0-40.0), shiftData[0], 1e-9)
	// coef*(2h*norm) + shift reproduces the exact penalty λ*(norm-1)^2
	require.InDelta(t, lambda*16.0, coefData[0]*2.0*penaltyFiniteStep*5.0+shiftData[0], 1e-9)

	// second example: zero gradient leaves the offsets at mix, penalty value is λ
	require.Equal(t, 0.25, plusData[2])
	require.Equal(t, 0.75, plusData[3])
	require.Equal(t, 0.25, minusData[2])
	require.InDelta(t, lambda, shiftData[1], 1e-12)
}

func TestVariantNames(t *testing.T) {
	assert.Equal(t, "DCGAN", DCGANVariant{}.Name())
	assert.Equal(t, "WGAN", WassersteinVariant{}.Name())
}
