package dcgan_go

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func valueNode(g *gorgonia.ExprGraph, name string, shape tensor.Shape, data []float64) *gorgonia.Node {
	backing := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
	return gorgonia.NewTensor(g, gorgonia.Float64, len(shape), gorgonia.WithShape(shape...), gorgonia.WithName(name), gorgonia.WithValue(backing))
}

func runGraph(t *testing.T, g *gorgonia.ExprGraph) {
	t.Helper()
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	require.NoError(t, vm.RunAll())
}

func TestCrossEntropyNonNegative(t *testing.T) {
	g := gorgonia.NewGraph()
	p := valueNode(g, "p", tensor.Shape{2, 3}, []float64{0.2, 0.3, 0.5, 0.1, 0.6, 0.3})
	q := valueNode(g, "q", tensor.Shape{2, 3}, []float64{0.4, 0.3, 0.3, 0.2, 0.5, 0.3})
	loss, err := CrossEntropyLoss(p, q)
	require.NoError(t, err)
	runGraph(t, g)
	// Allow tiny epsilon-induced drift below zero
	require.GreaterOrEqual(t, loss.Value().Data().(float64), -1e-9)
}

func TestEntropyEqualsSelfCrossEntropy(t *testing.T) {
	g := gorgonia.NewGraph()
	data := []float64{0.25, 0.25, 0.25, 0.25}
	p := valueNode(g, "p", tensor.Shape{4}, data)
	entropy, err := EntropyLoss(p)
	require.NoError(t, err)
	crossEntropy, err := CrossEntropyLoss(p, p)
	require.NoError(t, err)
	summed, err := EntropyLoss(p, LossReductionSum)
	require.NoError(t, err)
	runGraph(t, g)
	require.Equal(t, crossEntropy.Value().Data().(float64), entropy.Value().Data().(float64))
	// -mean(p*log(p)) over uniform-4 is log(4)/4; the sum reduction restores log(4)
	require.InDelta(t, math.Log(4.0)/4.0, entropy.Value().Data().(float64), 1e-6)
	require.InDelta(t, math.Log(4.0), summed.Value().Data().(float64), 1e-6)
}

func TestBinaryCrossEntropyKnownValue(t *testing.T) {
	g := gorgonia.NewGraph()
	p := valueNode(g, "p", tensor.Shape{2}, []float64{1.0, 0.0})
	q := valueNode(g, "q", tensor.Shape{2}, []float64{0.8, 0.2})
	loss, err := BinaryCrossEntropyLoss(p, q)
	require.NoError(t, err)
	runGraph(t, g)
	require.InDelta(t, -math.Log(0.8), loss.Value().Data().(float64), 1e-6)
}

func TestSquaredErrorSymmetry(t *testing.T) {
	g := gorgonia.NewGraph()
	p := valueNode(g, "p", tensor.Shape{2, 3}, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
	q := valueNode(g, "q", tensor.Shape{2, 3}, []float64{0.6, 0.5, 0.4, 0.3, 0.2, 0.1})
	forward, err := SquaredErrorLoss(p, q)
	require.NoError(t, err)
	backward, err := SquaredErrorLoss(q, p)
	require.NoError(t, err)
	runGraph(t, g)
	forwardData := forward.Value().Data().([]float64)
	backwardData := backward.Value().Data().([]float64)
	require.Len(t, forwardData, 2)
	for i := range forwardData {
		require.InDelta(t, backwardData[i], forwardData[i], 1e-12)
	}
}

func TestSquaredErrorZeroOnIdentical(t *testing.T) {
	g := gorgonia.NewGraph()
	p := valueNode(g, "p", tensor.Shape{3, 2}, []float64{0.1, 0.9, 0.5, 0.5, 0.3, 0.7})
	loss, err := SquaredErrorLoss(p, p)
	require.NoError(t, err)
	runGraph(t, g)
	for _, v := range loss.Value().Data().([]float64) {
		require.Zero(t, v)
	}
}

func TestReconstructionLossZeroVectorAnyRank(t *testing.T) {
	flatData := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 0.0, 0.5}

	t.Run("2D", func(t *testing.T) {
		g := gorgonia.NewGraph()
		a := valueNode(g, "a", tensor.Shape{2, 6}, flatData)
		b := valueNode(g, "b", tensor.Shape{2, 6}, append([]float64{}, flatData...))
		loss, err := ReconstructionLoss(a, b)
		require.NoError(t, err)
		runGraph(t, g)
		data := loss.Value().Data().([]float64)
		require.Len(t, data, 2)
		for _, v := range data {
			require.Zero(t, v)
		}
	})

	t.Run("4D", func(t *testing.T) {
		g := gorgonia.NewGraph()
		a := valueNode(g, "a", tensor.Shape{2, 1, 2, 3}, flatData)
		b := valueNode(g, "b", tensor.Shape{2, 1, 2, 3}, append([]float64{}, flatData...))
		loss, err := ReconstructionLoss(a, b)
		require.NoError(t, err)
		runGraph(t, g)
		data := loss.Value().Data().([]float64)
		require.Len(t, data, 2)
		for _, v := range data {
			require.Zero(t, v)
		}
	})
}

func TestMutualInformationSelfIsZero(t *testing.T) {
	g := gorgonia.NewGraph()
	x := valueNode(g, "x", tensor.Shape{2, 2}, []float64{0.4, 0.6, 0.7, 0.3})
	loss, err := MutualInformationLoss(x, x)
	require.NoError(t, err)
	runGraph(t, g)
	// H(x, x) - H(x) = 0
	require.InDelta(t, 0.0, loss.Value().Data().(float64), 1e-9)
}

func TestMSEAndL1KnownValues(t *testing.T) {
	g := gorgonia.NewGraph()
	a := valueNode(g, "a", tensor.Shape{2}, []float64{1.0, 2.0})
	b := valueNode(g, "b", tensor.Shape{2}, []float64{3.0, 5.0})
	mse, err := MSELoss(a, b)
	require.NoError(t, err)
	l1, err := L1Loss(a, b)
	require.NoError(t, err)
	mseSum, err := MSELoss(a, b, LossReductionSum)
	require.NoError(t, err)
	runGraph(t, g)
	require.InDelta(t, 6.5, mse.Value().Data().(float64), 1e-12)
	require.InDelta(t, 2.5, l1.Value().Data().(float64), 1e-12)
	require.InDelta(t, 13.0, mseSum.Value().Data().(float64), 1e-12)
}
