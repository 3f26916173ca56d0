package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// Epsilon Additive stability constant guarding log() against zero and slightly negative probabilities
const Epsilon = 1e-10

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

func reduce(a *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(a)
	case LossReductionMean:
		return gorgonia.Mean(a)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// logStable Returns log(a + Epsilon)
func logStable(a *gorgonia.Node) (*gorgonia.Node, error) {
	shifted, err := gorgonia.Add(a, gorgonia.NewConstant(Epsilon))
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A+eps)")
	}
	return gorgonia.Log(shifted)
}

// CrossEntropyLoss H(p, q) = -mean(p .* log(q + eps))
// See ref. https://en.wikipedia.org/wiki/Cross_entropy
// Default reduction is 'mean'
func CrossEntropyLoss(p, q *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	log, err := logStable(q)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(Q+eps)")
	}
	hprod, err := gorgonia.HadamardProd(p, log)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (P.*x)")
	}
	reduced, err := reduce(hprod, reduction...)
	if err != nil {
		return nil, err
	}
	return gorgonia.Neg(reduced)
}

// EntropyLoss H(p) = H(p, p)
func EntropyLoss(p *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	return CrossEntropyLoss(p, p, reduction...)
}

// BinaryCrossEntropyLoss -mean(p .* log(q + eps) + (1-p) .* log(1 - q + eps))
// p is the target in [0, 1], q is the predicted probability.
// Default reduction is 'mean'
func BinaryCrossEntropyLoss(p, q *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	one := gorgonia.NewConstant(1.0)
	logMain, err := logStable(q)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(Q+eps)")
	}
	hprodMain, err := gorgonia.HadamardProd(p, logMain)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (P.*x)")
	}
	// Here comes the complementary part
	oneSubP, err := gorgonia.Sub(one, p)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-P)")
	}
	oneSubQ, err := gorgonia.Sub(one, q)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-Q)")
	}
	logBin, err := logStable(oneSubQ)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(1-Q+eps)")
	}
	hprodBin, err := gorgonia.HadamardProd(oneSubP, logBin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*y)")
	}
	pointwise, err := gorgonia.Add(hprodMain, hprodBin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	reduced, err := reduce(pointwise, reduction...)
	if err != nil {
		return nil, err
	}
	return gorgonia.Neg(reduced)
}

// SquaredErrorLoss Per-example sum of squared differences: reduces every axis but the batch axis.
// Returns a vector node of batch length (scalar for 1-D inputs).
func SquaredErrorLoss(p, q *gorgonia.Node) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(p, q)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (P-Q)")
	}
	sqr, err := gorgonia.Square(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	if sqr.Dims() < 2 {
		return gorgonia.Sum(sqr)
	}
	along := make([]int, 0, sqr.Dims()-1)
	for axis := 1; axis < sqr.Dims(); axis++ {
		along = append(along, axis)
	}
	return gorgonia.Sum(sqr, along...)
}

// ReconstructionLoss Squared error over image batches of any rank: inputs are flattened
// to (batch, features) first, so 2-D and 4-D batches reduce identically.
func ReconstructionLoss(original, reconstructed *gorgonia.Node) (*gorgonia.Node, error) {
	if original.Dims() > 2 {
		batch := original.Shape()[0]
		features := original.Shape().TotalSize() / batch
		var err error
		original, err = gorgonia.Reshape(original, []int{batch, features})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten original images")
		}
		reconstructed, err = gorgonia.Reshape(reconstructed, []int{batch, features})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten reconstructed images")
		}
	}
	return SquaredErrorLoss(original, reconstructed)
}

// MutualInformationLoss I(x;y) = H(x) - H(x|y), where the cross entropy between x and x|y
// plays the role of H(x|y). Mutual information is something to maximize, so the returned
// quantity is mean(H(x, x|y) - H(x)): its negation, suitable for gradient descent.
func MutualInformationLoss(x, xGivenY *gorgonia.Node) (*gorgonia.Node, error) {
	hX, err := EntropyLoss(x)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do H(X)")
	}
	hXGivenY, err := CrossEntropyLoss(x, xGivenY)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do H(X, X|Y)")
	}
	return gorgonia.Sub(hXGivenY, hX)
}

// MSELoss See ref. https://en.wikipedia.org/wiki/Mean_squared_error
// Default reduction is 'mean'
func MSELoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	sqr, err := gorgonia.Square(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	return reduce(sqr, reduction...)
}

// L1Loss See ref. https://en.wikipedia.org/wiki/Least_absolute_deviations
// Default reduction is 'mean'
func L1Loss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	abs, err := gorgonia.Abs(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do |x|")
	}
	return reduce(abs, reduction...)
}
