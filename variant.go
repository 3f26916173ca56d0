package dcgan_go

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Variant Loss-formulation strategy distinguishing the GAN flavors. A variant
// controls the two objectives, the bounding of the realism score and the binding
// of its auxiliary graph inputs before each discriminator update; the training
// control flow is shared.
type Variant interface {
	Name() string
	// FinalActivation Score-bounding activation of the discriminator's last layer
	FinalActivation() ActivationFunc
	// DiscriminatorLoss Builds the discriminator objective over one fake+real batch
	DiscriminatorLoss(ctx *LossContext) (*gorgonia.Node, error)
	// GeneratorLoss Builds the generator objective from the discriminator's scores on generated images
	GeneratorLoss(generatedScore *gorgonia.Node) (*gorgonia.Node, error)
	// FeedDiscriminatorStep Binds the variant's auxiliary inputs for one discriminator
	// update; fake and real carry one batch each, already rescaled and noise-injected
	FeedDiscriminatorStep(m *Model, fake, real *tensor.Dense) error
}

// LossContext Everything a variant may need to express its discriminator objective.
// Images and scores hold the fake examples first and the real ones second along the
// batch axis; BatchSize is the per-kind count (the combined batch is twice that).
// MixPlus, MixMinus, PenaltyCoef and PenaltyShift are per-step auxiliary inputs a
// variant can bind through Model.feedPenaltyInputs.
type LossContext struct {
	Images        *gorgonia.Node
	Labels        *gorgonia.Node
	Score         *gorgonia.Node
	MixPlus       *gorgonia.Node
	MixMinus      *gorgonia.Node
	PenaltyCoef   *gorgonia.Node
	PenaltyShift  *gorgonia.Node
	BatchSize     int
	Discriminator *DiscriminatorNet
}

// DCGANVariant Vanilla deep convolutional GAN: sigmoid-bounded scores trained with
// binary cross entropy against smoothed labels; the generator maximizes the
// discriminator's confusion via cross entropy against all-ones targets.
type DCGANVariant struct{}

func (v DCGANVariant) Name() string { return "DCGAN" }

func (v DCGANVariant) FinalActivation() ActivationFunc { return Sigmoid }

func (v DCGANVariant) DiscriminatorLoss(ctx *LossContext) (*gorgonia.Node, error) {
	loss, err := BinaryCrossEntropyLoss(ctx.Labels, ctx.Score)
	if err != nil {
		return nil, errors.Wrap(err, "Can't build discriminator cross entropy")
	}
	return loss, nil
}

func (v DCGANVariant) GeneratorLoss(generatedScore *gorgonia.Node) (*gorgonia.Node, error) {
	ones := gorgonia.NewTensor(generatedScore.Graph(), generatedScore.Dtype(), generatedScore.Dims(), gorgonia.WithShape(generatedScore.Shape()...), gorgonia.WithInit(gorgonia.Ones()))
	loss, err := BinaryCrossEntropyLoss(ones, generatedScore)
	if err != nil {
		return nil, errors.Wrap(err, "Can't build generator cross entropy")
	}
	return loss, nil
}

// FeedDiscriminatorStep The vanilla objective has no auxiliary inputs; the shared
// penalty inputs get zero placeholders so the combined graph can always run.
func (v DCGANVariant) FeedDiscriminatorStep(m *Model, fake, real *tensor.Dense) error {
	return m.feedPenaltyInputs(m.zeroImages, m.zeroImages, m.zeroColumn, m.zeroColumn)
}

// penaltyFiniteStep Central difference step for the gradient-penalty surrogate
const penaltyFiniteStep = 1e-3

// WassersteinVariant WGAN-GP: unbounded critic scores; discriminator loss is the
// score-mean difference plus a gradient penalty keeping the critic's gradient norm
// near 1 on random interpolations between matched real/fake images; generator loss
// is the negated mean critic score.
//
// The penalty needs d/dθ of ||dD(mix)/dmix||, a mixed second derivative the
// symbolic engine cannot build through the convolution trunk. The gradient with
// respect to the interpolated images is therefore evaluated numerically on a
// dedicated machine each step, and the objective carries a central-difference
// surrogate over two extra critic passes at mix ± h*u (u the unit gradient
// direction): mean(coef*(D(mix+h*u) - D(mix-h*u)) + shift). With
// coef = λ(||g||-1)/h and shift = λ((||g||-1)^2 - 2(||g||-1)||g||) the surrogate's
// parameter gradient matches the true penalty's to O(h^2) and its value reports
// the true penalty λ*mean((||g||-1)^2).
type WassersteinVariant struct {
	// GradientPenalty Coefficient of the gradient-penalty term. Zero means the default of 10
	GradientPenalty float64
}

func (v WassersteinVariant) Name() string { return "WGAN" }

func (v WassersteinVariant) FinalActivation() ActivationFunc { return NoActivation }

func (v WassersteinVariant) coefficient() float64 {
	if v.GradientPenalty == 0.0 {
		return 10.0
	}
	return v.GradientPenalty
}

func (v WassersteinVariant) DiscriminatorLoss(ctx *LossContext) (*gorgonia.Node, error) {
	batchSize := ctx.BatchSize
	generatedScore, err := gorgonia.Slice(ctx.Score, gorgonia.S(0, batchSize))
	if err != nil {
		return nil, errors.Wrap(err, "Can't slice scores of generated images")
	}
	realScore, err := gorgonia.Slice(ctx.Score, gorgonia.S(batchSize, 2*batchSize))
	if err != nil {
		return nil, errors.Wrap(err, "Can't slice scores of real images")
	}
	generatedMean, err := gorgonia.Mean(generatedScore)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(D(G(z)))")
	}
	realMean, err := gorgonia.Mean(realScore)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(D(x))")
	}
	loss, err := gorgonia.Sub(generatedMean, realMean)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(D(G(z))) - mean(D(x))")
	}
	penalty, err := v.gradientPenalty(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Can't build gradient penalty")
	}
	return gorgonia.Add(loss, penalty)
}

// gradientPenalty Builds the surrogate term mean(coef*(D(mix+h*u) - D(mix-h*u)) + shift)
// over the two offset interpolation inputs. Coefficients and offsets are computed per
// step in FeedDiscriminatorStep; here they are constants, so only first derivatives of
// the critic appear in backpropagation.
func (v WassersteinVariant) gradientPenalty(ctx *LossContext) (*gorgonia.Node, error) {
	scorePlus, _, err := ctx.Discriminator.Apply(ctx.MixPlus, ctx.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward forward-offset interpolated images")
	}
	scoreMinus, _, err := ctx.Discriminator.Apply(ctx.MixMinus, ctx.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward backward-offset interpolated images")
	}
	delta, err := gorgonia.Sub(scorePlus, scoreMinus)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do D(mix+h*u) - D(mix-h*u)")
	}
	weighted, err := gorgonia.HadamardProd(ctx.PenaltyCoef, delta)
	if err != nil {
		return nil, errors.Wrap(err, "Can't weight critic score differences")
	}
	shifted, err := gorgonia.Add(weighted, ctx.PenaltyShift)
	if err != nil {
		return nil, errors.Wrap(err, "Can't shift weighted score differences")
	}
	penalty, err := gorgonia.Mean(shifted)
	if err != nil {
		return nil, errors.Wrap(err, "Can't reduce penalty over the batch")
	}
	return penalty, nil
}

// FeedDiscriminatorStep Interpolates matched real/fake pairs, evaluates the critic's
// input gradient on the penalty machine and binds the surrogate inputs.
func (v WassersteinVariant) FeedDiscriminatorStep(m *Model, fake, real *tensor.Dense) error {
	eps := m.noise.Interpolants(m.batchSize)
	mix := InterpolateBatches(fake, real, eps)
	grad, err := m.penaltyGradient(mix)
	if err != nil {
		return err
	}
	plus, minus, coef, shift := penaltySurrogate(mix, grad, v.coefficient())
	return m.feedPenaltyInputs(plus, minus, coef, shift)
}

// penaltySurrogate Per-example surrogate inputs from the interpolated batch and the
// critic's gradient at it. A zero gradient leaves the offsets at mix itself; the
// shift input still carries that example's exact penalty λ*(0-1)^2.
func penaltySurrogate(mix, grad *tensor.Dense, lambda float64) (plus, minus, coef, shift *tensor.Dense) {
	shape := mix.Shape()
	batchSize := shape[0]
	features := shape.TotalSize() / batchSize
	mixData := mix.Data().([]float64)
	gradData := grad.Data().([]float64)

	plusData := make([]float64, len(mixData))
	minusData := make([]float64, len(mixData))
	coefData := make([]float64, batchSize)
	shiftData := make([]float64, batchSize)
	for i := 0; i < batchSize; i++ {
		example := gradData[i*features : (i+1)*features]
		norm := floats.Norm(example, 2)
		scale := 0.0
		if norm > 0 {
			scale = penaltyFiniteStep / norm
		}
		for j, g := range example {
			at := i*features + j
			plusData[at] = mixData[at] + scale*g
			minusData[at] = mixData[at] - scale*g
		}
		coefData[i] = lambda * (norm - 1.0) / penaltyFiniteStep
		// corrects the surrogate's value to the exact penalty without touching its gradient
		shiftData[i] = lambda * ((norm-1.0)*(norm-1.0) - 2.0*(norm-1.0)*norm)
	}
	plus = tensor.New(tensor.WithShape(shape.Clone()...), tensor.WithBacking(plusData))
	minus = tensor.New(tensor.WithShape(shape.Clone()...), tensor.WithBacking(minusData))
	coef = tensor.New(tensor.WithShape(batchSize, 1), tensor.WithBacking(coefData))
	shift = tensor.New(tensor.WithShape(batchSize, 1), tensor.WithBacking(shiftData))
	return plus, minus, coef, shift
}

func (v WassersteinVariant) GeneratorLoss(generatedScore *gorgonia.Node) (*gorgonia.Node, error) {
	mean, err := gorgonia.Mean(generatedScore)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(D(G(z)))")
	}
	return gorgonia.Neg(mean)
}
