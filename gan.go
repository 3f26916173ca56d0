package dcgan_go

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Model Adversarial model tying a generator and a discriminator/encoder together
// under a variant-provided loss formulation.
//
// Four expression graphs are maintained:
// ganGraph - generator feedforward plus a weight-copied discriminator on top of it; the generator trains here
// discriminatorGraph - discriminator feedforward over a combined fake+real batch; the discriminator trains here
// penaltyGraph - weight-copied discriminator over an interpolated batch, for numeric input gradients
// encoderGraph - weight-copied trunk + latent branch only, for Encode
//
// The copies are refreshed from the live discriminator before every use, so the
// generator step and Encode always see the discriminator's current parameters.
// Batch size is fixed at construction: expression graphs have static shapes.
type Model struct {
	hyper     Hyper
	learning  Learning
	variant   Variant
	batchSize int
	noise     *NoiseSource

	ganGraph         *gorgonia.ExprGraph
	generator        *GeneratorNet
	generatorInput   *gorgonia.Node
	generatorOutVal  gorgonia.Value
	generatorMachine gorgonia.VM
	ganDiscriminator *DiscriminatorNet
	generatorLossVal gorgonia.Value
	ganMachine       gorgonia.VM
	generatorSolver  gorgonia.Solver

	discriminatorGraph   *gorgonia.ExprGraph
	discriminator        *DiscriminatorNet
	discriminatorInput   *gorgonia.Node
	labelsInput          *gorgonia.Node
	mixPlusInput         *gorgonia.Node
	mixMinusInput        *gorgonia.Node
	penaltyCoefInput     *gorgonia.Node
	penaltyShiftInput    *gorgonia.Node
	zeroImages           *tensor.Dense
	zeroColumn           *tensor.Dense
	discriminatorLossVal gorgonia.Value
	discriminatorMachine gorgonia.VM
	discriminatorSolver  gorgonia.Solver

	penaltyGraph         *gorgonia.ExprGraph
	penaltyDiscriminator *DiscriminatorNet
	penaltyInput         *gorgonia.Node
	penaltyGradVal       gorgonia.Value
	penaltyMachine       gorgonia.VM

	encoderGraph   *gorgonia.ExprGraph
	encoder        *DiscriminatorNet
	encoderInput   *gorgonia.Node
	encoderLatent  gorgonia.Value
	encoderMachine gorgonia.VM

	step  int
	rateD float64
	rateG float64
}

// StepSummary Auxiliary monitoring data for one training step
type StepSummary struct {
	Step              int
	DiscriminatorLoss float64
	GeneratorLoss     float64
	RateD             float64
	RateG             float64
}

// NewModel Constructor for Model.
//
// hyper - network hyperparameters (validated here)
// learning - per-network learning schedule
// variant - loss formulation (DCGANVariant or WassersteinVariant)
// batchSize - fixed batch size for training, generation and encoding
// noise - source of randomness; nil falls back to an unseeded (wall-clock) source
//
func NewModel(hyper Hyper, learning Learning, variant Variant, batchSize int, noise *NoiseSource) (*Model, error) {
	if err := hyper.Validate(); err != nil {
		return nil, errors.Wrap(err, "[Model]")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("Batch size must be positive, got %d", batchSize)
	}
	if variant == nil {
		return nil, fmt.Errorf("Model needs a GAN variant")
	}
	if noise == nil {
		noise = NewUnseededNoiseSource()
	}
	m := &Model{
		hyper:     hyper,
		learning:  learning,
		variant:   variant,
		batchSize: batchSize,
		noise:     noise,
		rateD:     learning.RateD,
		rateG:     learning.RateG,
	}
	if err := m.defineDiscriminatorGraph(); err != nil {
		return nil, err
	}
	if err := m.defineGANGraph(); err != nil {
		return nil, err
	}
	if err := m.defineEncoderGraph(); err != nil {
		return nil, err
	}
	if err := m.definePenaltyGraph(); err != nil {
		return nil, err
	}
	m.discriminatorSolver = newAdam(m.rateD, 2*batchSize)
	m.generatorSolver = newAdam(m.rateG, batchSize)
	return m, nil
}

// Adam with beta1 = 0.5 stabilizes adversarial training
func newAdam(rate float64, batchSize int) gorgonia.Solver {
	return gorgonia.NewAdamSolver(
		gorgonia.WithLearnRate(rate),
		gorgonia.WithBeta1(0.5),
		gorgonia.WithBatchSize(float64(batchSize)),
	)
}

func (m *Model) defineDiscriminatorGraph() error {
	m.discriminatorGraph = gorgonia.NewGraph()
	combined := 2 * m.batchSize
	m.discriminatorInput = gorgonia.NewTensor(m.discriminatorGraph, gorgonia.Float64, 4, gorgonia.WithShape(combined, m.hyper.ImageShape[0], m.hyper.ImageShape[1], m.hyper.ImageShape[2]), gorgonia.WithName("discriminator_input"))
	m.labelsInput = gorgonia.NewMatrix(m.discriminatorGraph, gorgonia.Float64, gorgonia.WithShape(combined, 1), gorgonia.WithName("labels"))
	m.mixPlusInput = gorgonia.NewTensor(m.discriminatorGraph, gorgonia.Float64, 4, gorgonia.WithShape(m.batchSize, m.hyper.ImageShape[0], m.hyper.ImageShape[1], m.hyper.ImageShape[2]), gorgonia.WithName("gp_mix_plus"))
	m.mixMinusInput = gorgonia.NewTensor(m.discriminatorGraph, gorgonia.Float64, 4, gorgonia.WithShape(m.batchSize, m.hyper.ImageShape[0], m.hyper.ImageShape[1], m.hyper.ImageShape[2]), gorgonia.WithName("gp_mix_minus"))
	m.penaltyCoefInput = gorgonia.NewMatrix(m.discriminatorGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, 1), gorgonia.WithName("gp_coef"))
	m.penaltyShiftInput = gorgonia.NewMatrix(m.discriminatorGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, 1), gorgonia.WithName("gp_shift"))
	m.zeroImages = tensor.New(tensor.WithShape(m.batchSize, m.hyper.ImageShape[0], m.hyper.ImageShape[1], m.hyper.ImageShape[2]), tensor.WithBacking(make([]float64, m.batchSize*m.hyper.ImageShape[0]*m.hyper.ImageShape[1]*m.hyper.ImageShape[2])))
	m.zeroColumn = tensor.New(tensor.WithShape(m.batchSize, 1), tensor.WithBacking(make([]float64, m.batchSize)))

	var err error
	m.discriminator, err = Discriminator(m.discriminatorGraph, m.hyper, m.variant.FinalActivation(), "discriminator")
	if err != nil {
		return err
	}
	if err = m.discriminator.Fwd(m.discriminatorInput, combined); err != nil {
		return err
	}
	loss, err := m.variant.DiscriminatorLoss(&LossContext{
		Images:        m.discriminatorInput,
		Labels:        m.labelsInput,
		Score:         m.discriminator.Out(),
		MixPlus:       m.mixPlusInput,
		MixMinus:      m.mixMinusInput,
		PenaltyCoef:   m.penaltyCoefInput,
		PenaltyShift:  m.penaltyShiftInput,
		BatchSize:     m.batchSize,
		Discriminator: m.discriminator,
	})
	if err != nil {
		return errors.Wrap(err, "Can't build discriminator loss")
	}
	gorgonia.WithName("discriminator_loss")(loss)
	gorgonia.Read(loss, &m.discriminatorLossVal)
	if _, err = gorgonia.Grad(loss, m.discriminator.Learnables()...); err != nil {
		return errors.Wrap(err, "Can't build discriminator gradients")
	}
	m.discriminatorMachine = gorgonia.NewTapeMachine(m.discriminatorGraph, gorgonia.BindDualValues(m.discriminator.Learnables()...))
	return nil
}

func (m *Model) defineGANGraph() error {
	m.ganGraph = gorgonia.NewGraph()
	m.generatorInput = gorgonia.NewMatrix(m.ganGraph, gorgonia.Float64, gorgonia.WithShape(m.batchSize, m.hyper.NoiseSize), gorgonia.WithName("generator_input"))

	var err error
	m.generator, err = Generator(m.ganGraph, m.hyper)
	if err != nil {
		return err
	}
	if err = m.generator.Fwd(m.generatorInput, m.batchSize); err != nil {
		return err
	}
	gorgonia.Read(m.generator.Out(), &m.generatorOutVal)
	// Machine compiled before the discriminator copy is appended runs the generator alone
	m.generatorMachine = gorgonia.NewTapeMachine(m.ganGraph)

	m.ganDiscriminator = m.discriminator.CloneTo(m.ganGraph, "_gan")
	score, _, err := m.ganDiscriminator.Apply(m.generator.Out(), m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward generated images through discriminator copy")
	}
	loss, err := m.variant.GeneratorLoss(score)
	if err != nil {
		return errors.Wrap(err, "Can't build generator loss")
	}
	gorgonia.WithName("generator_loss")(loss)
	gorgonia.Read(loss, &m.generatorLossVal)
	if _, err = gorgonia.Grad(loss, m.generator.Learnables()...); err != nil {
		return errors.Wrap(err, "Can't build generator gradients")
	}
	m.ganMachine = gorgonia.NewTapeMachine(m.ganGraph, gorgonia.BindDualValues(m.generator.Learnables()...))
	return nil
}

func (m *Model) defineEncoderGraph() error {
	m.encoderGraph = gorgonia.NewGraph()
	m.encoderInput = gorgonia.NewTensor(m.encoderGraph, gorgonia.Float64, 4, gorgonia.WithShape(m.batchSize, m.hyper.ImageShape[0], m.hyper.ImageShape[1], m.hyper.ImageShape[2]), gorgonia.WithName("encoder_input"))
	m.encoder = m.discriminator.CloneTo(m.encoderGraph, "_encoder")
	_, latent, err := m.encoder.Apply(m.encoderInput, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward encoder")
	}
	gorgonia.WithName("encoder_latent")(latent)
	gorgonia.Read(latent, &m.encoderLatent)
	m.encoderMachine = gorgonia.NewTapeMachine(m.encoderGraph)
	return nil
}

// definePenaltyGraph The critic's gradient with respect to its input is evaluated on
// its own graph over a weight-synced copy, where the interpolated batch is an input
// node the symbolic engine can differentiate against.
func (m *Model) definePenaltyGraph() error {
	m.penaltyGraph = gorgonia.NewGraph()
	m.penaltyInput = gorgonia.NewTensor(m.penaltyGraph, gorgonia.Float64, 4, gorgonia.WithShape(m.batchSize, m.hyper.ImageShape[0], m.hyper.ImageShape[1], m.hyper.ImageShape[2]), gorgonia.WithName("penalty_input"))
	m.penaltyDiscriminator = m.discriminator.CloneTo(m.penaltyGraph, "_penalty")
	score, _, err := m.penaltyDiscriminator.Apply(m.penaltyInput, m.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward interpolated images")
	}
	total, err := gorgonia.Sum(score)
	if err != nil {
		return errors.Wrap(err, "Can't reduce critic scores over interpolated images")
	}
	grads, err := gorgonia.Grad(total, m.penaltyInput)
	if err != nil {
		return errors.Wrap(err, "Can't take gradient of score with respect to interpolated images")
	}
	gorgonia.Read(grads[0], &m.penaltyGradVal)
	m.penaltyMachine = gorgonia.NewTapeMachine(m.penaltyGraph)
	return nil
}

// penaltyGradient Evaluates the critic's input gradient at the interpolated batch,
// against the discriminator's current parameters
func (m *Model) penaltyGradient(mix *tensor.Dense) (*tensor.Dense, error) {
	if err := m.discriminator.SyncClone(m.penaltyDiscriminator); err != nil {
		return nil, errors.Wrap(err, "Can't refresh penalty critic weights")
	}
	if err := gorgonia.Let(m.penaltyInput, mix); err != nil {
		return nil, errors.Wrap(err, "Can't bind interpolated images to penalty input")
	}
	if err := m.penaltyMachine.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run penalty machine")
	}
	m.penaltyMachine.Reset()
	return m.penaltyGradVal.(*tensor.Dense).Clone().(*tensor.Dense), nil
}

// feedPenaltyInputs Binds the shared per-step penalty inputs on the discriminator graph
func (m *Model) feedPenaltyInputs(plus, minus, coef, shift *tensor.Dense) error {
	if err := gorgonia.Let(m.mixPlusInput, plus); err != nil {
		return errors.Wrap(err, "Can't bind forward-offset interpolated images")
	}
	if err := gorgonia.Let(m.mixMinusInput, minus); err != nil {
		return errors.Wrap(err, "Can't bind backward-offset interpolated images")
	}
	if err := gorgonia.Let(m.penaltyCoefInput, coef); err != nil {
		return errors.Wrap(err, "Can't bind penalty coefficients")
	}
	if err := gorgonia.Let(m.penaltyShiftInput, shift); err != nil {
		return errors.Wrap(err, "Can't bind penalty shifts")
	}
	return nil
}

// BatchSize Returns the fixed batch size the model was built with
func (m *Model) BatchSize() int {
	return m.batchSize
}

// Variant Returns the loss formulation the model was built with
func (m *Model) Variant() Variant {
	return m.variant
}

// LearningRate Read-only snapshot of the current per-network learning rates
func (m *Model) LearningRate() map[string]float64 {
	return map[string]float64{"D": m.rateD, "G": m.rateG}
}

// SampleNoise Samples one batch of latent noise sized for the generator's input
func (m *Model) SampleNoise() *tensor.Dense {
	return m.noise.Normal(m.batchSize, m.hyper.NoiseSize)
}

// Generate Maps latent samples of shape (batchSize, NoiseSize) to images in [0, 1]
func (m *Model) Generate(latentSamples *tensor.Dense) (*tensor.Dense, error) {
	if err := gorgonia.Let(m.generatorInput, latentSamples); err != nil {
		return nil, errors.Wrap(err, "Can't bind latent samples to generator input")
	}
	if err := m.generatorMachine.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run generator machine")
	}
	m.generatorMachine.Reset()
	generated := m.generatorOutVal.(*tensor.Dense).Clone().(*tensor.Dense)
	// Go from [-1, +1] scale back to [0, 1]
	return RescaleToUnit(generated), nil
}

// Encode Maps images of shape (batchSize, channels, height, width) with values in [0, 1]
// to latent vectors of shape (batchSize, LatentSize)
func (m *Model) Encode(images *tensor.Dense) (*tensor.Dense, error) {
	if err := m.discriminator.SyncClone(m.encoder); err != nil {
		return nil, errors.Wrap(err, "Can't refresh encoder weights")
	}
	if err := gorgonia.Let(m.encoderInput, RescaleToSigned(images)); err != nil {
		return nil, errors.Wrap(err, "Can't bind images to encoder input")
	}
	if err := m.encoderMachine.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run encoder machine")
	}
	m.encoderMachine.Reset()
	return m.encoderLatent.(*tensor.Dense).Clone().(*tensor.Dense), nil
}

// TrainOnBatch One alternating optimization step over a batch of real images in [0, 1]:
// the discriminator updates on a noisy fake+real batch against smoothed labels, then the
// generator updates on freshly sampled noise with the discriminator held fixed. Returns
// the scalar losses keyed by network ("D", "G").
func (m *Model) TrainOnBatch(realImages *tensor.Dense) (map[string]float64, error) {
	losses, _, err := m.trainStep(realImages)
	return losses, err
}

// TrainOnBatchSummary Same as TrainOnBatch, but additionally returns auxiliary monitoring data
func (m *Model) TrainOnBatchSummary(realImages *tensor.Dense) (map[string]float64, StepSummary, error) {
	return m.trainStep(realImages)
}

func (m *Model) trainStep(realImages *tensor.Dense) (map[string]float64, StepSummary, error) {
	real := RescaleToSigned(realImages)

	// Generate fakes from fresh noise
	if err := gorgonia.Let(m.generatorInput, m.SampleNoise()); err != nil {
		return nil, StepSummary{}, errors.Wrap(err, "Can't bind noise to generator input")
	}
	if err := m.generatorMachine.RunAll(); err != nil {
		return nil, StepSummary{}, errors.Wrap(err, "Can't run generator machine")
	}
	m.generatorMachine.Reset()
	fake := m.generatorOutVal.(*tensor.Dense).Clone().(*tensor.Dense)
	assertBatchesAlike(fake.Shape(), real.Shape())

	// Input-noise regularization on both halves, then one combined batch
	m.noise.InjectNoise(fake, 0.1)
	m.noise.InjectNoise(real, 0.1)
	combined, err := ConcatBatches(fake, real)
	if err != nil {
		return nil, StepSummary{}, err
	}
	labels := tensor.New(tensor.WithShape(2*m.batchSize, 1), tensor.WithBacking(m.noise.SmoothLabels(m.batchSize)))

	// Discriminator step
	if err = gorgonia.Let(m.discriminatorInput, combined); err != nil {
		return nil, StepSummary{}, errors.Wrap(err, "Can't bind combined batch to discriminator input")
	}
	if err = gorgonia.Let(m.labelsInput, labels); err != nil {
		return nil, StepSummary{}, errors.Wrap(err, "Can't bind labels to discriminator input")
	}
	if err = m.variant.FeedDiscriminatorStep(m, fake, real); err != nil {
		return nil, StepSummary{}, err
	}
	if err = m.discriminatorMachine.RunAll(); err != nil {
		return nil, StepSummary{}, errors.Wrap(err, "Can't run discriminator machine")
	}
	if err = m.discriminatorSolver.Step(gorgonia.NodesToValueGrads(m.discriminator.Learnables())); err != nil {
		return nil, StepSummary{}, errors.Wrap(err, "Can't apply discriminator solver step")
	}
	m.discriminatorMachine.Reset()
	discriminatorLoss := scalarOf(m.discriminatorLossVal)

	// Generator step on resampled noise, against the just-updated discriminator held fixed
	if err = m.discriminator.SyncClone(m.ganDiscriminator); err != nil {
		return nil, StepSummary{}, errors.Wrap(err, "Can't refresh discriminator copy")
	}
	if err = gorgonia.Let(m.generatorInput, m.SampleNoise()); err != nil {
		return nil, StepSummary{}, errors.Wrap(err, "Can't bind noise to generator input")
	}
	if err = m.ganMachine.RunAll(); err != nil {
		return nil, StepSummary{}, errors.Wrap(err, "Can't run GAN machine")
	}
	if err = m.generatorSolver.Step(gorgonia.NodesToValueGrads(m.generator.Learnables())); err != nil {
		return nil, StepSummary{}, errors.Wrap(err, "Can't apply generator solver step")
	}
	m.ganMachine.Reset()
	generatorLoss := scalarOf(m.generatorLossVal)

	m.step++
	m.decayRates()

	losses := map[string]float64{"D": discriminatorLoss, "G": generatorLoss}
	summary := StepSummary{
		Step:              m.step,
		DiscriminatorLoss: discriminatorLoss,
		GeneratorLoss:     generatorLoss,
		RateD:             m.rateD,
		RateG:             m.rateG,
	}
	return losses, summary, nil
}

// decayRates Applies the exponential staircase schedule. Solvers carry their rate
// internally, so a new staircase level means a rebuilt solver.
func (m *Model) decayRates() {
	if rate := m.learning.At(m.learning.RateD, m.step); rate != m.rateD {
		m.rateD = rate
		m.discriminatorSolver = newAdam(rate, 2*m.batchSize)
	}
	if rate := m.learning.At(m.learning.RateG, m.step); rate != m.rateG {
		m.rateG = rate
		m.generatorSolver = newAdam(rate, m.batchSize)
	}
}

// Close Releases the model's virtual machines
func (m *Model) Close() error {
	machines := []gorgonia.VM{m.generatorMachine, m.ganMachine, m.discriminatorMachine, m.encoderMachine, m.penaltyMachine}
	for _, machine := range machines {
		if machine == nil {
			continue
		}
		if err := machine.Close(); err != nil {
			return errors.Wrap(err, "Can't close tape machine")
		}
	}
	return nil
}

func scalarOf(v gorgonia.Value) float64 {
	switch data := v.Data().(type) {
	case float64:
		return data
	case []float64:
		if len(data) > 0 {
			return data[0]
		}
	}
	return math.NaN()
}
