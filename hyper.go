package dcgan_go

import (
	"fmt"
	"math"
)

// Hyper Bundle of network hyperparameters. It is built once and never mutated afterwards.
//
// ImageShape - shape of a single image as (channels, height, width). NCHW ordering, since that is what Conv2d expects
// GeneratorFilters - filter count per generator stage. First entry is the depth of the projected noise volume
// GeneratorStrides - upsampling factor per generator stage. Entry i > 1 doubles/triples/etc. spatial size before stage i convolution
// DiscriminatorFilters - filter count per discriminator convolution
// DiscriminatorStrides - convolution stride per discriminator stage (no pooling)
// LatentSize - size of the embedding produced by the encoder branch
// NoiseSize - size of the latent noise vector consumed by the generator
// InitialShape - spatial shape (height, width) of the projected noise volume
//
type Hyper struct {
	ImageShape           [3]int
	GeneratorFilters     []int
	GeneratorStrides     []int
	DiscriminatorFilters []int
	DiscriminatorStrides []int
	LatentSize           int
	NoiseSize            int
	InitialShape         [2]int
}

// Channels Returns number of image channels
func (h Hyper) Channels() int {
	return h.ImageShape[0]
}

// Validate Checks that hyperparameters are internally consistent.
// Returns error on the first inconsistency found. A model must not be built from an invalid bundle.
func (h Hyper) Validate() error {
	if h.ImageShape[0] < 1 || h.ImageShape[1] < 1 || h.ImageShape[2] < 1 {
		return fmt.Errorf("Image shape %v must have positive channels/height/width", h.ImageShape)
	}
	if len(h.GeneratorFilters) == 0 {
		return fmt.Errorf("Generator must have one filter stage atleast")
	}
	if len(h.GeneratorFilters) != len(h.GeneratorStrides) {
		return fmt.Errorf("Generator has %d filter stages but %d strides", len(h.GeneratorFilters), len(h.GeneratorStrides))
	}
	if len(h.DiscriminatorFilters) == 0 {
		return fmt.Errorf("Discriminator must have one filter stage atleast")
	}
	if len(h.DiscriminatorFilters) != len(h.DiscriminatorStrides) {
		return fmt.Errorf("Discriminator has %d filter stages but %d strides", len(h.DiscriminatorFilters), len(h.DiscriminatorStrides))
	}
	for i, f := range h.GeneratorFilters {
		if f < 1 {
			return fmt.Errorf("Generator filter count #%d must be positive, got %d", i, f)
		}
	}
	for i, s := range h.GeneratorStrides {
		if s < 1 {
			return fmt.Errorf("Generator stride #%d must be positive, got %d", i, s)
		}
	}
	for i, f := range h.DiscriminatorFilters {
		if f < 1 {
			return fmt.Errorf("Discriminator filter count #%d must be positive, got %d", i, f)
		}
	}
	for i, s := range h.DiscriminatorStrides {
		if s < 1 {
			return fmt.Errorf("Discriminator stride #%d must be positive, got %d", i, s)
		}
	}
	if h.LatentSize < 1 {
		return fmt.Errorf("Latent size must be positive, got %d", h.LatentSize)
	}
	if h.NoiseSize < 1 {
		return fmt.Errorf("Noise size must be positive, got %d", h.NoiseSize)
	}
	if h.InitialShape[0] < 1 || h.InitialShape[1] < 1 {
		return fmt.Errorf("Initial spatial shape %v must be positive", h.InitialShape)
	}
	// Upsampling stages must multiply the initial spatial shape out to the image's spatial shape exactly.
	height, width := h.InitialShape[0], h.InitialShape[1]
	for _, s := range h.GeneratorStrides[1:] {
		height *= s
		width *= s
	}
	if height != h.ImageShape[1] || width != h.ImageShape[2] {
		return fmt.Errorf("Generator strides grow initial shape %v to (%d, %d), but image shape is %v", h.InitialShape, height, width, h.ImageShape)
	}
	return nil
}

// Learning Per-network learning schedule.
//
// RateD, RateG - initial learning rates for discriminator and generator respectively
// Decay - multiplicative decay factor. Values <= 0 or == 1 disable decay
// StepsPerDecay - how many training steps each staircase level lasts
//
// Solvers carry their rate internally, so each staircase level rebuilds the Adam
// solver and its accumulated moment estimates start over from that step.
//
type Learning struct {
	RateD         float64
	RateG         float64
	Decay         float64
	StepsPerDecay int
}

// NewLearning Constructor for Learning with a single rate shared by both networks and no decay
func NewLearning(rate float64) Learning {
	return Learning{RateD: rate, RateG: rate}
}

// At Returns the decayed learning rate for provided initial rate after given number of steps.
// Decay is an exponential staircase: rate * decay^(step/stepsPerDecay) with integer division.
func (l Learning) At(initial float64, step int) float64 {
	if l.Decay <= 0.0 || l.Decay == 1.0 || l.StepsPerDecay < 1 {
		return initial
	}
	return initial * math.Pow(l.Decay, float64(step/l.StepsPerDecay))
}
