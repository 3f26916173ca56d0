package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// GeneratorNet Abstraction for generator part of GAN: maps latent noise of shape
// (batch, NoiseSize) to images of shape (batch, channels, height, width).
type GeneratorNet struct {
	hyper   Hyper
	private *Network
}

// Generator Constructor for GeneratorNet. Builds the DCGAN generator stack from hyperparameters:
// dense projection of the noise into an initial spatial volume, then per remaining
// (filters, stride) pair an upsampling (when stride > 1) followed by a 5x5 same-padding
// convolution, with batch normalization and leaky ReLU after the projection and every
// convolution, and a final 5x5 convolution down to the image channel count bounded by tanh.
func Generator(g *gorgonia.ExprGraph, hyper Hyper) (*GeneratorNet, error) {
	if err := hyper.Validate(); err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	firstFilter := hyper.GeneratorFilters[0]
	initHeight, initWidth := hyper.InitialShape[0], hyper.InitialShape[1]
	projected := initHeight * initWidth * firstFilter

	layers := []*Layer{
		// Project noise into the flattened initial spatial volume
		{
			Type:       LayerLinear,
			WeightNode: gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(projected, hyper.NoiseSize), gorgonia.WithName("generator_project_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
			BiasNode:   gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, projected), gorgonia.WithName("generator_project_b"), gorgonia.WithInit(gorgonia.Zeroes())),
		},
		{
			Type:        LayerReshape,
			ReshapeDims: []int{-1, firstFilter, initHeight, initWidth},
		},
		// Normalization happens on the 4D volume since BatchNorm wants NCHW input
		batchNormLayer(g, firstFilter, "generator_bn_0"),
	}

	inFilters := firstFilter
	for i := 1; i < len(hyper.GeneratorFilters); i++ {
		filters := hyper.GeneratorFilters[i]
		stride := hyper.GeneratorStrides[i]
		if stride > 1 {
			layers = append(layers, &Layer{
				Type:     LayerUpsample,
				Upsample: stride,
			})
		}
		layers = append(layers, &Layer{
			Type:         LayerConvolutional,
			WeightNode:   gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(filters, inFilters, 5, 5), gorgonia.WithName(fmt.Sprintf("generator_conv_%d_w", i)), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
			KernelHeight: 5,
			KernelWidth:  5,
			Padding:      []int{2, 2},
			Stride:       []int{1, 1},
			Dilation:     []int{1, 1},
		})
		layers = append(layers, batchNormLayer(g, filters, fmt.Sprintf("generator_bn_%d", i)))
		inFilters = filters
	}

	// Convolve down to the target channel count, bounded to [-1, 1]
	layers = append(layers, &Layer{
		Type:         LayerConvolutional,
		WeightNode:   gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(hyper.Channels(), inFilters, 5, 5), gorgonia.WithName("generator_conv_out_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
		KernelHeight: 5,
		KernelWidth:  5,
		Padding:      []int{2, 2},
		Stride:       []int{1, 1},
		Dilation:     []int{1, 1},
		Activation:   Tanh,
	})

	return &GeneratorNet{
		hyper: hyper,
		private: &Network{
			Name:   "generator",
			Layers: layers,
		},
	}, nil
}

// batchNormLayer Batch normalization over `channels` feature maps with momentum 0.9,
// leaky ReLU activated. Scale starts at ones, shift at zeros.
func batchNormLayer(g *gorgonia.ExprGraph, channels int, name string) *Layer {
	return &Layer{
		Type:              LayerBatchNorm,
		WeightNode:        gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, channels, 1, 1), gorgonia.WithName(name+"_scale"), gorgonia.WithInit(gorgonia.Ones())),
		BiasNode:          gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, channels, 1, 1), gorgonia.WithName(name+"_shift"), gorgonia.WithInit(gorgonia.Zeroes())),
		BatchNormMomentum: 0.9,
		BatchNormEpsilon:  1e-5,
		Activation:        LeakyRelu,
	}
}

// Out Returns reference to output node
func (net *GeneratorNet) Out() *gorgonia.Node {
	return net.private.Out()
}

// Learnables Returns learnables nodes
func (net *GeneratorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// Fwd Initializates feedforward for provided input
//
// input - Input node of shape (batchSize, NoiseSize)
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
// The output shape equaling the configured image shape is an asserted invariant:
// a mismatch means the hyperparameter bundle is wrong and the model must be rebuilt,
// so it panics instead of returning an error.
func (net *GeneratorNet) Fwd(input *gorgonia.Node, batchSize int) error {
	if err := net.private.Fwd(input, batchSize); err != nil {
		return errors.Wrap(err, "[Generator]")
	}
	got := net.private.Out().Shape()
	want := []int{batchSize, net.hyper.ImageShape[0], net.hyper.ImageShape[1], net.hyper.ImageShape[2]}
	if len(got) != len(want) {
		panic(fmt.Sprintf("generator output shape %v does not match configured image shape %v", got, want))
	}
	for axis := range want {
		if got[axis] != want[axis] {
			panic(fmt.Sprintf("generator output shape %v does not match configured image shape %v", got, want))
		}
	}
	return nil
}
