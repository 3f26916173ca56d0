package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// DiscriminatorNet Discriminator with an encoder branch. A shared convolutional trunk
// maps images to flattened logits; from those a dense latent projection produces the
// embedding (the encoder output), and a scalar projection on top of the latent produces
// the realism score. The score's bounding activation comes from the GAN variant:
// sigmoid for DCGAN, identity for the Wasserstein variant.
type DiscriminatorNet struct {
	hyper Hyper
	trunk *Network

	latentWeight *gorgonia.Node
	latentBias   *gorgonia.Node
	scoreWeight  *gorgonia.Node
	scoreBias    *gorgonia.Node
	final        ActivationFunc

	latent *gorgonia.Node
	out    *gorgonia.Node
}

// Discriminator Constructor for DiscriminatorNet. Trunk is a sequence of 5x5 same-padding
// strided convolutions with leaky ReLU (no pooling), followed by a flatten.
func Discriminator(g *gorgonia.ExprGraph, hyper Hyper, final ActivationFunc, name string) (*DiscriminatorNet, error) {
	if err := hyper.Validate(); err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	layers := make([]*Layer, 0, len(hyper.DiscriminatorFilters)+1)
	inFilters := hyper.Channels()
	height, width := hyper.ImageShape[1], hyper.ImageShape[2]
	for i, filters := range hyper.DiscriminatorFilters {
		stride := hyper.DiscriminatorStrides[i]
		layers = append(layers, &Layer{
			Type:         LayerConvolutional,
			WeightNode:   gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(filters, inFilters, 5, 5), gorgonia.WithName(fmt.Sprintf("%s_conv_%d_w", name, i)), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
			KernelHeight: 5,
			KernelWidth:  5,
			Padding:      []int{2, 2},
			Stride:       []int{stride, stride},
			Dilation:     []int{1, 1},
			Activation:   LeakyRelu,
		})
		// Same-padded 5x5 convolution with stride s: out = (in - 1)/s + 1
		height = (height-1)/stride + 1
		width = (width-1)/stride + 1
		inFilters = filters
	}
	layers = append(layers, &Layer{Type: LayerFlatten})
	logitsSize := inFilters * height * width

	return &DiscriminatorNet{
		hyper: hyper,
		trunk: &Network{
			Name:   name,
			Layers: layers,
		},
		latentWeight: gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(hyper.LatentSize, logitsSize), gorgonia.WithName(name+"_latent_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
		latentBias:   gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, hyper.LatentSize), gorgonia.WithName(name+"_latent_b"), gorgonia.WithInit(gorgonia.Zeroes())),
		scoreWeight:  gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, hyper.LatentSize), gorgonia.WithName(name+"_score_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
		scoreBias:    gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 1), gorgonia.WithName(name+"_score_b"), gorgonia.WithInit(gorgonia.Zeroes())),
		final:        final,
	}, nil
}

// Out Returns reference to the realism score output node
func (net *DiscriminatorNet) Out() *gorgonia.Node {
	return net.out
}

// LatentOut Returns reference to the latent embedding output node (encoder branch)
func (net *DiscriminatorNet) LatentOut() *gorgonia.Node {
	return net.latent
}

// Learnables Returns learnables nodes
func (net *DiscriminatorNet) Learnables() gorgonia.Nodes {
	learnables := net.trunk.Learnables()
	return append(learnables, net.latentWeight, net.latentBias, net.scoreWeight, net.scoreBias)
}

// Fwd Initializates feedforward for provided input
//
// input - Input node of shape (batchSize, channels, height, width)
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *DiscriminatorNet) Fwd(input *gorgonia.Node, batchSize int) error {
	score, latent, err := net.Apply(input, batchSize)
	if err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	net.out = score
	net.latent = latent
	return nil
}

// Apply Builds an extra forward pass through the discriminator's weights for any input
// node living on the same expression graph, without touching the stored outputs. Needed
// for the generator objective (scores of generated images) and for the gradient penalty
// pass over interpolated images.
func (net *DiscriminatorNet) Apply(input *gorgonia.Node, batchSize int) (score, latent *gorgonia.Node, err error) {
	logits, err := net.trunk.Apply(input, batchSize)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't feedforward trunk")
	}
	latent, err = denseFwd(logits, net.latentWeight, net.latentBias, batchSize)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't project logits into latent space")
	}
	preScore, err := denseFwd(latent, net.scoreWeight, net.scoreBias, batchSize)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't project latent vector into realism score")
	}
	score = preScore
	if net.final != nil {
		score, err = net.final(preScore)
		if err != nil {
			return nil, nil, errors.Wrap(err, "Can't apply final activation to realism score")
		}
	}
	return score, latent, nil
}

// CloneTo Makes a weight-copied twin of the discriminator on another graph. The twin's
// final activation is shared with the original. Refresh its values with SyncClone.
func (net *DiscriminatorNet) CloneTo(g *gorgonia.ExprGraph, suffix string) *DiscriminatorNet {
	return &DiscriminatorNet{
		hyper:        net.hyper,
		trunk:        net.trunk.CloneTo(g, suffix),
		latentWeight: cloneWeight(g, net.latentWeight, suffix),
		latentBias:   cloneWeight(g, net.latentBias, suffix),
		scoreWeight:  cloneWeight(g, net.scoreWeight, suffix),
		scoreBias:    cloneWeight(g, net.scoreBias, suffix),
		final:        net.final,
	}
}

// SyncClone Pushes the discriminator's current parameter values into a twin made by CloneTo
func (net *DiscriminatorNet) SyncClone(cloned *DiscriminatorNet) error {
	if err := net.trunk.SyncClone(cloned.trunk); err != nil {
		return errors.Wrap(err, "Can't sync trunk weights")
	}
	pairs := [][2]*gorgonia.Node{
		{net.latentWeight, cloned.latentWeight},
		{net.latentBias, cloned.latentBias},
		{net.scoreWeight, cloned.scoreWeight},
		{net.scoreBias, cloned.scoreBias},
	}
	for _, pair := range pairs {
		if err := gorgonia.Let(pair[1], pair[0].Value()); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't push value of '%s' into clone", pair[0].Name()))
		}
	}
	return nil
}

func cloneWeight(g *gorgonia.ExprGraph, w *gorgonia.Node, suffix string) *gorgonia.Node {
	return gorgonia.NewTensor(g, gorgonia.Float64, w.Dims(), gorgonia.WithShape(w.Shape()...), gorgonia.WithName(w.Name()+suffix), gorgonia.WithValue(w.Value()))
}

func denseFwd(input, weight, bias *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	tOp, err := gorgonia.Transpose(weight)
	if err != nil {
		return nil, errors.Wrap(err, "Can't transpose weights")
	}
	nonActivated, err := gorgonia.Mul(input, tOp)
	if err != nil {
		return nil, errors.Wrap(err, "Can't multiply input and weights")
	}
	if batchSize < 2 {
		return gorgonia.Add(nonActivated, bias)
	}
	return gorgonia.BroadcastAdd(nonActivated, bias, nil, []byte{0})
}
