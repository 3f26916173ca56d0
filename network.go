package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// Network Abstraction for neural network.
//
// Layers - simple sequence of layers
// out - alias to activated output of last layer
//
type Network struct {
	Name   string
	Layers []*Layer
	out    *gorgonia.Node
}

// Out Returns reference to output node
func (net *Network) Out() *gorgonia.Node {
	return net.out
}

// Learnables Returns learnables nodes
func (net *Network) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 2*len(net.Layers))
	for _, l := range net.Layers {
		if l != nil {
			if l.WeightNode != nil {
				learnables = append(learnables, l.WeightNode)
			}
			if l.BiasNode != nil {
				learnables = append(learnables, l.BiasNode)
			}
		}
	}
	return learnables
}

// Fwd Initializates feedforward for provided input
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *Network) Fwd(input *gorgonia.Node, batchSize int) error {
	out, err := net.Apply(input, batchSize)
	if err != nil {
		return err
	}
	net.out = out
	return nil
}

// Apply Builds feedforward for provided input and returns the activated output of the last
// layer without touching the network's stored output. Used for extra forward passes sharing
// the same weight nodes (e.g. a discriminator pass over interpolated images).
func (net *Network) Apply(input *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	networkName := "network"
	if net.Name != "" {
		networkName = net.Name
	}

	if len(net.Layers) == 0 {
		return nil, fmt.Errorf("Network must have one layer atleast")
	}

	lastActivatedLayer := input
	for i := 0; i < len(net.Layers); i++ {
		if net.Layers[i] == nil {
			return nil, fmt.Errorf("Network's layer #%d is nil", i)
		}
		if net.Layers[i].WeightNode == nil && !noWeightsAllowed(net.Layers[i].Type) {
			return nil, fmt.Errorf("Network's layer's #%d WeightNode is nil", i)
		}
		// Feedforward input through i-th layer
		layerNonActivated, err := net.Layers[i].Fwd(batchSize, lastActivatedLayer)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Network, Layer #%d] Can't feedforward input before activation", i))
		}
		gorgonia.WithName(fmt.Sprintf("%s_%d", networkName, i))(layerNonActivated)
		// Activate i-th layer's output
		layerActivated, err := net.Layers[i].Activate(layerNonActivated)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't apply activation function to non-activated output of Network's layer #%d", i))
		}
		if layerActivated != layerNonActivated {
			gorgonia.WithName(fmt.Sprintf("%s_activated_%d", networkName, i))(layerActivated)
		}
		lastActivatedLayer = layerActivated
	}
	return lastActivatedLayer, nil
}

// CloneTo Makes a copy of the network's structure on another (or the same) expression graph.
// Weight and bias nodes are fresh input tensors initialized with the current values of the
// originals, so the copy can be trained (or kept frozen) independently. Use SyncClone to
// refresh the copy with the original's current values.
func (net *Network) CloneTo(g *gorgonia.ExprGraph, suffix string) *Network {
	cloned := &Network{
		Name:   net.Name + suffix,
		Layers: make([]*Layer, len(net.Layers)),
	}
	for i, l := range net.Layers {
		cloned.Layers[i] = &Layer{
			Activation:        l.Activation,
			Type:              l.Type,
			KernelHeight:      l.KernelHeight,
			KernelWidth:       l.KernelWidth,
			Padding:           l.Padding,
			Stride:            l.Stride,
			Dilation:          l.Dilation,
			ReshapeDims:       l.ReshapeDims,
			Upsample:          l.Upsample,
			BatchNormMomentum: l.BatchNormMomentum,
			BatchNormEpsilon:  l.BatchNormEpsilon,
		}
		if l.WeightNode != nil {
			cloned.Layers[i].WeightNode = gorgonia.NewTensor(g, gorgonia.Float64, l.WeightNode.Dims(), gorgonia.WithShape(l.WeightNode.Shape()...), gorgonia.WithName(l.WeightNode.Name()+suffix), gorgonia.WithValue(l.WeightNode.Value()))
		}
		if l.BiasNode != nil {
			cloned.Layers[i].BiasNode = gorgonia.NewTensor(g, gorgonia.Float64, l.BiasNode.Dims(), gorgonia.WithShape(l.BiasNode.Shape()...), gorgonia.WithName(l.BiasNode.Name()+suffix), gorgonia.WithValue(l.BiasNode.Value()))
		}
	}
	return cloned
}

// SyncClone Pushes the network's current weight/bias values into a copy produced by CloneTo
func (net *Network) SyncClone(cloned *Network) error {
	if len(net.Layers) != len(cloned.Layers) {
		return fmt.Errorf("Clone has %d layers, original has %d", len(cloned.Layers), len(net.Layers))
	}
	for i, l := range net.Layers {
		if l.WeightNode != nil {
			if err := gorgonia.Let(cloned.Layers[i].WeightNode, l.WeightNode.Value()); err != nil {
				return errors.Wrap(err, fmt.Sprintf("Can't push weight value into clone's layer #%d", i))
			}
		}
		if l.BiasNode != nil {
			if err := gorgonia.Let(cloned.Layers[i].BiasNode, l.BiasNode.Value()); err != nil {
				return errors.Wrap(err, fmt.Sprintf("Can't push bias value into clone's layer #%d", i))
			}
		}
	}
	return nil
}
