package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunction combo
//
// WeightNode - weight tensor. For batch normalization this is the scale (gamma)
// BiasNode - bias tensor. For batch normalization this is the shift (beta)
// Activation - activation applied to the layer's output. Nil means identity
//
type Layer struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	Activation ActivationFunc
	Type       LayerType

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int
	// ReshapeDims with first entry == -1 substitute batch size at forward time
	ReshapeDims []int
	// Upsample factor for LayerUpsample. Factor of 2 doubles spatial dims
	Upsample int
	// Batch normalization parameters for LayerBatchNorm
	BatchNormMomentum float64
	BatchNormEpsilon  float64

	bnOperation *gorgonia.BatchNormOp
}

// Fwd Builds the non-activated output of the layer for provided input node.
//
// batchSize - batch size. If it's >= 2 then broadcast function will be applied for bias
// input - previous layer's activated output (or the network's input node)
//
func (layer *Layer) Fwd(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	var nonActivated *gorgonia.Node
	var err error
	switch layer.Type {
	case LayerLinear:
		tOp, err := gorgonia.Transpose(layer.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		nonActivated, err = gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
	case LayerConvolutional:
		nonActivated, err = gorgonia.Conv2d(input, layer.WeightNode, tensor.Shape{layer.KernelHeight, layer.KernelWidth}, layer.Padding, layer.Stride, layer.Dilation)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
	case LayerUpsample:
		nonActivated, err = gorgonia.Upsample2D(input, layer.Upsample)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't upsample[2D] input by factor %d", layer.Upsample))
		}
	case LayerBatchNorm:
		normalized, gamma, beta, op, err := gorgonia.BatchNorm(input, layer.WeightNode, layer.BiasNode, layer.BatchNormMomentum, layer.BatchNormEpsilon)
		if err != nil {
			return nil, errors.Wrap(err, "Can't apply batch normalization to input")
		}
		if layer.WeightNode == nil {
			layer.WeightNode = gamma
		}
		if layer.BiasNode == nil {
			layer.BiasNode = beta
		}
		layer.bnOperation = op
		op.SetTraining()
		// Scale and shift are folded into the op itself, skip the generic bias path
		return normalized, nil
	case LayerMaxpool:
		nonActivated, err = gorgonia.MaxPool2D(input, tensor.Shape{layer.KernelHeight, layer.KernelWidth}, layer.Padding, layer.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't maxpool[2D] input by kernel")
		}
	case LayerFlatten:
		nonActivated, err = gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
	case LayerReshape:
		dims := make([]int, len(layer.ReshapeDims))
		copy(dims, layer.ReshapeDims)
		if len(dims) > 0 && dims[0] == -1 {
			dims[0] = batchSize
		}
		nonActivated, err = gorgonia.Reshape(input, tensor.Shape(dims))
		if err != nil {
			return nil, errors.Wrap(err, "Can't reshape input")
		}
	default:
		return nil, fmt.Errorf("Layer's type '%d' (uint16) is not handled", layer.Type)
	}
	if layer.BiasNode != nil {
		if nonActivated.Dims() == 4 {
			nonActivated, err = gorgonia.BroadcastAdd(nonActivated, layer.BiasNode, nil, []byte{0, 2, 3})
			if err != nil {
				return nil, errors.Wrap(err, "Can't add [in broadcast term over batch and spatial axes] bias to non-activated output")
			}
		} else if batchSize < 2 {
			nonActivated, err = gorgonia.Add(nonActivated, layer.BiasNode)
			if err != nil {
				return nil, errors.Wrap(err, "Can't add bias to non-activated output")
			}
		} else {
			nonActivated, err = gorgonia.BroadcastAdd(nonActivated, layer.BiasNode, nil, []byte{0})
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Can't add [in broadcast term with batch_size = %d] bias to non-activated output", batchSize))
			}
		}
	}
	return nonActivated, nil
}

// Activate Applies the layer's activation function. Nil activation is identity
func (layer *Layer) Activate(nonActivated *gorgonia.Node) (*gorgonia.Node, error) {
	if layer.Activation == nil {
		return nonActivated, nil
	}
	return layer.Activation(nonActivated)
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerMaxpool
	LayerReshape
	LayerUpsample
	LayerBatchNorm
)

var (
	allowedNoWeights = []LayerType{LayerMaxpool, LayerFlatten, LayerReshape, LayerUpsample, LayerBatchNorm}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}
