package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// RescaleToSigned Returns a copy of the batch rescaled from [0, 1] to [-1, 1]
func RescaleToSigned(batch *tensor.Dense) *tensor.Dense {
	src := batch.Data().([]float64)
	data := make([]float64, len(src))
	for i := range src {
		data[i] = src[i]*2.0 - 1.0
	}
	return tensor.New(tensor.WithShape(batch.Shape()...), tensor.WithBacking(data))
}

// RescaleToUnit Returns a copy of the batch rescaled from [-1, 1] back to [0, 1]
func RescaleToUnit(batch *tensor.Dense) *tensor.Dense {
	src := batch.Data().([]float64)
	data := make([]float64, len(src))
	for i := range src {
		data[i] = (src[i] + 1.0) / 2.0
	}
	return tensor.New(tensor.WithShape(batch.Shape()...), tensor.WithBacking(data))
}

// ConcatBatches Stacks two batches along the batch axis (fake first, real second by convention)
func ConcatBatches(fake, real *tensor.Dense) (*tensor.Dense, error) {
	combined, err := tensor.Concat(0, fake, real)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concatenate batches along batch axis")
	}
	return combined.(*tensor.Dense), nil
}

// InterpolateBatches Blends matched pairs of two batches of the same shape:
// example i of the result is eps[i]*real_i + (1-eps[i])*fake_i
func InterpolateBatches(fake, real *tensor.Dense, eps []float64) *tensor.Dense {
	assertBatchesAlike(fake.Shape(), real.Shape())
	shape := fake.Shape()
	features := shape.TotalSize() / shape[0]
	fakeData := fake.Data().([]float64)
	realData := real.Data().([]float64)
	data := make([]float64, len(fakeData))
	for i := 0; i < shape[0]; i++ {
		for j := 0; j < features; j++ {
			at := i*features + j
			data[at] = eps[i]*realData[at] + (1.0-eps[i])*fakeData[at]
		}
	}
	return tensor.New(tensor.WithShape(shape.Clone()...), tensor.WithBacking(data))
}

// assertBatchesAlike Panics unless both batches agree on every axis beyond the batch one
// (and on the batch count itself). A mismatch here is a hyperparameter configuration error,
// not a recoverable runtime condition.
func assertBatchesAlike(fake, real tensor.Shape) {
	if len(fake) != len(real) {
		panic(fmt.Sprintf("fake batch rank %d does not match real batch rank %d: model was built with wrong hyperparameters", len(fake), len(real)))
	}
	for axis := 0; axis < len(fake); axis++ {
		if fake[axis] != real[axis] {
			panic(fmt.Sprintf("fake batch shape %v does not match real batch shape %v: model was built with wrong hyperparameters", fake, real))
		}
	}
}
