package main

import (
	"fmt"
	"math"
	"os"
	"time"

	dcgan "github.com/LdDl/dcgan-go"
	"gorgonia.org/tensor"
)

var (
	outputFolder = "./output"
	batchSize    = 4
	imageHeight  = 8
	imageWidth   = 8
	noiseSize    = 32
	latentSize   = 16
	numSteps     = 300
	evalPrint    = 30
)

func genSyntheticBatch() *tensor.Dense {
	// 'T' char in binary representation, values in [0, 1]
	glyph := []float64{
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 1, 1, 1, 1, 1, 1, 0,
		0, 1, 1, 1, 1, 1, 1, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	data := make([]float64, 0, batchSize*len(glyph))
	for i := 0; i < batchSize; i++ {
		data = append(data, glyph...)
	}
	return tensor.New(tensor.WithShape(batchSize, 1, imageHeight, imageWidth), tensor.WithBacking(data))
}

func printImage(data []float64) {
	for y := 0; y < imageHeight; y++ {
		fmt.Printf("\t")
		for x := 0; x < imageWidth; x++ {
			r := math.Round(data[y*imageWidth+x])
			if r == -0 {
				r = 0
			}
			fmt.Printf("%.0f ", r)
		}
		fmt.Println()
	}
}

func main() {
	// Constant seed to reproduce results
	noise := dcgan.NewNoiseSource(42)

	hyper := dcgan.Hyper{
		ImageShape:           [3]int{1, imageHeight, imageWidth},
		GeneratorFilters:     []int{32, 16},
		GeneratorStrides:     []int{1, 2},
		DiscriminatorFilters: []int{16, 32},
		DiscriminatorStrides: []int{2, 2},
		LatentSize:           latentSize,
		NoiseSize:            noiseSize,
		InitialShape:         [2]int{4, 4},
	}
	learning := dcgan.NewLearning(1e-4)

	// Wasserstein critic: unbounded scores, gradient penalty with the usual coefficient of 10
	model, err := dcgan.NewModel(hyper, learning, dcgan.WassersteinVariant{}, batchSize, noise)
	if err != nil {
		panic(err)
	}
	defer model.Close()

	realBatch := genSyntheticBatch()
	fmt.Println("Reference data:")
	printImage(realBatch.Data().([]float64)[:imageHeight*imageWidth])

	history := &dcgan.LossHistory{}
	st := time.Now()
	for step := 0; step < numSteps; step++ {
		losses, summary, err := model.TrainOnBatchSummary(realBatch)
		if err != nil {
			panic(err)
		}
		history.Record(losses)
		if step%evalPrint == 0 {
			dMean, gMean := history.Snapshot(evalPrint)
			fmt.Printf("Step %d\tD: %.4f\tG: %.4f\t(last step D: %.4f, G: %.4f)\n", step, dMean, gMean, summary.DiscriminatorLoss, summary.GeneratorLoss)
		}
	}
	fmt.Printf("Training done in %v\n", time.Since(st))

	if err := os.MkdirAll(outputFolder, 0755); err != nil {
		panic(err)
	}
	if err := history.PlotLosses(fmt.Sprintf("%s/wgan_losses.png", outputFolder)); err != nil {
		panic(err)
	}

	generated, err := model.Generate(model.SampleNoise())
	if err != nil {
		panic(err)
	}
	fmt.Println("Generated sample:")
	printImage(generated.Data().([]float64)[:imageHeight*imageWidth])
}
