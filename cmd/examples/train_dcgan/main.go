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
	// 'H' char in binary representation, values in [0, 1]
	glyph := []float64{
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 1, 1, 0, 0, 1, 1, 0,
		0, 1, 1, 0, 0, 1, 1, 0,
		0, 1, 1, 1, 1, 1, 1, 0,
		0, 1, 1, 1, 1, 1, 1, 0,
		0, 1, 1, 0, 0, 1, 1, 0,
		0, 1, 1, 0, 0, 1, 1, 0,
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
	noise := dcgan.NewNoiseSource(1337)

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
	learning := dcgan.Learning{RateD: 2e-4, RateG: 2e-4, Decay: 0.98, StepsPerDecay: 100}

	model, err := dcgan.NewModel(hyper, learning, dcgan.DCGANVariant{}, batchSize, noise)
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
		losses, err := model.TrainOnBatch(realBatch)
		if err != nil {
			panic(err)
		}
		history.Record(losses)
		if step%evalPrint == 0 {
			dMean, gMean := history.Snapshot(evalPrint)
			rates := model.LearningRate()
			fmt.Printf("Step %d\tD: %.4f\tG: %.4f\tlr(D): %.2e\tlr(G): %.2e\n", step, dMean, gMean, rates["D"], rates["G"])
		}
	}
	fmt.Printf("Training done in %v\n", time.Since(st))

	if err := os.MkdirAll(outputFolder, 0755); err != nil {
		panic(err)
	}
	if err := history.PlotLosses(fmt.Sprintf("%s/dcgan_losses.png", outputFolder)); err != nil {
		panic(err)
	}

	generated, err := model.Generate(model.SampleNoise())
	if err != nil {
		panic(err)
	}
	fmt.Println("Generated sample:")
	printImage(generated.Data().([]float64)[:imageHeight*imageWidth])

	latents, err := model.Encode(realBatch)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Latent embedding of reference batch has shape %v\n", latents.Shape())
}
