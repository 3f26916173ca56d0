package dcgan_go

import (
	"fmt"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// LossHistory Per-step discriminator/generator losses accumulated over a training run.
// The zero value is ready to use.
type LossHistory struct {
	discriminator []float64
	generator     []float64
}

// Record Appends one step's loss dictionary (keys "D" and "G")
func (h *LossHistory) Record(losses map[string]float64) {
	h.discriminator = append(h.discriminator, losses["D"])
	h.generator = append(h.generator, losses["G"])
}

// Len Returns number of recorded steps
func (h *LossHistory) Len() int {
	return len(h.discriminator)
}

// Snapshot Returns the mean discriminator and generator loss over the last `window` steps.
// A window of 0 (or one larger than the history) averages everything recorded so far.
func (h *LossHistory) Snapshot(window int) (discriminatorMean, generatorMean float64) {
	n := len(h.discriminator)
	if n == 0 {
		return 0.0, 0.0
	}
	if window < 1 || window > n {
		window = n
	}
	discriminatorMean = floats.Sum(h.discriminator[n-window:]) / float64(window)
	generatorMean = floats.Sum(h.generator[n-window:]) / float64(window)
	return discriminatorMean, generatorMean
}

// PlotLosses Renders both loss curves over the training steps into a chart file.
// Output format follows the file extension (.png, .svg, ...).
func (h *LossHistory) PlotLosses(fname string) error {
	if h.Len() == 0 {
		return fmt.Errorf("Loss history is empty, nothing to plot")
	}
	discriminatorCurve := make(plotter.XYs, h.Len())
	generatorCurve := make(plotter.XYs, h.Len())
	for i := 0; i < h.Len(); i++ {
		discriminatorCurve[i].X = float64(i)
		discriminatorCurve[i].Y = h.discriminator[i]
		generatorCurve[i].X = float64(i)
		generatorCurve[i].Y = h.generator[i]
	}
	discriminatorLine, err := plotter.NewLine(discriminatorCurve)
	if err != nil {
		return errors.Wrap(err, "Can't init line for discriminator losses")
	}
	discriminatorLine.Color = color.RGBA{R: 255, B: 128, A: 255}
	generatorLine, err := plotter.NewLine(generatorCurve)
	if err != nil {
		return errors.Wrap(err, "Can't init line for generator losses")
	}
	generatorLine.Color = color.RGBA{B: 255, G: 128, A: 255}
	p := plot.New()
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	p.Add(discriminatorLine)
	p.Add(generatorLine)
	p.Legend.Add("D", discriminatorLine)
	p.Legend.Add("G", generatorLine)
	// Save the plot to a file.
	if err := p.Save(4*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}
