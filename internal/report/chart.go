package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/cartpole/internal/episode"
)

// Lengths returns the episode lengths in order.
func Lengths(episodes []episode.Summary) []float64 {
	out := make([]float64, len(episodes))
	for i, ep := range episodes {
		out[i] = float64(ep.Steps)
	}
	return out
}

// MovingAverage returns, for every episode, the mean of the last window
// lengths up to and including it.
func MovingAverage(lengths []float64, window int) []float64 {
	if window <= 0 {
		window = 1
	}
	out := make([]float64, len(lengths))
	for i := range lengths {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		out[i] = stat.Mean(lengths[start:i+1], nil)
	}
	return out
}

// LengthChart draws episode lengths and their moving average as an
// ASCII chart.
func LengthChart(episodes []episode.Summary, window, width, height int) (string, error) {
	if len(episodes) == 0 {
		return "", fmt.Errorf("no episodes to plot")
	}
	lengths := Lengths(episodes)
	avg := MovingAverage(lengths, window)

	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Caption(fmt.Sprintf("episode length, moving average over %d", window)),
	}
	// asciigraph cannot stretch a single sample.
	if len(lengths) == 1 {
		return asciigraph.Plot(lengths, opts...), nil
	}
	opts = append(opts, asciigraph.Width(width))
	return asciigraph.PlotMany([][]float64{lengths, avg}, opts...), nil
}

// SavePNG writes the episode-length chart, its moving average and the
// solved threshold to a PNG file.
func SavePNG(path, title string, episodes []episode.Summary, window int, threshold float64) error {
	if len(episodes) == 0 {
		return fmt.Errorf("no episodes to plot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	lengths := Lengths(episodes)
	avg := MovingAverage(lengths, window)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "episode"
	p.Y.Label.Text = "steps"
	p.Title.TextStyle.Font.Size = vg.Points(16)

	raw := make(plotter.XYs, len(lengths))
	smooth := make(plotter.XYs, len(avg))
	for i := range lengths {
		raw[i].X = float64(i)
		raw[i].Y = lengths[i]
		smooth[i].X = float64(i)
		smooth[i].Y = avg[i]
	}

	rawLine, err := plotter.NewLine(raw)
	if err != nil {
		return fmt.Errorf("cannot create line plot: %w", err)
	}
	rawLine.LineStyle.Width = vg.Points(1)
	rawLine.LineStyle.Color = color.RGBA{R: 0x88, G: 0x88, B: 0x99, A: 0xff}

	avgLine, err := plotter.NewLine(smooth)
	if err != nil {
		return fmt.Errorf("cannot create line plot: %w", err)
	}
	avgLine.LineStyle.Width = vg.Points(2.5)
	avgLine.LineStyle.Color = color.RGBA{R: 0x00, G: 0x99, B: 0xcc, A: 0xff}

	limit := plotter.NewFunction(func(float64) float64 { return threshold })
	limit.LineStyle.Width = vg.Points(1.5)
	limit.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	limit.LineStyle.Color = color.RGBA{R: 0x00, G: 0xcc, B: 0x66, A: 0xff}

	p.Add(plotter.NewGrid(), rawLine, avgLine, limit)
	p.Legend.Add("length", rawLine)
	p.Legend.Add(fmt.Sprintf("mean of last %d", window), avgLine)
	p.Legend.Add("solved", limit)
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
