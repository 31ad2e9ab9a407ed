// Package analysis turns run reports into per-run data series and
// comparison plots, one analyzer per metric and one comparator per plot.
package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/zeu5/pursuit-rl/trainer"
)

// DataSet is one series extracted from a run, indexed by episode.
type DataSet []float64

// Analyzer extracts a series from a run report.
type Analyzer func(run int, name string, episodes []trainer.EpisodeStats) DataSet

// Comparator consumes the datasets of several named runs, typically to
// produce a plot.
type Comparator func(run int, names []string, datasets []DataSet)

// LengthAnalyzer extracts episode lengths.
func LengthAnalyzer() Analyzer {
	return func(_ int, _ string, episodes []trainer.EpisodeStats) DataSet {
		out := make(DataSet, len(episodes))
		for i, ep := range episodes {
			out[i] = float64(ep.Length)
		}
		return out
	}
}

// CapturesAnalyzer extracts per-episode capture counts.
func CapturesAnalyzer() Analyzer {
	return func(_ int, _ string, episodes []trainer.EpisodeStats) DataSet {
		out := make(DataSet, len(episodes))
		for i, ep := range episodes {
			out[i] = float64(ep.Captures)
		}
		return out
	}
}

// RewardAnalyzer extracts one agent's cumulative episode reward.
func RewardAnalyzer(agent string) Analyzer {
	return func(_ int, _ string, episodes []trainer.EpisodeStats) DataSet {
		out := make(DataSet, len(episodes))
		for i, ep := range episodes {
			out[i] = ep.Rewards[agent]
		}
		return out
	}
}

// CoverageAnalyzer extracts the cumulative count of unique joint states
// visited.
func CoverageAnalyzer() Analyzer {
	return func(_ int, _ string, episodes []trainer.EpisodeStats) DataSet {
		out := make(DataSet, len(episodes))
		for i, ep := range episodes {
			out[i] = float64(ep.UniqueStates)
		}
		return out
	}
}

// Smooth replaces each point by the mean of the trailing window, which
// makes the noisy per-episode series readable in plots.
func Smooth(ds DataSet, window int) DataSet {
	if window <= 1 {
		return ds
	}
	out := make(DataSet, len(ds))
	sum := 0.0
	for i, v := range ds {
		sum += v
		if i >= window {
			sum -= ds[i-window]
			out[i] = sum / float64(window)
		} else {
			out[i] = sum / float64(i+1)
		}
	}
	return out
}

// LinePlotter returns a comparator that draws every dataset as one line on
// a shared plot and saves it as a PNG under plotDir.
func LinePlotter(plotDir, title, yLabel, fileSuffix string, smoothWindow int) Comparator {
	return func(run int, names []string, datasets []DataSet) {
		if err := os.MkdirAll(plotDir, 0o755); err != nil {
			fmt.Printf("create plot dir: %v\n", err)
			return
		}
		p := plot.New()
		p.Title.Text = title
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = yLabel
		for i, name := range names {
			series := Smooth(datasets[i], smoothWindow)
			points := make(plotter.XYs, len(series))
			for j, v := range series {
				points[j] = plotter.XY{X: float64(j + 1), Y: v}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(name, line)
		}
		out := filepath.Join(plotDir, fmt.Sprintf("%d_%s.png", run, fileSuffix))
		if err := p.Save(8*vg.Inch, 8*vg.Inch, out); err != nil {
			fmt.Printf("save plot %s: %v\n", out, err)
		}
	}
}

// Analysis pairs an analyzer with the comparator that renders it.
type Analysis struct {
	Name       string
	Analyzer   Analyzer
	Comparator Comparator
}

// Compare runs every analysis over the named run reports.
func Compare(run int, analyses []Analysis, names []string, reports []*trainer.RunReport) {
	for _, a := range analyses {
		datasets := make([]DataSet, len(reports))
		for i, report := range reports {
			datasets[i] = a.Analyzer(run, names[i], report.Episodes)
		}
		a.Comparator(run, names, datasets)
	}
}

// DefaultAnalyses builds the standard plot set: smoothed episode length,
// captures, coverage and one reward curve per agent.
func DefaultAnalyses(plotDir string, agents []string, window int) []Analysis {
	analyses := []Analysis{
		{
			Name:       "length",
			Analyzer:   LengthAnalyzer(),
			Comparator: LinePlotter(plotDir, "Episode length", "Steps", "length", window),
		},
		{
			Name:       "captures",
			Analyzer:   CapturesAnalyzer(),
			Comparator: LinePlotter(plotDir, "Captures per episode", "Captures", "captures", window),
		},
		{
			Name:       "coverage",
			Analyzer:   CoverageAnalyzer(),
			Comparator: LinePlotter(plotDir, "Joint states visited", "Unique states", "coverage", 1),
		},
	}
	for _, agent := range agents {
		analyses = append(analyses, Analysis{
			Name:       "reward_" + agent,
			Analyzer:   RewardAnalyzer(agent),
			Comparator: LinePlotter(plotDir, "Episode reward: "+agent, "Reward", "reward_"+agent, window),
		})
	}
	return analyses
}
