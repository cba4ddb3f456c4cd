package services

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"teleassist-clustering/models"
	"teleassist-clustering/utils"
)

// DiagramRenderer draws the run diagnostics as PNG files under dir.
type DiagramRenderer struct {
	dir    string
	logger *utils.Logger
}

func NewDiagramRenderer(dir string, logger *utils.Logger) *DiagramRenderer {
	return &DiagramRenderer{dir: dir, logger: logger.With("diagrams")}
}

// RenderAll writes every diagram and returns the files written.
func (r *DiagramRenderer) RenderAll(report *models.Report) ([]string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("diagrams: %w", err)
	}
	var files []string
	if len(report.Elbow) > 0 {
		f, err := r.Elbow(report.Elbow)
		if err != nil {
			return files, err
		}
		files = append(files, f)
	}
	if len(report.Metrics.Clusters) > 0 {
		f, err := r.Purity(report.Metrics)
		if err != nil {
			return files, err
		}
		files = append(files, f)
	}
	r.logger.Info("Rendered %d diagrams into %s", len(files), r.dir)
	return files, nil
}

// Elbow draws inertia against k.
func (r *DiagramRenderer) Elbow(points []models.ElbowPoint) (string, error) {
	p := plot.New()
	p.Title.Text = "Elbow method"
	p.X.Label.Text = "clusters (k)"
	p.Y.Label.Text = "inertia"

	pts := make(plotter.XYs, len(points))
	for i, pt := range points {
		pts[i].X = float64(pt.K)
		pts[i].Y = pt.Inertia
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return "", fmt.Errorf("diagrams: elbow line: %w", err)
	}
	l.LineStyle.Width = vg.Points(2)
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("diagrams: elbow points: %w", err)
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(3)
	p.Add(l, s, plotter.NewGrid())

	filename := filepath.Join(r.dir, "elbow_method.png")
	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return "", fmt.Errorf("diagrams: save %s: %w", filename, err)
	}
	return filename, nil
}

// Purity draws one bar per non-empty cluster.
func (r *DiagramRenderer) Purity(metrics models.ClusterMetrics) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Purity per cluster (overall %.2f)", metrics.Purity)
	p.Y.Label.Text = "purity"
	p.Y.Min, p.Y.Max = 0, 1

	values := make(plotter.Values, len(metrics.Clusters))
	names := make([]string, len(metrics.Clusters))
	for i, c := range metrics.Clusters {
		values[i] = c.Purity
		names[i] = fmt.Sprintf("%d (%s)", c.ID, displayTier(c.DominantTier))
	}
	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return "", fmt.Errorf("diagrams: purity bars: %w", err)
	}
	p.Add(bars)
	p.NominalX(names...)

	filename := filepath.Join(r.dir, "purity_by_cluster.png")
	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return "", fmt.Errorf("diagrams: save %s: %w", filename, err)
	}
	return filename, nil
}
