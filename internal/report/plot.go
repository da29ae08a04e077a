package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"

	"github.com/signalnine/greeksweep/internal/protocol"
	"github.com/signalnine/greeksweep/internal/series"
)

const xLabel = "Underlying Price (S)"

var (
	aadColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	fdColor  = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	fdDashes = []vg.Length{vg.Points(5), vg.Points(3)}
)

// Panel is the data of one Greeks comparison panel. FD is empty for Price.
type Panel struct {
	Quantity protocol.Quantity
	Title    string
	AAD      []series.Point
	FD       []series.Point
}

var panelOrder = []protocol.Quantity{
	protocol.Delta, protocol.Gamma, protocol.Vega, protocol.Theta, protocol.Rho, protocol.Price,
}

// Panels returns the six comparison panels in layout order.
func Panels(s *series.Series) []Panel {
	panels := make([]Panel, len(panelOrder))
	for i, q := range panelOrder {
		title := string(q) + " Comparison"
		if q == protocol.Price {
			title = "Option Price"
		}
		panels[i] = Panel{
			Quantity: q,
			Title:    title,
			AAD:      s.Greeks(protocol.AAD, q),
			FD:       s.Greeks(protocol.FD, q),
		}
	}
	return panels
}

// RenderGreeks writes the 2x3 Greeks comparison as a PDF.
func RenderGreeks(w io.Writer, s *series.Series) error {
	if NoData(s) {
		return renderNoData(w, "Greeks Comparison", s, 12*vg.Inch, 8*vg.Inch)
	}
	panels := Panels(s)
	if len(panels[0].AAD) == 0 {
		return renderNoData(w, "Greeks Comparison", s, 12*vg.Inch, 8*vg.Inch)
	}

	const rows, cols = 2, 3
	plots := make([][]*plot.Plot, rows)
	for r := range plots {
		plots[r] = make([]*plot.Plot, cols)
	}
	for i, panel := range panels {
		p := plot.New()
		p.Title.Text = panel.Title
		p.X.Label.Text = xLabel
		p.Y.Label.Text = string(panel.Quantity)
		if err := addCurve(p, "AAD", panel.AAD, aadColor, nil); err != nil {
			return fmt.Errorf("%s panel: %w", panel.Quantity, err)
		}
		if err := addCurve(p, "Finite Differences", panel.FD, fdColor, fdDashes); err != nil {
			return fmt.Errorf("%s panel: %w", panel.Quantity, err)
		}
		p.Legend.Top = true
		plots[i/cols][i%cols] = p
	}

	c := vgpdf.New(12*vg.Inch, 8*vg.Inch)
	dc := draw.New(c)
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Millimeter * 6, PadY: vg.Millimeter * 6,
		PadTop: vg.Millimeter * 4, PadBottom: vg.Millimeter * 4,
		PadLeft: vg.Millimeter * 4, PadRight: vg.Millimeter * 4,
	}
	canvases := plot.Align(plots, tiles, dc)
	for r := range plots {
		for col := range plots[r] {
			plots[r][col].Draw(canvases[r][col])
		}
	}
	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("writing greeks pdf: %w", err)
	}
	return nil
}

// RenderTiming writes the execution time comparison as a PDF.
func RenderTiming(w io.Writer, s *series.Series) error {
	const title = "Execution Time Comparison for European Option Pricing"
	if NoData(s) {
		return renderNoData(w, title, s, 10*vg.Inch, 6*vg.Inch)
	}
	aad, fd := s.Timing(protocol.AAD), s.Timing(protocol.FD)
	if len(aad) == 0 {
		return renderNoData(w, title, s, 10*vg.Inch, 6*vg.Inch)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Time (microseconds)"
	if err := addCurve(p, "AAD", aad, aadColor, nil); err != nil {
		return err
	}
	if err := addCurve(p, "Finite Differences", fd, fdColor, fdDashes); err != nil {
		return err
	}
	p.Legend.Top = true
	return writePlot(w, p, 10*vg.Inch, 6*vg.Inch)
}

func addCurve(p *plot.Plot, name string, pts []series.Point, c color.Color, dashes []vg.Length) error {
	if len(pts) == 0 {
		return nil
	}
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i].X, xys[i].Y = pt.X, pt.Y
	}
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("building %s curve: %w", name, err)
	}
	line.Color = c
	line.Dashes = dashes
	points.Color = c
	points.Shape = draw.CircleGlyph{}
	points.Radius = vg.Points(1.5)
	p.Add(line, points)
	p.Legend.Add(name, line)
	return nil
}

func renderNoData(w io.Writer, title string, s *series.Series, width, height vg.Length) error {
	p := plot.New()
	requested, skipped := 0, 0
	if s != nil {
		requested, skipped = s.Requested, len(s.Skipped)
	}
	p.Title.Text = fmt.Sprintf("%s: no data (%d of %d samples skipped)", title, skipped, requested)
	p.HideAxes()
	return writePlot(w, p, width, height)
}

func writePlot(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "pdf")
	if err != nil {
		return fmt.Errorf("preparing pdf: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}
