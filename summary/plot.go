package summary

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// boxWidth is the width of a single box.
const boxWidth = vg.Length(20)

// Plot draws box plots of root distances of every method for each
// experiment. Files are named <prefix>-<tree>tree-<alignment>.png.
func (s *Summary) Plot(prefix string) ([]string, error) {
	var files []string
	for _, e := range s.Experiments {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("tree %s, alignment %s", e.Tree, e.Alignment)
		p.Y.Label.Text = "root distance (edges)"

		var names []string
		for _, m := range Methods {
			ms, ok := e.Methods[m]
			if !ok {
				continue
			}
			box, err := plotter.NewBoxPlot(boxWidth, float64(len(names)), plotter.Values(ms.rootDistances))
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", e.Tree, e.Alignment, err)
			}
			p.Add(box)
			names = append(names, m)
		}
		if len(names) == 0 {
			continue
		}
		p.NominalX(names...)

		fn := fmt.Sprintf("%s-%stree-%s.png", prefix, e.Tree, e.Alignment)
		if err := p.Save(3*vg.Inch, 4*vg.Inch, fn); err != nil {
			return nil, err
		}
		files = append(files, fn)
	}
	return files, nil
}
