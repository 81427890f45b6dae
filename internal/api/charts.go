package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"tailscale.com/tsweb"

	"github.com/banshee-data/dice/internal/grid"
	"github.com/banshee-data/dice/internal/httputil"
	"github.com/banshee-data/dice/internal/monitoring"
	"github.com/banshee-data/dice/internal/pipeline"
)

// Layers that the grid charts can show, selected with ?layer=.
const (
	LayerOutput = "output"
	LayerInput  = "input"
	LayerNoisy  = "noisy"
	LayerRaw    = "raw"
)

var heatColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// AttachAdminRoutes adds the grid charts and the operator diagnostics to the
// tsweb debug page.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("grid", "Heatmap of the last transform (?layer=output|input|noisy|raw)", s.handleGridChart)
	debug.HandleFunc("grid.png", "PNG heatmap of the last transform", s.handleGridPNG)
	debug.HandleFunc("diagnostics", "Recent transform failures", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, monitoring.RecentDiagnostics())
	})
}

// layer returns one buffer of res in request orientation, one value per cell
// in row-major order.
func layer(res pipeline.Result, name string) ([]float64, error) {
	switch name {
	case LayerOutput, "":
		return toFloat(res.Binary), nil
	case LayerInput:
		return toFloat(res.Dense), nil
	case LayerNoisy:
		v, err := grid.FlipHorizontal(res.Noisy, res.Dims)
		return toFloat(v), err
	case LayerRaw:
		v, err := grid.FlipHorizontal(res.Raw, res.Dims)
		return toFloat(v), err
	default:
		return nil, fmt.Errorf("unknown layer %q", name)
	}
}

func toFloat[T int | float32](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// lastLayer resolves the requested layer of the most recent transform,
// writing an error response when there is none.
func (s *Server) lastLayer(w http.ResponseWriter, r *http.Request) (pipeline.Result, []float64, bool) {
	res, ok := s.pipeline.Last()
	if !ok {
		httputil.NotFound(w, "no transform has completed yet")
		return res, nil, false
	}
	values, err := layer(res, r.URL.Query().Get("layer"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return res, nil, false
	}
	return res, values, true
}

func (s *Server) handleGridChart(w http.ResponseWriter, r *http.Request) {
	res, values, ok := s.lastLayer(w, r)
	if !ok {
		return
	}
	d := res.Dims

	steps := make([]string, d.Rows)
	for i := range steps {
		steps[i] = strconv.Itoa(i + 1)
	}
	pads := make([]string, d.Cols)
	for i := range pads {
		pads[i] = strconv.Itoa(i + 1)
	}

	lo, hi := 0.0, 1.0
	data := make([]opts.HeatMapData, 0, len(values))
	for i, v := range values {
		lo, hi = min(lo, v), max(hi, v)
		data = append(data, opts.HeatMapData{Value: []interface{}{i / d.Cols, i % d.Cols, v}})
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "dice grid", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Last transform", Subtitle: fmt.Sprintf("id=%s grid=%s active=%d", res.ID, d, res.Active)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: steps, Name: "step", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: pads, Name: "pad", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	hm.SetXAxis(steps).AddSeries("grid", data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// heatGrid lays a row-major grid out as plotter.GridXYZ with steps along X
// and pads along Y.
type heatGrid struct {
	d grid.Dims
	v []float64
}

func (g heatGrid) Dims() (c, r int)   { return g.d.Rows, g.d.Cols }
func (g heatGrid) Z(c, r int) float64 { return g.v[c*g.d.Cols+r] }
func (g heatGrid) X(c int) float64    { return float64(c + 1) }
func (g heatGrid) Y(r int) float64    { return float64(r + 1) }

func (s *Server) handleGridPNG(w http.ResponseWriter, r *http.Request) {
	res, values, ok := s.lastLayer(w, r)
	if !ok {
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("dice %s", res.ID)
	p.X.Label.Text = "step"
	p.Y.Label.Text = "pad"

	hm := plotter.NewHeatMap(heatGrid{d: res.Dims, v: values}, palette.Heat(12, 1))
	// A constant grid would give a zero-width colour range.
	hm.Min, hm.Max = min(hm.Min, 0), max(hm.Max, 1)
	p.Add(hm)

	wt, err := p.WriterTo(6*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
