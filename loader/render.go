package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	echarts "github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/usagestats/usagestats/charts"
)

const (
	chartWidth  = "100%"
	chartHeight = "320px"
)

// Chart is a rendered chart ready to be bound to its container.
type Chart struct {
	ContainerID string
	Option      template.JS
}

type optionRenderer interface {
	Validate()
	JSONNotEscaped() template.HTML
}

// renderChart builds the echarts option for a dataset.
func renderChart(req charts.Request, ds charts.Dataset) (Chart, error) {
	id := charts.ContainerID(req.ElementID)
	initOpts := echarts.WithInitializationOpts(opts.Initialization{
		ChartID: id,
		Width:   chartWidth,
		Height:  chartHeight,
	})
	titleOpts := echarts.WithTitleOpts(opts.Title{Title: req.Title})
	tooltipOpts := echarts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"})

	var chart optionRenderer
	switch ds.Kind {
	case charts.KindBar:
		bar := echarts.NewBar()
		bar.SetGlobalOptions(initOpts, titleOpts, tooltipOpts)
		data := make([]opts.BarData, len(ds.Values))
		for i, v := range ds.Values {
			data[i] = opts.BarData{Value: v}
		}
		bar.SetXAxis(ds.CategoryLabels()).AddSeries(ds.Label, data)
		chart = bar
	case charts.KindArea:
		line := echarts.NewLine()
		line.SetGlobalOptions(initOpts, titleOpts, tooltipOpts)
		data := make([]opts.LineData, len(ds.Values))
		for i, v := range ds.Values {
			data[i] = opts.LineData{Value: v}
		}
		line.SetXAxis(ds.CategoryLabels()).
			AddSeries(ds.Label, data, echarts.WithAreaStyleOpts(opts.AreaStyle{}))
		chart = line
	default:
		return Chart{}, fmt.Errorf("%w: unsupported chart kind %q", ErrRender, ds.Kind)
	}

	chart.Validate()
	return Chart{
		ContainerID: id,
		Option:      scriptSafe(chart.JSONNotEscaped()),
	}, nil
}

// scriptSafe escapes <, > and & inside JSON strings so the option can sit in
// an inline script without closing it.
func scriptSafe(option template.HTML) template.JS {
	var buf bytes.Buffer
	json.HTMLEscape(&buf, []byte(option))
	return template.JS(buf.String())
}
