package charts

import (
	"fmt"

	"github.com/usagestats/usagestats/config"
)

// ScriptCompiler turns transform source into a RowTransform.
type ScriptCompiler func(name, source string) (RowTransform, error)

// FromConfig builds requests from configured charts. With no charts
// configured the default dashboard is returned.
func FromConfig(cfgs []config.ChartConfig, compile ScriptCompiler) ([]Request, error) {
	if len(cfgs) == 0 {
		return DefaultRequests(), nil
	}

	out := make([]Request, 0, len(cfgs))
	for _, c := range cfgs {
		req, err := fromChartConfig(c, compile)
		if err != nil {
			return nil, fmt.Errorf("chart %s: %w", c.Name, err)
		}
		out = append(out, req)
	}
	return out, nil
}

func fromChartConfig(c config.ChartConfig, compile ScriptCompiler) (Request, error) {
	kind, err := ParseKind(c.Kind)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		Name:       c.Name,
		ElementID:  c.ElementID,
		Title:      c.Title,
		Kind:       kind,
		ValueField: c.ValueField,
		LabelField: c.LabelField,
	}
	if req.ElementID == "" {
		req.ElementID = c.Name
	}
	if req.Title == "" {
		req.Title = c.Name
	}

	switch c.Transform {
	case "":
	case "month":
		req.Transform = MonthLabelTransform
	case "script":
		if compile == nil {
			return Request{}, fmt.Errorf("scripted transform configured but scripting is unavailable")
		}
		fn, err := compile(c.Name, c.Script)
		if err != nil {
			return Request{}, err
		}
		req.Transform = fn
	default:
		return Request{}, fmt.Errorf("unknown transform %q", c.Transform)
	}
	return req, nil
}
