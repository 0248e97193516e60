package charts

import (
	"errors"
	"fmt"
)

// Dataset is one plottable series: a label, the values and the category axis.
type Dataset struct {
	Kind       Kind
	Label      string
	Values     []interface{}
	Categories []interface{}
}

// Column returns the series with its label first.
func (d Dataset) Column() []interface{} {
	col := make([]interface{}, 0, len(d.Values)+1)
	col = append(col, d.Label)
	return append(col, d.Values...)
}

// CategoryLabels renders the category axis as strings.
func (d Dataset) CategoryLabels() []string {
	out := make([]string, len(d.Categories))
	for i, c := range d.Categories {
		out[i] = formatValue(c)
	}
	return out
}

// BuildDataset applies the request's transform to every row and collects
// the value and label fields in response order.
func BuildDataset(req Request, rows []Row) (Dataset, error) {
	ds := Dataset{
		Kind:       req.Kind,
		Label:      seriesLabel(req),
		Values:     make([]interface{}, 0, len(rows)),
		Categories: make([]interface{}, 0, len(rows)),
	}

	for i, row := range rows {
		if req.Transform != nil {
			mapped, err := req.Transform(row)
			if err != nil {
				if !errors.Is(err, ErrTransform) {
					err = fmt.Errorf("%w: %w", ErrTransform, err)
				}
				return Dataset{}, fmt.Errorf("row %d: %w", i, err)
			}
			row = mapped
		}
		ds.Values = append(ds.Values, row[req.ValueField])
		ds.Categories = append(ds.Categories, row[req.LabelField])
	}
	return ds, nil
}

func seriesLabel(req Request) string {
	if req.Kind == KindArea {
		return req.Title
	}
	return req.LabelField
}

func formatValue(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	default:
		return fmt.Sprint(n)
	}
}
