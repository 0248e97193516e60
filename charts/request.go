// Package charts describes the dashboard charts: which results resource each one reads,
// how rows are reshaped and how a fetched resource becomes a plottable dataset.
package charts

import (
	"fmt"
	"strings"
)

// Kind selects the chart style.
type Kind string

const (
	KindBar  Kind = "bar"
	KindArea Kind = "area"
)

// ParseKind maps a config value to a Kind. Empty defaults to bar.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(KindBar):
		return KindBar, nil
	case string(KindArea):
		return KindArea, nil
	}
	return "", fmt.Errorf("unknown chart kind %q", s)
}

// Row is one record of a results resource.
type Row map[string]interface{}

// RowTransform reshapes a row before it is plotted.
type RowTransform func(Row) (Row, error)

// Request describes one fetch-and-render unit.
type Request struct {
	Name       string
	ElementID  string
	Title      string
	Kind       Kind
	ValueField string
	LabelField string
	Transform  RowTransform
}

const (
	resultsPrefix = "/results/results-"
	canvasSuffix  = "-canvas"
	graphSuffix   = "-graph"
)

// ResourcePath returns the results path a chart reads. The first "-canvas"
// in the name is dropped.
func ResourcePath(name string) string {
	return resultsPrefix + strings.Replace(name, canvasSuffix, "", 1) + ".json"
}

// ContainerID is the id of the element a chart is bound to.
func ContainerID(elementID string) string {
	return elementID + graphSuffix
}

// ElementSelector is the CSS selector of a chart's container, used as a page anchor.
func ElementSelector(elementID string) string {
	return "#" + ContainerID(elementID)
}

// DefaultRequests returns the five dashboard charts.
func DefaultRequests() []Request {
	return []Request{
		{Name: "minor-month", ElementID: "minor-month", Title: "Unique IPs per month (Minor)", Kind: KindArea, ValueField: "uniques", LabelField: "range", Transform: MonthLabelTransform},
		{Name: "periodic-month", ElementID: "periodic-month", Title: "Unique IPs per month (Periodic)", Kind: KindArea, ValueField: "uniques", LabelField: "range", Transform: MonthLabelTransform},
		{Name: "most-tables", ElementID: "most-tables", Title: "Most Tables", Kind: KindBar, ValueField: "num_tables", LabelField: "num_tables"},
		{Name: "most-servers", ElementID: "most-servers", Title: "Most Server", Kind: KindBar, ValueField: "num_servers", LabelField: "num_servers"},
		// "period" is both the title and the label field; kept as configured.
		{Name: "github-stars", ElementID: "github-stars", Title: "period", Kind: KindBar, ValueField: "count", LabelField: "period"},
	}
}
