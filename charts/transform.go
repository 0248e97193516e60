package charts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrTransform = errors.New("row transform failed")

const (
	rangeField     = "range"
	rangeSeparator = " - "
	dayLayout      = "2006-01-02"
	monthLayout    = "January 2006"
)

// MonthLabel turns "2023-01-01 - 2023-01-31" into "January 2023".
// Only the part before the first " - " is read.
func MonthLabel(dateRange string) (string, error) {
	start, _, _ := strings.Cut(dateRange, rangeSeparator)
	t, err := time.Parse(dayLayout, strings.TrimSpace(start))
	if err != nil {
		return "", fmt.Errorf("%w: range %q: %v", ErrTransform, dateRange, err)
	}
	return t.Format(monthLayout), nil
}

// MonthLabelTransform rewrites the row's "range" field with MonthLabel.
// The input row is not modified.
func MonthLabelTransform(row Row) (Row, error) {
	raw, ok := row[rangeField].(string)
	if !ok {
		return nil, fmt.Errorf("%w: field %q missing or not a string", ErrTransform, rangeField)
	}
	label, err := MonthLabel(raw)
	if err != nil {
		return nil, err
	}

	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	out[rangeField] = label
	return out, nil
}
