// Package results writes and reads the files served under /results. Every
// result is stored twice: results-<name>.csv (tab separated, header first)
// and results-<name>.json (an array of objects keyed by header).
package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const filePrefix = "results-"

// Result names shared by the generators and the dashboard.
const (
	MostServers = "most-servers"
	MostTables  = "most-tables"
	AllStars    = "all-stars"
	GitHubStars = "github-stars"
)

var (
	TableHeaders      = []string{"range", "uniques", "existing", "new"}
	DeploymentHeaders = []string{"ip", "num_servers", "num_tables", "last_seen", "first_seen", "hits"}
	StarHeaders       = []string{"user", "starred_at"}
	PeriodHeaders     = []string{"period", "count"}
)

// TableName is the result name for a log type and interval, e.g. "minor-month".
func TableName(logType, interval string) string {
	return logType + "-" + interval
}

type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the file path of a result with the given extension ("csv" or "json").
func (s *Store) Path(name, ext string) string {
	return filepath.Join(s.Dir, filePrefix+name+"."+ext)
}

// Save writes both the CSV and the JSON form.
func (s *Store) Save(name string, headers []string, rows [][]interface{}) error {
	if err := s.SaveCSV(name, headers, rows); err != nil {
		return err
	}
	return s.SaveJSON(name, headers, rows)
}

func (s *Store) SaveCSV(name string, headers []string, rows [][]interface{}) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	path := s.Path(name, "csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = csvValue(v)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// SaveJSON writes rows as objects. Cells beyond the headers are dropped and
// times become milliseconds since the epoch.
func (s *Store) SaveJSON(name string, headers []string, rows [][]interface{}) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	objects := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]interface{}, len(headers))
		for i, key := range headers {
			if i < len(row) {
				obj[key] = jsonValue(row[i])
			}
		}
		objects = append(objects, obj)
	}

	data, err := json.Marshal(objects)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := s.Path(name, "json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes results-<name>.json into v.
func (s *Store) ReadJSON(name string, v interface{}) error {
	path := s.Path(name, "json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// EpochMillis converts t to milliseconds since the Unix epoch in UTC.
func EpochMillis(t time.Time) int64 {
	return t.UTC().UnixNano() / int64(time.Millisecond)
}

func jsonValue(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return EpochMillis(t)
	}
	return v
}

func csvValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
