// Package usagelog reads the daily update-check logs. Each file is named
// after its day (YYYY-MM-DD.log) and holds one tab-separated line per check.
package usagelog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the layout of log file names and of result date ranges.
const DateLayout = "2006-01-02"

const logExt = ".log"

var (
	ErrUnknownLogType = errors.New("unknown log type")
	ErrNoLogs         = errors.New("no log files")
)

type LogType string

const (
	Minor    LogType = "minor"
	Periodic LogType = "periodic"
)

// ParseLogType accepts "minor" and "periodic". "both" is expanded by callers.
func ParseLogType(s string) (LogType, error) {
	switch LogType(s) {
	case Minor, Periodic:
		return LogType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLogType, s)
}

// Entry is one parsed log line.
//
//	minor:    timestamp, version, ip, user-agent, lang
//	periodic: timestamp, version, ip, num_servers, system, num_tables, ...
type Entry struct {
	Timestamp  string
	Version    string
	IP         string
	UserAgent  string
	Lang       string
	System     string
	NumServers int
	NumTables  int
}

// Day holds the IPs seen in one log file, one element per line.
type Day struct {
	Date time.Time
	IPs  []string
}

// IPInfo aggregates every line seen from one address.
type IPInfo struct {
	IP         string
	Hits       int
	FirstSeen  time.Time
	LastSeen   time.Time
	NumServers int
	NumTables  int
}

// Logs is the parsed content of one log directory.
type Logs struct {
	Type    LogType
	Days    []Day
	Uniques map[string]*IPInfo
}

// HitsPerIP returns the number of lines per address across all days.
func (l *Logs) HitsPerIP() map[string]int {
	hits := make(map[string]int, len(l.Uniques))
	for ip, info := range l.Uniques {
		hits[ip] = info.Hits
	}
	return hits
}

// ParseLine splits a tab-separated line. Lines with fewer than three fields
// carry no address and are rejected. Periodic lines whose counts do not parse
// report zero servers and zero tables.
func ParseLine(line string, logType LogType) (Entry, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("malformed line: %d fields", len(fields))
	}
	e := Entry{
		Timestamp: fields[0],
		Version:   fields[1],
		IP:        strings.TrimSpace(fields[2]),
	}

	switch logType {
	case Minor:
		e.UserAgent = field(fields, 3)
		e.Lang = field(fields, 4)
	case Periodic:
		e.System = field(fields, 4)
		servers, errServers := strconv.Atoi(strings.TrimSpace(field(fields, 3)))
		tables, errTables := strconv.Atoi(strings.TrimSpace(field(fields, 5)))
		if errServers == nil && errTables == nil {
			e.NumServers, e.NumTables = servers, tables
		}
	default:
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownLogType, logType)
	}
	return e, nil
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// LogFiles lists the regular *.log files of dir sorted by name.
func LogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read log dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != logExt {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// FileDate parses the day a log file covers from its name.
func FileDate(name string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSuffix(filepath.Base(name), logExt))
	if err != nil {
		return time.Time{}, fmt.Errorf("log file %s: %w", name, err)
	}
	return d, nil
}

// Read parses every log file in dir. Malformed lines are skipped.
func Read(dir string, logType LogType) (*Logs, error) {
	if _, err := ParseLogType(string(logType)); err != nil {
		return nil, err
	}
	files, err := LogFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoLogs, dir)
	}

	logs := &Logs{Type: logType, Uniques: make(map[string]*IPInfo)}
	for _, name := range files {
		date, err := FileDate(name)
		if err != nil {
			return nil, err
		}
		day, err := readDay(filepath.Join(dir, name), date, logType, logs.Uniques)
		if err != nil {
			return nil, err
		}
		logs.Days = append(logs.Days, day)
	}
	return logs, nil
}

func readDay(path string, date time.Time, logType LogType, uniques map[string]*IPInfo) (Day, error) {
	f, err := os.Open(path)
	if err != nil {
		return Day{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	day := Day{Date: date}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry, err := ParseLine(scanner.Text(), logType)
		if err != nil {
			continue
		}
		day.IPs = append(day.IPs, entry.IP)
		record(uniques, entry, date)
	}
	if err := scanner.Err(); err != nil {
		return Day{}, fmt.Errorf("scan %s: %w", path, err)
	}
	return day, nil
}

func record(uniques map[string]*IPInfo, e Entry, date time.Time) {
	info, ok := uniques[e.IP]
	if !ok {
		uniques[e.IP] = &IPInfo{
			IP:         e.IP,
			Hits:       1,
			FirstSeen:  date,
			LastSeen:   date,
			NumServers: e.NumServers,
			NumTables:  e.NumTables,
		}
		return
	}
	info.Hits++
	if date.Before(info.FirstSeen) {
		info.FirstSeen = date
	}
	if date.After(info.LastSeen) {
		info.LastSeen = date
	}
	if e.NumServers > info.NumServers {
		info.NumServers = e.NumServers
	}
	if e.NumTables > info.NumTables {
		info.NumTables = e.NumTables
	}
}
