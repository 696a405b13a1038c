package bench

import (
	"strings"

	"github.com/roach88/relgate/internal/document"
)

// Record is a single benchmark timing.
type Record struct {
	Key   string
	Time  string
	Error string
}

// Records maps benchmark key to its latest timing.
type Records map[string]Record

// Layout gives the token positions of a timing line.
type Layout struct {
	Key   int `yaml:"key" json:"key"`
	Time  int `yaml:"time" json:"time"`
	Error int `yaml:"error" json:"error"`
}

// BencherLayout matches "test NAME ... bench: TIME ns/iter (+/- ERR)".
var BencherLayout = Layout{Key: 1, Time: 4, Error: 7}

func (l Layout) width() int {
	return max(l.Key, l.Time, l.Error) + 1
}

// ParseReport parses raw harness output. Later lines for the same key
// overwrite earlier ones. Only undecodable input is an error.
func ParseReport(raw []byte, layout Layout) (Records, error) {
	text, err := document.Decode("benchmark report", raw)
	if err != nil {
		return nil, err
	}

	records := make(Records)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasSuffix(line, ")") {
			continue
		}
		rec, ok := parseLine(line, layout)
		if !ok {
			continue
		}
		records[rec.Key] = rec
	}
	return records, nil
}

func parseLine(line string, layout Layout) (Record, bool) {
	fields := strings.Fields(line)
	if len(fields) < layout.width() {
		return Record{}, false
	}
	errMargin := strings.Trim(fields[layout.Error], "()")
	errMargin = strings.TrimPrefix(errMargin, "±")
	return Record{
		Key:   fields[layout.Key],
		Time:  fields[layout.Time],
		Error: errMargin,
	}, true
}
