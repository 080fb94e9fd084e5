package sheet

import (
	"time"
)

// Record is one extracted row.
type Record struct {
	Label  string   `json:"label"`
	Value  string   `json:"value"`
	Fields []string `json:"fields,omitempty"`
	Raw    string   `json:"-"` // row text as it appeared on the page
}

// Sheet is the result of a single scrape.
type Sheet struct {
	Site            string    `json:"site"`
	Ticker          string    `json:"ticker,omitempty"`
	URL             string    `json:"url"`
	SelectorVersion string    `json:"selector_version"`
	ScrapedAt       time.Time `json:"scraped_at"`
	Matches         int       `json:"matches"`
	Skipped         int       `json:"skipped"`
	Records         []Record  `json:"records"`
}

// New creates an empty sheet.
func New(site, ticker, url, selectorVersion string) *Sheet {
	return &Sheet{
		Site:            site,
		Ticker:          ticker,
		URL:             url,
		SelectorVersion: selectorVersion,
		ScrapedAt:       time.Now().UTC(),
		Records:         make([]Record, 0),
	}
}

// Add appends a record.
func (s *Sheet) Add(r Record) {
	s.Records = append(s.Records, r)
}

// Empty reports whether the selector matched nothing. A sheet whose rows were
// all skipped is not empty; the markup was found but did not fit the rule.
func (s *Sheet) Empty() bool {
	return s.Matches == 0
}

// Map returns label -> value. Later records with the same label win.
func (s *Sheet) Map() map[string]string {
	m := make(map[string]string, len(s.Records))
	for _, r := range s.Records {
		m[r.Label] = r.Value
	}
	return m
}

// Items returns the label of every record in document order, duplicates
// included. List pages use it as the scraped list.
func (s *Sheet) Items() []string {
	items := make([]string, 0, len(s.Records))
	for _, r := range s.Records {
		items = append(items, r.Label)
	}
	return items
}

// Values returns the value of every record in document order.
func (s *Sheet) Values() []string {
	values := make([]string, 0, len(s.Records))
	for _, r := range s.Records {
		values = append(values, r.Value)
	}
	return values
}
