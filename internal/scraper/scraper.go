package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/finscrape/finscrape/internal/extract"
	"github.com/finscrape/finscrape/internal/fetch"
	"github.com/finscrape/finscrape/internal/logger"
	"github.com/finscrape/finscrape/internal/sheet"
	"github.com/finscrape/finscrape/internal/site"
)

// ErrParse wraps failures to parse a fetched body as HTML.
var ErrParse = errors.New("parsing page")

// Scraper handles fetching and extracting one site
type Scraper struct {
	fetcher fetch.Fetcher
	site    site.Site
}

// New creates a new Scraper instance
func New(f fetch.Fetcher, s site.Site) *Scraper {
	return &Scraper{
		fetcher: f,
		site:    s,
	}
}

// Site returns the site this scraper targets.
func (s *Scraper) Site() site.Site {
	return s.site
}

// Scrape fetches the site's page for ticker and extracts its records.
func (s *Scraper) Scrape(ctx context.Context, ticker string) (*sheet.Sheet, error) {
	start := time.Now()
	name := s.site.Name
	url := s.site.URL(ticker)

	defer func() {
		logger.RecordTiming(metric(name, "duration"), time.Since(start))
	}()

	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		logger.IncrCounter(metric(name, "error"))
		return nil, fmt.Errorf("fetching %s: %w", name, err)
	}

	sh, err := s.parse(bytes.NewReader(body), ticker, url)
	if err != nil {
		logger.IncrCounter(metric(name, "error"))
		return nil, err
	}

	fields := logger.Fields{
		"site":             name,
		"url":              url,
		"selector":         s.site.Selector.String(),
		"selector_version": s.site.Selector.Version,
		"matches":          sh.Matches,
		"records":          len(sh.Records),
	}

	if sh.Empty() {
		logger.IncrCounter(metric(name, "empty"))
		logger.Warn("selector matched nothing", fields)
		return sh, nil
	}
	if sh.Skipped > 0 {
		fields["skipped"] = sh.Skipped
		fields["min_segments"] = s.site.MinSegments()
		logger.Warn("rows too short for extraction rule", fields)
	}

	logger.IncrCounter(metric(name, "ok"))
	logger.SetGauge(metric(name, "records"), float64(len(sh.Records)))
	logger.Debug("scrape finished", fields)

	return sh, nil
}

// parse extracts records from HTML
func (s *Scraper) parse(r io.Reader, ticker, url string) (*sheet.Sheet, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	sh := sheet.New(s.site.Name, ticker, url, s.site.Selector.Version)
	if !s.site.NeedsTicker() {
		sh.Ticker = ""
	}

	rows := extract.Extract(doc.Selection, s.site.Selector, s.site.Sep())
	sh.Matches = len(rows)

	for _, row := range rows {
		// header rows made only of <th> carry no cells and produce nothing
		if s.site.Rule == site.RuleCells && len(row.Cells) == 0 {
			continue
		}
		rec, ok := s.record(row)
		if !ok {
			sh.Skipped++
			continue
		}
		sh.Add(rec)
	}

	return sh, nil
}

// record applies the site's rule to one row. Rows with too few segments
// for the rule report false.
func (s *Scraper) record(row extract.Row) (sheet.Record, bool) {
	switch s.site.Rule {
	case site.RulePair, site.RulePositional:
		keyIdx, valIdx := 0, 1
		if s.site.Rule == site.RulePositional {
			keyIdx, valIdx = s.site.KeyIndex, s.site.ValueIndex
		}
		label, ok := row.Segment(keyIdx)
		if !ok {
			return sheet.Record{}, false
		}
		value, ok := row.Segment(valIdx)
		if !ok {
			return sheet.Record{}, false
		}
		return sheet.Record{
			Label: strings.TrimSpace(label),
			Value: strings.TrimSpace(value),
			Raw:   row.Plain,
		}, true

	case site.RuleCells:
		if len(row.Cells) == 0 {
			return sheet.Record{}, false
		}
		rec := sheet.Record{
			Label:  strings.TrimSpace(row.Cells[0]),
			Fields: row.Cells,
			Raw:    row.Plain,
		}
		if len(row.Cells) > 1 {
			rec.Value = strings.TrimSpace(row.Cells[1])
		}
		return rec, true

	case site.RuleList:
		return sheet.Record{
			Label: strings.TrimSpace(row.Plain),
			Raw:   row.Plain,
		}, true
	}
	return sheet.Record{}, false
}

func metric(siteName, name string) string {
	return "scrape." + siteName + "." + name
}
