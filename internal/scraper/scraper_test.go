package scraper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finscrape/finscrape/internal/fetch"
	"github.com/finscrape/finscrape/internal/logger"
	"github.com/finscrape/finscrape/internal/sheet"
	"github.com/finscrape/finscrape/internal/site"
)

const (
	yahooHTML = `<html><body><div class="M(0) Whs(n) BdEnd Bdc($seperatorColor) D(itb)">` +
		`<div class="D(tbr) fi-row Bgc($hoverBgColor):h"><div><span>Total Assets</span></div><div><span>52,148,000</span></div><div><span>34,309,000</span></div></div>` +
		`<div class="D(tbr) fi-row Bgc($hoverBgColor):h"><div><span>Total Liabilities</span></div><div><span>28,418,000</span></div></div>` +
		`<div class="D(tbr) fi-row Bgc($hoverBgColor):h"><div><span>Total Assets</span></div><div><span>99</span></div></div>` +
		`</div></body></html>`

	marketWatchHTML = `<html><body><table class="crDataTable">` +
		`<tr><th>Item</th><th>2019</th><th>2020</th></tr>` +
		`<tr><td>i</td><td>Cash &amp; Short Term Investments</td><td>2016</td><td>2017</td><td>2018</td><td>2019</td><td>19.38B</td></tr>` +
		`<tr><td>i</td><td>Total Accounts Receivable</td><td>2016</td><td>2017</td><td>2018</td><td>2019</td><td>1.89B</td></tr>` +
		`</table></body></html>`

	zacksHTML = `<html><body><table>` +
		`<tr><th>Assets</th><th>12/31/2019</th></tr>` +
		`<tr><td>Cash &amp; Equivalents</td><td>6,268</td><td>3,686</td></tr>` +
		`<tr><td>Receivables</td><td>1,324</td></tr>` +
		`</table></body></html>`

	namesHTML = `<html><body><p>The list</p><ol><li>Olivia</li><li>Emma</li><li>Ava</li></ol><ol><li>Liam</li></ol></body></html>`
)

type fetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

func lookup(t *testing.T, name string) site.Site {
	t.Helper()
	s, err := site.Default().Lookup(name)
	require.NoError(t, err)
	return s
}

func TestScrape(t *testing.T) {
	tests := []struct {
		name        string
		site        string
		html        string
		statusCode  int
		wantErr     error
		wantMatches int
		wantSkipped int
		wantRecords []sheet.Record
	}{
		{
			name:        "yahoo pairs",
			site:        "yahoo",
			html:        yahooHTML,
			statusCode:  http.StatusOK,
			wantMatches: 3,
			wantRecords: []sheet.Record{
				{Label: "Total Assets", Value: "52,148,000"},
				{Label: "Total Liabilities", Value: "28,418,000"},
				{Label: "Total Assets", Value: "99"},
			},
		},
		{
			name:        "marketwatch positional skips short header",
			site:        "marketwatch",
			html:        marketWatchHTML,
			statusCode:  http.StatusOK,
			wantMatches: 3,
			wantSkipped: 1,
			wantRecords: []sheet.Record{
				{Label: "Cash & Short Term Investments", Value: "19.38B"},
				{Label: "Total Accounts Receivable", Value: "1.89B"},
			},
		},
		{
			name:        "zacks cells ignore th rows",
			site:        "zacks",
			html:        zacksHTML,
			statusCode:  http.StatusOK,
			wantMatches: 3,
			wantRecords: []sheet.Record{
				{Label: "Cash & Equivalents", Value: "6,268", Fields: []string{"Cash & Equivalents", "6,268", "3,686"}},
				{Label: "Receivables", Value: "1,324", Fields: []string{"Receivables", "1,324"}},
			},
		},
		{
			name:        "names from first list only",
			site:        "names",
			html:        namesHTML,
			statusCode:  http.StatusOK,
			wantMatches: 3,
			wantRecords: []sheet.Record{
				{Label: "Olivia"},
				{Label: "Emma"},
				{Label: "Ava"},
			},
		},
		{
			name:        "selector drift yields empty sheet",
			site:        "yahoo",
			html:        `<html><body><div class="new-layout">Total Assets 1</div></body></html>`,
			statusCode:  http.StatusOK,
			wantMatches: 0,
			wantRecords: []sheet.Record{},
		},
		{
			name:       "HTTP error",
			site:       "yahoo",
			statusCode: http.StatusInternalServerError,
			wantErr:    fetch.ErrStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.html))
			}))
			defer server.Close()

			s := lookup(t, tt.site)
			s.URLTemplate = server.URL + "/{ticker}"

			sh, err := New(fetch.New(), s).Scrape(context.Background(), "TSLA")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantMatches, sh.Matches)
			assert.Equal(t, tt.wantSkipped, sh.Skipped)
			require.Len(t, sh.Records, len(tt.wantRecords))
			for i, want := range tt.wantRecords {
				got := sh.Records[i]
				assert.Equal(t, want.Label, got.Label)
				assert.Equal(t, want.Value, got.Value)
				assert.Equal(t, want.Fields, got.Fields)
			}
		})
	}
}

func TestScrape_LastWriteWinsMap(t *testing.T) {
	s := lookup(t, "yahoo")
	f := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte(yahooHTML), nil
	})

	sh, err := New(f, s).Scrape(context.Background(), "TSLA")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Total Assets":      "99",
		"Total Liabilities": "28,418,000",
	}, sh.Map())
}

func TestScrape_URLAndMetadata(t *testing.T) {
	var gotURL string
	f := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		gotURL = url
		return []byte(marketWatchHTML), nil
	})

	s := lookup(t, "marketwatch")
	sh, err := New(f, s).Scrape(context.Background(), "TSLA")
	require.NoError(t, err)

	assert.Equal(t, "https://www.marketwatch.com/investing/stock/tsla/financials/balance-sheet", gotURL)
	assert.Equal(t, gotURL, sh.URL)
	assert.Equal(t, "marketwatch", sh.Site)
	assert.Equal(t, "TSLA", sh.Ticker)
	assert.Equal(t, s.Selector.Version, sh.SelectorVersion)
}

func TestScrape_NoTickerForStaticPage(t *testing.T) {
	f := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte(namesHTML), nil
	})

	sh, err := New(f, lookup(t, "names")).Scrape(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Empty(t, sh.Ticker)
}

func TestScrape_FetchErrorWrapped(t *testing.T) {
	boom := errors.New("dial tcp: no such host")
	f := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		return nil, boom
	})

	_, err := New(f, lookup(t, "zacks")).Scrape(context.Background(), "TSLA")

	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.True(t, strings.HasPrefix(err.Error(), "fetching zacks"))
	assert.False(t, errors.Is(err, ErrParse))
}

func TestScrape_SeparatorInLabel(t *testing.T) {
	html := `<div class="M(0) Whs(n) BdEnd Bdc($seperatorColor) D(itb)">` +
		`<div class="D(tbr) fi-row Bgc($hoverBgColor):h"><div>Property|Plant</div><div>10</div></div></div>`
	f := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte(html), nil
	})

	sh, err := New(f, lookup(t, "yahoo")).Scrape(context.Background(), "TSLA")
	require.NoError(t, err)

	require.Len(t, sh.Records, 1)
	// the value slot receives the second half of the label
	assert.Equal(t, "Property", sh.Records[0].Label)
	assert.Equal(t, "Plant", sh.Records[0].Value)
}

func TestRecord_RawKeepsPageText(t *testing.T) {
	f := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte(yahooHTML), nil
	})

	sh, err := New(f, lookup(t, "yahoo")).Scrape(context.Background(), "TSLA")
	require.NoError(t, err)

	assert.Equal(t, "Total Assets52,148,00034,309,000", sh.Records[0].Raw)
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logger.Default()
	logger.SetDefault(logger.New(logger.LevelInfo, &buf))
	t.Cleanup(func() { logger.SetDefault(prev) })
	return &buf
}

type logLine struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields"`
}

func entries(t *testing.T, buf *bytes.Buffer) []logLine {
	t.Helper()
	var lines []logLine
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var l logLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		lines = append(lines, l)
	}
	return lines
}

func counter(name string) int64 {
	return logger.GetMetricsSnapshot()["counters"].(map[string]int64)[name]
}

func TestScrape_DriftIsReported(t *testing.T) {
	buf := captureLogs(t)
	st := lookup(t, "yahoo")
	f := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte(`<html><body><div class="new-layout">Total Assets 1</div></body></html>`), nil
	})

	emptyBefore := counter("scrape.yahoo.empty")
	errorBefore := counter("scrape.yahoo.error")

	sh, err := New(f, st).Scrape(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.True(t, sh.Empty())

	var warn *logLine
	for _, l := range entries(t, buf) {
		if l.Message == "selector matched nothing" {
			warn = &l
		}
	}
	require.NotNil(t, warn, "expected a drift warning, got %s", buf.String())
	assert.Equal(t, "WARN", warn.Level)
	assert.Equal(t, st.Selector.Version, warn.Fields["selector_version"])
	assert.Equal(t, "yahoo", warn.Fields["site"])
	assert.EqualValues(t, 0, warn.Fields["matches"])

	assert.Equal(t, emptyBefore+1, counter("scrape.yahoo.empty"))
	assert.Equal(t, errorBefore, counter("scrape.yahoo.error"))
}

func TestScrape_FetchFailureIsNotDrift(t *testing.T) {
	buf := captureLogs(t)
	f := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		return nil, fmt.Errorf("%w: connection refused", fetch.ErrTransport)
	})

	emptyBefore := counter("scrape.yahoo.empty")
	errorBefore := counter("scrape.yahoo.error")

	_, err := New(f, lookup(t, "yahoo")).Scrape(context.Background(), "TSLA")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrTransport))

	assert.Equal(t, errorBefore+1, counter("scrape.yahoo.error"))
	assert.Equal(t, emptyBefore, counter("scrape.yahoo.empty"))
	assert.NotContains(t, buf.String(), "selector matched nothing")
}
