package site

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	DefaultTicker     = "TSLA"
	DefaultSeparator  = "|"
	tickerPlaceholder = "{ticker}"
)

// ErrUnknownSite is returned when a site name is not in the catalogue.
var ErrUnknownSite = errors.New("unknown site")

// Rule selects how a matched row becomes a record.
type Rule string

const (
	// RulePair takes segment 0 as the label and segment 1 as the value.
	RulePair Rule = "pair"
	// RulePositional takes the label and value from KeyIndex and ValueIndex.
	RulePositional Rule = "positional"
	// RuleCells collects the text of every <td> in the row.
	RuleCells Rule = "cells"
	// RuleList treats the whole row text as a single item.
	RuleList Rule = "list"
)

// Valid reports whether r is a known rule.
func (r Rule) Valid() bool {
	switch r {
	case RulePair, RulePositional, RuleCells, RuleList:
		return true
	}
	return false
}

// TickerCase controls how a ticker is written into a URL.
type TickerCase string

const (
	TickerUpper TickerCase = "upper"
	TickerLower TickerCase = "lower"
	TickerAsIs  TickerCase = "asis"
)

// Match is a structural node filter: tag name plus exact class attribute.
// An empty Class matches any element with the tag.
type Match struct {
	Tag   string `yaml:"tag" json:"tag"`
	Class string `yaml:"class,omitempty" json:"class,omitempty"`
	First bool   `yaml:"first,omitempty" json:"first,omitempty"`
}

// IsZero reports whether the match is unset.
func (m Match) IsZero() bool {
	return m.Tag == ""
}

func (m Match) String() string {
	if m.Class == "" {
		return m.Tag
	}
	return fmt.Sprintf("%s[class=%q]", m.Tag, m.Class)
}

// Selector locates rows in a page. Container is optional; when set, rows are
// searched only inside matching containers.
type Selector struct {
	Version   string `yaml:"version" json:"version"`
	Container Match  `yaml:"container,omitempty" json:"container"`
	Row       Match  `yaml:"row" json:"row"`
}

func (s Selector) String() string {
	if s.Container.IsZero() {
		return s.Row.String()
	}
	return s.Container.String() + " > " + s.Row.String()
}

// Site is one scrape target.
type Site struct {
	Name        string
	Description string
	URLTemplate string
	TickerCase  TickerCase
	Selector    Selector
	Rule        Rule
	KeyIndex    int
	ValueIndex  int
	Separator   string
}

// NeedsTicker reports whether the URL template interpolates a ticker.
func (s Site) NeedsTicker() bool {
	return strings.Contains(s.URLTemplate, tickerPlaceholder)
}

// URL renders the page URL for ticker. The ticker is path-escaped so it
// cannot alter the query or fragment of the template.
func (s Site) URL(ticker string) string {
	switch s.TickerCase {
	case TickerLower:
		ticker = strings.ToLower(ticker)
	case TickerUpper:
		ticker = strings.ToUpper(ticker)
	}
	return strings.ReplaceAll(s.URLTemplate, tickerPlaceholder, url.PathEscape(ticker))
}

// Sep returns the text separator, defaulting to "|".
func (s Site) Sep() string {
	if s.Separator == "" {
		return DefaultSeparator
	}
	return s.Separator
}

// MinSegments is the number of separator segments a row needs for the rule.
func (s Site) MinSegments() int {
	switch s.Rule {
	case RulePair:
		return 2
	case RulePositional:
		if s.KeyIndex > s.ValueIndex {
			return s.KeyIndex + 1
		}
		return s.ValueIndex + 1
	}
	return 0
}

// Validate checks that the site can be scraped.
func (s Site) Validate() error {
	if s.Name == "" {
		return errors.New("site name is empty")
	}
	if s.URLTemplate == "" {
		return fmt.Errorf("site %s: url is empty", s.Name)
	}
	if s.Selector.Row.IsZero() {
		return fmt.Errorf("site %s: row selector has no tag", s.Name)
	}
	if !s.Rule.Valid() {
		return fmt.Errorf("site %s: invalid rule %q", s.Name, s.Rule)
	}
	if s.KeyIndex < 0 || s.ValueIndex < 0 {
		return fmt.Errorf("site %s: negative segment index", s.Name)
	}
	return nil
}

// Builtin returns the sites finscrape ships with.
func Builtin() []Site {
	return []Site{
		{
			Name:        "marketwatch",
			Description: "MarketWatch balance sheet",
			URLTemplate: "https://www.marketwatch.com/investing/stock/{ticker}/financials/balance-sheet",
			TickerCase:  TickerLower,
			Selector: Selector{
				Version:   "2020-07-25",
				Container: Match{Tag: "table", Class: "crDataTable"},
				Row:       Match{Tag: "tr"},
			},
			Rule:       RulePositional,
			KeyIndex:   1,
			ValueIndex: 6,
		},
		{
			Name:        "yahoo",
			Description: "Yahoo Finance balance sheet",
			URLTemplate: "https://finance.yahoo.com/quote/{ticker}/balance-sheet?p={ticker}",
			TickerCase:  TickerUpper,
			Selector: Selector{
				Version:   "2020-07-22",
				Container: Match{Tag: "div", Class: "M(0) Whs(n) BdEnd Bdc($seperatorColor) D(itb)"},
				Row:       Match{Tag: "div", Class: "D(tbr) fi-row Bgc($hoverBgColor):h"},
			},
			Rule:       RulePair,
			KeyIndex:   0,
			ValueIndex: 1,
		},
		{
			Name:        "zacks",
			Description: "Zacks balance sheet",
			URLTemplate: "https://www.zacks.com/stock/quote/{ticker}/balance-sheet",
			TickerCase:  TickerUpper,
			Selector: Selector{
				Version:   "2020-07-25",
				Container: Match{Tag: "table"},
				Row:       Match{Tag: "tr"},
			},
			Rule: RuleCells,
		},
		{
			Name:        "names",
			Description: "Disney 1000 most popular girl names",
			URLTemplate: "https://family.disney.com/articles/1000-most-popular-girl-names/",
			TickerCase:  TickerAsIs,
			Selector: Selector{
				Version:   "2020-07-22",
				Container: Match{Tag: "ol", First: true},
				Row:       Match{Tag: "li"},
			},
			Rule: RuleList,
		},
	}
}

// Catalogue is a named set of sites.
type Catalogue struct {
	sites map[string]Site
}

// NewCatalogue builds a catalogue from sites. Later duplicates replace earlier ones.
func NewCatalogue(sites ...Site) (*Catalogue, error) {
	c := &Catalogue{sites: make(map[string]Site, len(sites))}
	for _, s := range sites {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		c.sites[strings.ToLower(s.Name)] = s
	}
	return c, nil
}

// Default returns a catalogue holding the builtin sites.
func Default() *Catalogue {
	c, err := NewCatalogue(Builtin()...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the named site.
func (c *Catalogue) Lookup(name string) (Site, error) {
	s, ok := c.sites[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Site{}, fmt.Errorf("%w: %s", ErrUnknownSite, name)
	}
	return s, nil
}

// Names returns the site names in sorted order.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.sites))
	for name := range c.sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sites returns all sites sorted by name.
func (c *Catalogue) Sites() []Site {
	names := c.Names()
	sites := make([]Site, 0, len(names))
	for _, name := range names {
		sites = append(sites, c.sites[name])
	}
	return sites
}
