package site

import (
	"fmt"
	"maps"
	"strings"
)

// Override patches a catalogue entry, or defines a new one when the name is
// not yet known. Unset fields keep their current value.
type Override struct {
	Description string    `yaml:"description,omitempty"`
	URL         string    `yaml:"url,omitempty"`
	TickerCase  string    `yaml:"ticker_case,omitempty"`
	Selector    *Selector `yaml:"selector,omitempty"`
	Rule        string    `yaml:"rule,omitempty"`
	KeyIndex    *int      `yaml:"key_index,omitempty"`
	ValueIndex  *int      `yaml:"value_index,omitempty"`
	Separator   string    `yaml:"separator,omitempty"`
}

// Apply merges overrides into the catalogue. Each resulting site must
// validate; on error the catalogue is left unchanged.
func (c *Catalogue) Apply(overrides map[string]Override) error {
	sites := maps.Clone(c.sites)
	for name, o := range overrides {
		key := strings.ToLower(strings.TrimSpace(name))
		s, ok := sites[key]
		if !ok {
			s = Site{Name: key, TickerCase: TickerUpper}
		}

		if o.Description != "" {
			s.Description = o.Description
		}
		if o.URL != "" {
			s.URLTemplate = o.URL
		}
		if o.TickerCase != "" {
			s.TickerCase = TickerCase(strings.ToLower(o.TickerCase))
		}
		if o.Selector != nil {
			sel := *o.Selector
			// A selector without a version is still a change; mark it so logs show it.
			if sel.Version == "" {
				sel.Version = "override"
			}
			s.Selector = sel
		}
		if o.Rule != "" {
			s.Rule = Rule(strings.ToLower(o.Rule))
		}
		if o.KeyIndex != nil {
			s.KeyIndex = *o.KeyIndex
		}
		if o.ValueIndex != nil {
			s.ValueIndex = *o.ValueIndex
		}
		if o.Separator != "" {
			s.Separator = o.Separator
		}

		if err := s.Validate(); err != nil {
			return fmt.Errorf("applying override %s: %w", name, err)
		}
		sites[key] = s
	}
	c.sites = sites
	return nil
}
