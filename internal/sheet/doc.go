// Package sheet holds the records extracted from one scrape.
//
// A Sheet is rebuilt from scratch on every scrape and never persisted. Its
// records keep document order for line-oriented output, and Map collapses them
// into a label to value mapping where a later duplicate label overwrites an
// earlier one.
package sheet
