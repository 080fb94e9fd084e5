// Package scraper runs the fetch, parse, select and extract pipeline for a site.
//
// A Scraper pairs a fetch.Fetcher with a site.Site. Each call to Scrape performs
// one GET, parses the body with goquery, selects rows with the site's selector
// and applies the site's rule to build a sheet.Sheet. Transport and parse
// failures are returned as errors; a selector that matches nothing is not an
// error and yields an empty sheet, logged as a warning with the selector version.
package scraper
