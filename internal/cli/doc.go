// Package cli implements the command-line interface for finscrape.
//
// The cli package provides the Cobra-based CLI: balance-sheet scrapes one
// site for a ticker and writes text, JSON, a table or an xlsx workbook; names
// and usernames scrape the name-list page; serve runs the HTTP wrapper; sites
// lists the catalogue with selector versions. It coordinates the config,
// fetch, scraper, server and username packages.
package cli
