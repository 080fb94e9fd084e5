// Package server exposes scrapes over HTTP.
//
// GET / scrapes the configured default site and ticker and returns the
// label to value mapping as a JSON object. Every request performs its own
// full scrape; nothing is cached between requests. GET /sites/{site}/{ticker}
// does the same for any catalogue entry and GET /metrics returns the metrics
// snapshot.
package server
