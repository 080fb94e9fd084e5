// Package fetch retrieves raw page bodies over HTTP.
//
// The Client issues one GET per call with a browser-like User-Agent and a
// bounded timeout, decodes gzip, deflate and brotli bodies, and reports
// transport failures, non-2xx responses and decode failures as distinct
// errors (ErrTransport, ErrStatus, ErrDecode) so callers can tell them apart
// from a page that simply matched nothing.
package fetch
