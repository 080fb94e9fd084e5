// Package site describes the pages finscrape knows how to scrape.
//
// A Site bundles a URL template, a versioned structural Selector and an
// extraction Rule. Selectors match on tag name plus the exact class attribute
// string copied from the page's rendered markup, so they break silently when a
// site changes its markup. Each selector carries a Version so that drift fixes
// can be tracked and overridden from a sites file without a rebuild.
package site
