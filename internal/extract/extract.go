package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/finscrape/finscrape/internal/site"
)

// Row is one matched node reduced to text.
type Row struct {
	Plain    string   // text nodes joined with no separator
	Text     string   // text nodes joined with the separator
	Segments []string // Text split on the separator
	Cells    []string // text of each <td>, in order
}

// Segment returns segment i, or false when the row is too short.
func (r Row) Segment(i int) (string, bool) {
	if i < 0 || i >= len(r.Segments) {
		return "", false
	}
	return r.Segments[i], true
}

// Find returns the nodes matching m under root, in document order.
func Find(root *goquery.Selection, m site.Match) *goquery.Selection {
	found := root.Find(m.Tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return Matches(s, m)
	})
	if m.First {
		return found.First()
	}
	return found
}

// Matches reports whether the first node of s has m's tag and exact class string.
func Matches(s *goquery.Selection, m site.Match) bool {
	if s.Length() == 0 || goquery.NodeName(s) != m.Tag {
		return false
	}
	if m.Class == "" {
		return true
	}
	class, ok := s.Attr("class")
	return ok && class == m.Class
}

// Rows returns the row nodes selected by sel. Rows are visited container by
// container, so a row inside two nested matching containers appears twice.
func Rows(root *goquery.Selection, sel site.Selector) []*goquery.Selection {
	rows := make([]*goquery.Selection, 0)
	if sel.Container.IsZero() {
		Find(root, sel.Row).Each(func(_ int, row *goquery.Selection) {
			rows = append(rows, row)
		})
		return rows
	}

	Find(root, sel.Container).Each(func(_ int, container *goquery.Selection) {
		Find(container, sel.Row).Each(func(_ int, row *goquery.Selection) {
			rows = append(rows, row)
		})
	})
	return rows
}

// Extract selects rows and reduces each to a Row.
func Extract(root *goquery.Selection, sel site.Selector, sep string) []Row {
	nodes := Rows(root, sel)
	rows := make([]Row, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, NewRow(n, sep))
	}
	return rows
}

// NewRow reduces a single node to text.
func NewRow(s *goquery.Selection, sep string) Row {
	text := Text(s, sep)
	return Row{
		Plain:    Text(s, ""),
		Text:     text,
		Segments: Split(text, sep),
		Cells:    Cells(s),
	}
}

// Strings returns every descendant text node of s in document order,
// including whitespace-only nodes. Comments and script/style bodies are skipped.
func Strings(s *goquery.Selection) []string {
	parts := make([]string, 0)
	for _, n := range s.Nodes {
		collect(n, &parts)
	}
	return parts
}

func collect(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		*parts = append(*parts, n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, parts)
	}
}

// Text joins the text nodes of s with sep.
func Text(s *goquery.Selection, sep string) string {
	return strings.Join(Strings(s), sep)
}

// Split cuts text into positional segments. An empty text yields no segments.
func Split(text, sep string) []string {
	if text == "" {
		return []string{}
	}
	return strings.Split(text, sep)
}

// Cells returns the text of each <td> under s.
func Cells(s *goquery.Selection) []string {
	cells := make([]string, 0)
	s.Find("td").Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, Text(td, ""))
	})
	return cells
}
