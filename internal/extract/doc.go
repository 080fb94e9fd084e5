// Package extract locates rows in a parsed page and turns them into text.
//
// Rows are found by a site.Selector: tag name plus exact class attribute
// string, first on the container and then on the rows inside each container,
// in document order. A row's text is every descendant text node joined with a
// separator and split back into positional segments. There is no escaping: a
// cell whose own text contains the separator shifts every later segment.
package extract
