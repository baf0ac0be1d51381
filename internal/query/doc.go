// Package query implements the selector rule language plugins use to pull
// values out of fetched HTML and JSON documents.
//
// A rule is a space separated path of CSS selectors, optionally followed by
// an extractor after a final "&&":
//
//	ul.list li:eq(-1) a&&href
//	div.content--script--style&&Text
//	img&&data-original||src
//
// Each step may carry a jQuery style position filter (:eq(n), :lt(n), :gt(n),
// :first, :last, :even, :odd) and an exclusion suffix ("--sel1--sel2") naming
// subtrees removed from the match before the walk continues. Steps before the
// last are narrowed to their first match unless they are already positional.
// The final step is narrowed as well in single value extraction, so
//
//	pdfh(html, "ul li a&&Text")
//
// returns the text of one anchor while
//
//	pdfa(html, "ul li")
//
// returns every li of the first ul as serialized HTML.
//
// Extractors:
//   - Text: text content of the match
//   - Html: inner HTML of the first element
//   - attr1||attr2: first non-empty attribute; linkable attributes are
//     resolved against the base URL and style url(...) values are unwrapped
//
// An empty match at any step yields an empty result, never an error.
package query
