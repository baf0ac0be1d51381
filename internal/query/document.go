package query

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML document. Extraction never mutates it, so one
// Document may be queried by many rules.
type Document struct {
	doc *goquery.Document
}

// Parse parses HTML text into a Document.
func Parse(markup string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Text returns the text of the body, or of the whole document when the body
// has none.
func (d *Document) Text() string {
	if t := d.doc.Find("body").Text(); t != "" {
		return t
	}
	return d.doc.Text()
}

// HTML returns the inner markup of the body, or the whole document markup
// when the body is empty.
func (d *Document) HTML() string {
	if h, err := d.doc.Find("body").Html(); err == nil && h != "" {
		return h
	}
	h, _ := d.doc.Html()
	return h
}

// Selection exposes the underlying goquery selection of the document root.
func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

// subDocument builds a standalone document holding a copy of the first node
// of sel under a synthetic html/body pair. Table fragments such as <tr> or
// <td> survive this, where reparsing their markup would drop them.
func subDocument(sel *goquery.Selection) *Document {
	clone := sel.First().Clone()
	if clone.Length() == 0 {
		return &Document{doc: goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})}
	}

	root := &html.Node{Type: html.DocumentNode}
	htmlNode := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	root.AppendChild(htmlNode)
	htmlNode.AppendChild(&html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head})
	htmlNode.AppendChild(body)
	body.AppendChild(clone.Get(0))

	return &Document{doc: goquery.NewDocumentFromNode(root)}
}

// outerHTML serializes every node of sel and concatenates the results.
func outerHTML(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		h, err := goquery.OuterHtml(s)
		if err == nil {
			b.WriteString(h)
		}
	})
	return b.String()
}
