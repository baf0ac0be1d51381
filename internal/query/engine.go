package query

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Engine evaluates selector rules against documents.
//
// Engine is safe for concurrent use.
type Engine struct {
	parser *Parser
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithNoIndexPattern replaces the pattern that exempts steps from implicit
// :eq(0) narrowing.
func WithNoIndexPattern(re *regexp.Regexp) Option {
	return func(e *Engine) {
		e.parser = NewParser(re)
	}
}

// WithLogger sets the logger used for parse failures.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		parser: NewParser(nil),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parser returns the rule parser used by the engine.
func (e *Engine) Parser() *Parser {
	return e.parser
}

// ExtractOne returns a single value: text, markup or a resolved attribute.
// A rule that matches nothing yields "".
func (e *Engine) ExtractOne(doc *Document, rule, urlBase string) string {
	if v, ok := wholeDocument(doc, rule); ok {
		return v
	}

	r := e.parser.Parse(rule, ModeSingle)
	sel := e.walk(doc, r.Steps)
	if sel == nil {
		return ""
	}
	return extract(sel, r.Extractor, urlBase)
}

// wholeDocument answers the rules that address the document itself rather
// than a selection: Text and Html, bare or under body.
func wholeDocument(doc *Document, rule string) (string, bool) {
	switch rule {
	case "Text", "body&&Text":
		return doc.Text(), true
	case "Html", "body&&Html":
		return doc.HTML(), true
	}
	return "", false
}

// ExtractAll returns the serialized markup of every element matched by rule.
// A rule that matches nothing yields an empty slice. Text and Html yield the
// document's text or markup as the only item.
func (e *Engine) ExtractAll(doc *Document, rule string) []string {
	if v, ok := wholeDocument(doc, rule); ok {
		return []string{v}
	}
	r := e.parser.Parse(rule, ModeArray)
	sel := e.walk(doc, r.Steps)
	if sel == nil {
		return []string{}
	}

	items := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		h, err := goquery.OuterHtml(s)
		if err != nil {
			e.logger.Debug("serialize element", zap.String("rule", rule), zap.Error(err))
			return
		}
		items = append(items, h)
	})
	return items
}

// ExtractPairs evaluates textRule and urlRule inside each element matched by
// rule and joins them as "text$url". Text and Html as rule make the whole
// document the single element.
func (e *Engine) ExtractPairs(doc *Document, rule, textRule, urlRule, urlBase string) []string {
	if _, ok := wholeDocument(doc, rule); ok {
		text := strings.TrimSpace(e.ExtractOne(doc, textRule, ""))
		return []string{text + "$" + e.ExtractOne(doc, urlRule, urlBase)}
	}
	r := e.parser.Parse(rule, ModeArray)
	sel := e.walk(doc, r.Steps)
	if sel == nil {
		return []string{}
	}

	items := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		sub := subDocument(s)
		text := strings.TrimSpace(e.ExtractOne(sub, textRule, ""))
		link := e.ExtractOne(sub, urlRule, urlBase)
		items = append(items, text+"$"+link)
	})
	return items
}

// Pd parses markup and extracts a single value, resolving links against
// urlBase.
func (e *Engine) Pd(markup, rule, urlBase string) string {
	doc, err := Parse(markup)
	if err != nil {
		e.logger.Debug("pd", zap.String("rule", rule), zap.Error(err))
		return ""
	}
	return e.ExtractOne(doc, rule, urlBase)
}

// Pdfh parses markup and extracts a single value without link resolution.
func (e *Engine) Pdfh(markup, rule string) string {
	return e.Pd(markup, rule, "")
}

// Pdfa parses markup and extracts every matched fragment.
func (e *Engine) Pdfa(markup, rule string) []string {
	doc, err := Parse(markup)
	if err != nil {
		e.logger.Debug("pdfa", zap.String("rule", rule), zap.Error(err))
		return []string{}
	}
	return e.ExtractAll(doc, rule)
}

// Pdfl parses markup and extracts "text$url" pairs.
func (e *Engine) Pdfl(markup, rule, textRule, urlRule, urlBase string) []string {
	doc, err := Parse(markup)
	if err != nil {
		e.logger.Debug("pdfl", zap.String("rule", rule), zap.Error(err))
		return []string{}
	}
	return e.ExtractPairs(doc, rule, textRule, urlRule, urlBase)
}

// walk narrows the document step by step. It returns nil as soon as a step
// matches nothing.
func (e *Engine) walk(doc *Document, steps []Step) *goquery.Selection {
	if len(steps) == 0 {
		return nil
	}

	var cur *goquery.Selection
	for _, step := range steps {
		switch {
		case step.Selector == "" && cur != nil:
		case cur == nil:
			cur = doc.doc.Find(step.Selector)
		default:
			cur = cur.Find(step.Selector)
		}
		if cur == nil {
			return nil
		}

		cur = applyPosition(cur, step.Position)
		if cur.Length() == 0 {
			return nil
		}

		if len(step.Excludes) > 0 {
			cur = cur.Clone()
			for _, ex := range step.Excludes {
				cur.Find(ex).Remove()
			}
		}
	}
	return cur
}

// applyPosition filters sel by a jQuery style positional filter.
func applyPosition(sel *goquery.Selection, pos Position) *goquery.Selection {
	n := sel.Length()
	switch pos.Kind {
	case PosEq:
		return sel.Eq(pos.N)
	case PosFirst:
		return sel.First()
	case PosLast:
		return sel.Last()
	case PosLt:
		end := pos.N
		if end < 0 {
			end += n
		}
		if end <= 0 {
			return sel.Slice(0, 0)
		}
		if end > n {
			end = n
		}
		return sel.Slice(0, end)
	case PosGt:
		start := pos.N
		if start < 0 {
			start += n
		}
		start++
		if start < 0 {
			start = 0
		}
		if start >= n {
			return sel.Slice(0, 0)
		}
		return sel.Slice(start, n)
	case PosEven:
		return sel.FilterFunction(func(i int, _ *goquery.Selection) bool { return i%2 == 0 })
	case PosOdd:
		return sel.FilterFunction(func(i int, _ *goquery.Selection) bool { return i%2 == 1 })
	}
	return sel
}

// extract applies the extractor to the final match set.
func extract(sel *goquery.Selection, ex Extractor, urlBase string) string {
	switch ex.Kind {
	case ExtractOuterHTML:
		return outerHTML(sel)
	case ExtractText:
		return sel.Text()
	case ExtractHTML:
		h, err := sel.Html()
		if err != nil {
			return ""
		}
		return h
	}

	for _, attr := range ex.Attrs {
		value, _ := sel.Attr(attr)
		if strings.Contains(strings.ToLower(attr), "style") && strings.Contains(value, "url(") {
			value = unwrapCSSURL(value)
		}
		if value != "" && urlBase != "" {
			value = ResolveURL(attr, value, urlBase)
		}
		if value != "" {
			return value
		}
	}
	return ""
}
