package query

import (
	"regexp"
	"strconv"
	"strings"
)

// Mode selects how the final step of a rule is narrowed.
type Mode int

const (
	// ModeSingle narrows every step, including the last, to its first match
	// and splits a trailing extractor off the rule.
	ModeSingle Mode = iota

	// ModeArray keeps every match of the final step. The whole rule is a
	// path; "&&" only separates steps.
	ModeArray
)

// PositionKind identifies a jQuery style positional filter.
type PositionKind int

// Positional filters.
const (
	PosNone PositionKind = iota
	PosEq
	PosLt
	PosGt
	PosFirst
	PosLast
	PosEven
	PosOdd
)

// Position is the positional filter applied to a step's match set.
type Position struct {
	Kind PositionKind
	N    int
}

// Step is one level of a rule walk.
type Step struct {
	// Selector is the CSS selector looked up below the current match set.
	Selector string

	// Position filters the step's matches.
	Position Position

	// Excludes are selectors whose subtrees are removed from the match.
	Excludes []string

	// Implicit reports whether Position was added by narrowing rather than
	// written in the rule.
	Implicit bool
}

// ExtractorKind identifies what is pulled out of the final match.
type ExtractorKind int

// Extractor kinds.
const (
	ExtractOuterHTML ExtractorKind = iota
	ExtractText
	ExtractHTML
	ExtractAttr
)

// Extractor describes the value produced from the final match set.
type Extractor struct {
	Kind  ExtractorKind
	Attrs []string
}

// Rule is a parsed selector rule.
type Rule struct {
	Source    string
	Steps     []Step
	Extractor Extractor
}

// DefaultNoIndexPattern matches steps that already denote a positional or
// unique selection and therefore never receive an implicit :eq(0).
var DefaultNoIndexPattern = regexp.MustCompile(`(?i):eq|:lt|:gt|:first|:last|:not|:even|:odd|:has|:contains|:matches|:empty|^body$`)

var (
	indexedPosPattern = regexp.MustCompile(`:(eq|lt|gt)\((-?\d+)\)$`)
	namedPosPattern   = regexp.MustCompile(`:(first|last|even|odd)$`)
)

// Parser turns rule text into Rule values.
type Parser struct {
	noIndex *regexp.Regexp
}

// NewParser creates a parser. A nil pattern selects DefaultNoIndexPattern.
func NewParser(noIndex *regexp.Regexp) *Parser {
	if noIndex == nil {
		noIndex = DefaultNoIndexPattern
	}
	return &Parser{noIndex: noIndex}
}

// Parse parses rule text for the given mode.
func (p *Parser) Parse(rule string, mode Mode) Rule {
	r := Rule{Source: rule}
	path := rule

	if mode == ModeSingle {
		if idx := strings.LastIndex(path, "&&"); idx >= 0 {
			r.Extractor = parseExtractor(path[idx+2:])
			path = path[:idx]
		}
	}

	var words []string
	for _, segment := range strings.Split(path, "&&") {
		words = append(words, splitSteps(segment)...)
	}

	for i, word := range words {
		step := parseStep(word)
		last := i == len(words)-1
		narrow := !last || mode == ModeSingle
		if narrow && step.Position.Kind == PosNone && !p.noIndex.MatchString(word) {
			step.Position = Position{Kind: PosEq, N: 0}
			step.Implicit = true
		}
		r.Steps = append(r.Steps, step)
	}

	return r
}

// IsPositional reports whether the step text is exempt from implicit
// narrowing.
func (p *Parser) IsPositional(step string) bool {
	return p.noIndex.MatchString(step)
}

// parseExtractor parses the text after the final "&&".
func parseExtractor(s string) Extractor {
	switch s {
	case "":
		return Extractor{Kind: ExtractOuterHTML}
	case "Text":
		return Extractor{Kind: ExtractText}
	case "Html":
		return Extractor{Kind: ExtractHTML}
	}
	var attrs []string
	for _, a := range strings.Split(s, "||") {
		if a = strings.TrimSpace(a); a != "" {
			attrs = append(attrs, a)
		}
	}
	return Extractor{Kind: ExtractAttr, Attrs: attrs}
}

// parseStep splits a single step into selector, position and excludes.
func parseStep(word string) Step {
	head, excludes := splitExcludes(word)
	step := Step{Selector: head, Excludes: excludes}

	if m := indexedPosPattern.FindStringSubmatchIndex(head); m != nil {
		n, err := strconv.Atoi(head[m[4]:m[5]])
		if err == nil {
			step.Selector = head[:m[0]]
			switch head[m[2]:m[3]] {
			case "eq":
				step.Position = Position{Kind: PosEq, N: n}
			case "lt":
				step.Position = Position{Kind: PosLt, N: n}
			case "gt":
				step.Position = Position{Kind: PosGt, N: n}
			}
		}
		return step
	}

	if m := namedPosPattern.FindStringSubmatchIndex(head); m != nil {
		step.Selector = head[:m[0]]
		switch head[m[2]:m[3]] {
		case "first":
			step.Position = Position{Kind: PosFirst}
		case "last":
			step.Position = Position{Kind: PosLast}
		case "even":
			step.Position = Position{Kind: PosEven}
		case "odd":
			step.Position = Position{Kind: PosOdd}
		}
	}
	return step
}

// splitExcludes splits "sel--a--b" at top-level "--" markers.
func splitExcludes(word string) (string, []string) {
	parts := splitTopLevel(word, "--")
	if len(parts) == 1 {
		return word, nil
	}
	var excludes []string
	for _, ex := range parts[1:] {
		if ex != "" {
			excludes = append(excludes, ex)
		}
	}
	return parts[0], excludes
}

// splitSteps splits a path segment on whitespace that is not inside
// brackets, parentheses or quotes.
func splitSteps(segment string) []string {
	var (
		steps []string
		buf   strings.Builder
		depth int
		quote rune
	)
	flush := func() {
		if buf.Len() > 0 {
			steps = append(steps, buf.String())
			buf.Reset()
		}
	}
	for _, r := range segment {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (r == ' ' || r == '\t' || r == '\n'):
			flush()
			continue
		}
		buf.WriteRune(r)
	}
	flush()
	return steps
}

// splitTopLevel splits s on sep occurrences outside brackets and quotes.
func splitTopLevel(s, sep string) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0 && strings.HasPrefix(s[i:], sep):
			parts = append(parts, s[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// String renders the step back into rule syntax.
func (s Step) String() string {
	var b strings.Builder
	b.WriteString(s.Selector)
	switch s.Position.Kind {
	case PosEq:
		b.WriteString(":eq(" + strconv.Itoa(s.Position.N) + ")")
	case PosLt:
		b.WriteString(":lt(" + strconv.Itoa(s.Position.N) + ")")
	case PosGt:
		b.WriteString(":gt(" + strconv.Itoa(s.Position.N) + ")")
	case PosFirst:
		b.WriteString(":first")
	case PosLast:
		b.WriteString(":last")
	case PosEven:
		b.WriteString(":even")
	case PosOdd:
		b.WriteString(":odd")
	}
	for _, ex := range s.Excludes {
		b.WriteString("--" + ex)
	}
	return b.String()
}
