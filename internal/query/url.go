package query

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	// LinkableAttrPattern matches attribute names whose values are URLs.
	LinkableAttrPattern = regexp.MustCompile(`(?i)(url|src|href|-original|-src|-play|-url|style)$|^(data-|url-|src-)`)

	// SpecialSchemePattern matches values that are never resolved against a
	// base URL.
	SpecialSchemePattern = regexp.MustCompile(`(?i)^(ftp|magnet|thunder|ws):`)

	cssURLPattern = regexp.MustCompile(`(?i)url\((.*?)\)`)
	quotedPattern = regexp.MustCompile(`^['"](.*)['"]$`)
)

// ResolveURL resolves an attribute value read from attr against base.
// Values of non-linkable attributes and special schemes are returned as is.
// A value that already contains "http" is cut to start at that occurrence.
func ResolveURL(attr, value, base string) string {
	if value == "" || !LinkableAttrPattern.MatchString(attr) || SpecialSchemePattern.MatchString(value) {
		return value
	}
	if idx := strings.Index(value, "http"); idx >= 0 {
		return value[idx:]
	}
	return JoinURL(base, value)
}

// JoinURL resolves ref against base using RFC 3986 reference resolution.
// When base is not an absolute URL the two are concatenated with exactly
// one slash between them.
func JoinURL(base, ref string) string {
	if ref == "" {
		return base
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	if b, err := url.Parse(base); err == nil && b.IsAbs() {
		if r, err := url.Parse(ref); err == nil {
			return b.ResolveReference(r).String()
		}
	}

	switch {
	case strings.HasSuffix(base, "/") && strings.HasPrefix(ref, "/"):
		return base + ref[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(ref, "/"):
		return base + "/" + ref
	}
	return base + ref
}

// unwrapCSSURL returns the URL inside a CSS url(...) expression, without one
// layer of surrounding quotes. Values without url(...) are returned as is.
func unwrapCSSURL(value string) string {
	m := cssURLPattern.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	return quotedPattern.ReplaceAllString(m[1], "$1")
}
