package fetch

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// DecodeText converts a response body to UTF-8. The encoding comes from the
// Content-Type charset, then a BOM or <meta> declaration, then a guess;
// GBK and Big5 pages are common among the sites plugins scrape. Bodies
// that are valid UTF-8 and carry no explicit charset are left as they are.
func DecodeText(raw []byte, contentType string) string {
	if len(raw) == 0 {
		return ""
	}
	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	if enc == nil || name == "utf-8" || (!certain && utf8.Valid(raw)) {
		return string(raw)
	}
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(raw)))
	if err != nil || !utf8.Valid(decoded) {
		return string(raw)
	}
	return string(decoded)
}
