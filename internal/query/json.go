package query

import (
	"strings"

	"github.com/tidwall/gjson"
)

// JSONGet looks up path in a JSON document. Scalars come back as their string
// form, objects and arrays as raw JSON. A leading "$." or "$" is accepted and
// ignored. Missing paths and invalid documents yield "".
func JSONGet(doc, path string) string {
	if !gjson.Valid(doc) {
		return ""
	}
	path = strings.TrimPrefix(strings.TrimPrefix(path, "$"), ".")
	if path == "" {
		return doc
	}

	res := gjson.Get(doc, path)
	switch {
	case !res.Exists():
		return ""
	case res.IsObject(), res.IsArray():
		return res.Raw
	}
	return res.String()
}

// JSONGetAll returns every element of the array at path, each as a string or
// raw JSON. A non-array value yields a single-element slice.
func JSONGetAll(doc, path string) []string {
	if !gjson.Valid(doc) {
		return []string{}
	}
	path = strings.TrimPrefix(strings.TrimPrefix(path, "$"), ".")

	res := gjson.Parse(doc)
	if path != "" {
		res = gjson.Get(doc, path)
	}
	if !res.Exists() {
		return []string{}
	}
	if !res.IsArray() {
		return []string{resultString(res)}
	}

	items := []string{}
	res.ForEach(func(_, v gjson.Result) bool {
		items = append(items, resultString(v))
		return true
	})
	return items
}

func resultString(r gjson.Result) string {
	if r.IsObject() || r.IsArray() {
		return r.Raw
	}
	return r.String()
}
