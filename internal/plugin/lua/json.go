package lua

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	lua "github.com/yuin/gopher-lua"
)

// ErrInvalidJSON is returned by DecodeJSON for malformed input.
var ErrInvalidJSON = errors.New("invalid json")

// EncodeJSON serializes a Lua value. Sequences become arrays, other tables
// objects with sorted keys, and an empty table "[]". HTML characters are not
// escaped.
func (b *Bridge) EncodeJSON(lv lua.LValue) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(b.ToGoValue(lv)); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// DecodeJSON parses JSON text into Lua values. JSON null becomes nil, so
// object members holding null are absent from the resulting table.
func (b *Bridge) DecodeJSON(text string) (lua.LValue, error) {
	if !gjson.Valid(text) {
		return lua.LNil, ErrInvalidJSON
	}
	return b.fromResult(gjson.Parse(text)), nil
}

// fromResult converts a parsed gjson value.
func (b *Bridge) fromResult(r gjson.Result) lua.LValue {
	switch {
	case r.IsArray():
		t := b.L.NewTable()
		i := 0
		r.ForEach(func(_, v gjson.Result) bool {
			i++
			t.RawSetInt(i, b.fromResult(v))
			return true
		})
		return t
	case r.IsObject():
		t := b.L.NewTable()
		r.ForEach(func(k, v gjson.Result) bool {
			t.RawSetString(k.String(), b.fromResult(v))
			return true
		})
		return t
	}

	switch r.Type {
	case gjson.String:
		return lua.LString(r.Str)
	case gjson.Number:
		return lua.LNumber(r.Num)
	case gjson.True:
		return lua.LTrue
	case gjson.False:
		return lua.LFalse
	}
	return lua.LNil
}
