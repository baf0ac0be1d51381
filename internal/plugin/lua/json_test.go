package lua

import (
	"errors"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestEncodeJSON(t *testing.T) {
	b, L := newTestBridge(t)

	tests := []struct {
		name string
		code string
		want string
	}{
		{"empty table", `v = {}`, `[]`},
		{"sequence", `v = {1, "a", true}`, `[1,"a",true]`},
		{"object keys sorted", `v = {b = 1, a = 2}`, `{"a":2,"b":1}`},
		{"no html escaping", `v = {u = "<a href='x'>&</a>"}`, `{"u":"<a href='x'>&</a>"}`},
		{"float", `v = 1.25`, `1.25`},
		{"nested", `v = {list = {}, page = 1}`, `{"list":[],"page":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := L.DoString(tt.code); err != nil {
				t.Fatalf("DoString() error = %v", err)
			}
			got, err := b.EncodeJSON(L.GetGlobal("v"))
			if err != nil {
				t.Fatalf("EncodeJSON() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	b, L := newTestBridge(t)

	v, err := b.DecodeJSON(`{"list":[{"vod_id":"1","vod_name":"A"}],"page":2,"ok":true,"gone":null}`)
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	L.SetGlobal("v", v)
	if err := L.DoString(`
		assert(#v.list == 1, "list length")
		assert(v.list[1].vod_name == "A", "vod_name")
		assert(v.page == 2, "page")
		assert(v.ok == true, "ok")
		assert(v.gone == nil, "gone")
	`); err != nil {
		t.Errorf("decoded value check failed: %v", err)
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	b, _ := newTestBridge(t)

	v, err := b.DecodeJSON(`{"broken":`)
	if !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("DecodeJSON() error = %v, want ErrInvalidJSON", err)
	}
	if v != lua.LNil {
		t.Errorf("DecodeJSON() = %v, want nil", v)
	}
}

func TestJSONRoundTripPreservesShape(t *testing.T) {
	b, _ := newTestBridge(t)

	in := `{"class":[{"type_id":"1","type_name":"Movies"}],"filters":{}}`
	v, err := b.DecodeJSON(in)
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	out, err := b.EncodeJSON(v)
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	// empty objects come back as arrays since Lua cannot tell them apart
	want := `{"class":[{"type_id":"1","type_name":"Movies"}],"filters":[]}`
	if out != want {
		t.Errorf("round trip = %s, want %s", out, want)
	}
}
