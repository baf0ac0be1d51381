package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vvip-tv/vvip-parser/internal/plugin"
)

// methods lists what run accepts, in the order help text shows them.
var methods = []string{
	plugin.OpHome, plugin.OpHomeVod, plugin.OpCategory, plugin.OpDetail,
	plugin.OpSearch, plugin.OpPlay, plugin.OpAction, plugin.OpProxy,
	plugin.OpSniffer, plugin.OpIsVideo,
}

// callMethod invokes one adapter operation with arguments taken from a JSON
// array. Missing trailing arguments take the host defaults.
func callMethod(ctx context.Context, ad *plugin.Adapter, method, rawArgs string) (string, error) {
	if rawArgs == "" {
		rawArgs = "[]"
	}
	if !gjson.Valid(rawArgs) {
		return "", fmt.Errorf("arguments are not valid JSON: %s", rawArgs)
	}
	parsed := gjson.Parse(rawArgs)
	if !parsed.IsArray() {
		return "", fmt.Errorf("arguments must be a JSON array, got %s", parsed.Type)
	}
	args := parsed.Array()
	arg := func(i int) gjson.Result {
		if i < len(args) {
			return args[i]
		}
		return gjson.Result{}
	}
	boolArg := func(i int, def bool) bool {
		if !arg(i).Exists() {
			return def
		}
		return arg(i).Bool()
	}
	// pages are text: 3 and "3" both read as "3", cursor tokens pass through
	pageArg := func(i int) string {
		if v := arg(i); v.Exists() && v.Type != gjson.Null {
			return v.String()
		}
		return "1"
	}

	switch method {
	case plugin.OpHome:
		return ad.Home(ctx, boolArg(0, true))
	case plugin.OpHomeVod:
		return ad.HomeVod(ctx)
	case plugin.OpCategory:
		extend := map[string]string{}
		arg(3).ForEach(func(k, v gjson.Result) bool {
			extend[k.String()] = v.String()
			return true
		})
		return ad.Category(ctx, arg(0).String(), pageArg(1), boolArg(2, true), extend)
	case plugin.OpDetail:
		return ad.Detail(ctx, arg(0).String())
	case plugin.OpSearch:
		return ad.Search(ctx, arg(0).String(), boolArg(1, false), pageArg(2))
	case plugin.OpPlay:
		var flags []string
		for _, f := range arg(2).Array() {
			flags = append(flags, f.String())
		}
		return ad.Play(ctx, arg(0).String(), arg(1).String(), flags)
	case plugin.OpAction:
		return ad.Action(ctx, arg(0).String())
	case plugin.OpProxy:
		params := map[string]string{}
		arg(0).ForEach(func(k, v gjson.Result) bool {
			params[k.String()] = v.String()
			return true
		})
		res, err := ad.Proxy(ctx, params)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(res)
		return string(out), err
	case plugin.OpSniffer:
		ok, err := ad.Sniffer(ctx)
		return fmt.Sprint(ok), err
	case plugin.OpIsVideo:
		ok, err := ad.IsVideo(ctx, arg(0).String())
		return fmt.Sprint(ok), err
	default:
		return "", fmt.Errorf("unknown method %q (want one of %s)", method, strings.Join(methods, ", "))
	}
}
