package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/vvip-tv/vvip-parser/internal/plugin"
)

type testOptions struct {
	extend  string
	keyword string
	json    bool
}

func newTestCommand(a *app) *cobra.Command {
	var opts testOptions
	cmd := &cobra.Command{
		Use:   "test <plugin>",
		Short: "Walk a plugin through home, category, detail, play and search",
		Long: `Load a plugin and exercise it the way a player would: init, home,
homeVod, the first category, the detail of its first item, the first
episode of the first play line, then a search for --keyword. The walk stops
at the first operation that fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.resolveSource(args[0], opts.extend)
			if err != nil {
				return err
			}
			report, walkErr := a.walk(cmd.Context(), src, opts.keyword)
			if opts.json {
				fmt.Fprintln(cmd.OutOrStdout(), report)
			} else {
				printReport(cmd.OutOrStdout(), report)
			}
			return walkErr
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.extend, "extend", "e", "", "extension passed to init: a file or inline text")
	f.StringVarP(&opts.keyword, "keyword", "k", "测试", "search keyword")
	f.BoolVar(&opts.json, "json", false, "print the report as JSON")
	return cmd
}

// walker accumulates the report of one walk.
type walker struct {
	logger *zap.Logger
	report string
}

// step runs fn and records its outcome. It returns the operation result
// and whether the walk should continue.
func (w *walker) step(name, input string, fn func() (string, error)) (string, bool) {
	start := time.Now()
	result, err := fn()
	entry := map[string]any{
		"op":       name,
		"input":    input,
		"duration": time.Since(start).Round(time.Millisecond).String(),
		"ok":       err == nil,
	}
	if err != nil {
		entry["error"] = err.Error()
	} else {
		entry["result"] = result
	}
	if s, serr := sjson.Set(w.report, "steps.-1", entry); serr == nil {
		w.report = s
	} else {
		w.logger.Warn("report update failed", zap.Error(serr))
	}
	return result, err == nil
}

func (w *walker) set(path string, value any) {
	if s, err := sjson.Set(w.report, path, value); err == nil {
		w.report = s
	}
}

// walk returns the JSON report and the first failure.
func (a *app) walk(ctx context.Context, src plugin.Source, keyword string) (report string, err error) {
	w := &walker{logger: a.logger, report: `{"steps":[],"warnings":[]}`}
	w.set("plugin", src.Location)

	ad, err := a.loader.Load(ctx, src)
	if err != nil {
		w.set("ok", false)
		w.set("error", err.Error())
		return w.report, err
	}
	defer func() {
		w.step(plugin.OpDestroy, "", func() (string, error) {
			return "", ad.Destroy(context.WithoutCancel(ctx))
		})
		report = w.report
	}()

	w.set("exports", ad.Exports())
	for _, warn := range ad.Warnings() {
		w.set("warnings.-1", warn.String())
	}

	failed := func(op string) (string, error) {
		w.set("ok", false)
		return w.report, fmt.Errorf("%s failed", op)
	}

	if _, ok := w.step(plugin.OpInit, ad.Source().Extension.Raw, func() (string, error) {
		return "", ad.Init(ctx, ad.Source().Extension)
	}); !ok {
		return failed(plugin.OpInit)
	}

	home, ok := w.step(plugin.OpHome, "true", func() (string, error) { return ad.Home(ctx, true) })
	if !ok {
		return failed(plugin.OpHome)
	}
	w.set("summary.classes", gjson.Get(home, "class.#").Int())

	homeVod, ok := w.step(plugin.OpHomeVod, "", func() (string, error) { return ad.HomeVod(ctx) })
	if !ok {
		return failed(plugin.OpHomeVod)
	}
	w.set("summary.homeVod", gjson.Get(homeVod, "list.#").Int())

	vodID := gjson.Get(homeVod, "list.0.vod_id").String()
	if tid := gjson.Get(home, "class.0.type_id").String(); tid != "" {
		cat, ok := w.step(plugin.OpCategory, tid, func() (string, error) {
			return ad.Category(ctx, tid, "1", true, map[string]string{})
		})
		if !ok {
			return failed(plugin.OpCategory)
		}
		w.set("summary.category", gjson.Get(cat, "list.#").Int())
		if id := gjson.Get(cat, "list.0.vod_id").String(); id != "" {
			vodID = id
		}
	}

	if vodID != "" {
		detail, ok := w.step(plugin.OpDetail, vodID, func() (string, error) { return ad.Detail(ctx, vodID) })
		if !ok {
			return failed(plugin.OpDetail)
		}
		flag, episode := firstEpisode(
			gjson.Get(detail, "list.0.vod_play_from").String(),
			gjson.Get(detail, "list.0.vod_play_url").String(),
		)
		w.set("summary.detail", gjson.Get(detail, "list.0.vod_name").String())
		if episode != "" {
			play, ok := w.step(plugin.OpPlay, flag+" "+episode, func() (string, error) {
				return ad.Play(ctx, flag, episode, nil)
			})
			if !ok {
				return failed(plugin.OpPlay)
			}
			w.set("summary.play", gjson.Get(play, "url").String())
		}
	}

	search, ok := w.step(plugin.OpSearch, keyword, func() (string, error) { return ad.Search(ctx, keyword, false, "1") })
	if !ok {
		return failed(plugin.OpSearch)
	}
	w.set("summary.search", gjson.Get(search, "list.#").Int())
	w.set("ok", true)
	return w.report, nil
}

// firstEpisode picks the first line name and the id of its first episode
// from the "$$$"-separated play fields of a detail item. Episodes are
// separated by "#" and each is "name$id".
func firstEpisode(from, urls string) (flag, id string) {
	flag, _, _ = strings.Cut(from, "$$$")
	line, _, _ := strings.Cut(urls, "$$$")
	ep, _, _ := strings.Cut(line, "#")
	if ep == "" {
		return flag, ""
	}
	if _, after, found := strings.Cut(ep, "$"); found {
		return flag, after
	}
	return flag, ep
}

func printReport(out io.Writer, report string) {
	fmt.Fprintf(out, "plugin  %s\n", gjson.Get(report, "plugin").String())
	if e := gjson.Get(report, "error"); e.Exists() {
		fmt.Fprintf(out, "error   %s\n", e.String())
	}
	for _, warn := range gjson.Get(report, "warnings").Array() {
		fmt.Fprintf(out, "warn    %s\n", warn.String())
	}
	gjson.Get(report, "steps").ForEach(func(_, s gjson.Result) bool {
		status := "ok"
		detail := truncate(s.Get("result").String(), 120)
		if !s.Get("ok").Bool() {
			status = "FAIL"
			detail = s.Get("error").String()
		}
		fmt.Fprintf(out, "%-4s %-9s %6s  %s\n", status, s.Get("op").String(), s.Get("duration").String(), detail)
		return true
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
