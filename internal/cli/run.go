package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vvip-tv/vvip-parser/internal/plugin"
)

type runOptions struct {
	method string
	args   string
	extend string
	watch  bool
}

func newRunCommand(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <plugin>",
		Short: "Load a plugin and call one of its operations",
		Long: `Load a plugin, initialise it and call one operation.

<plugin> is a file path, an http(s) or s3:// URL, or the name of a plugin
found in the plugin search paths. Arguments are a JSON array in the order
the operation takes them:

  vvip run site.lua -m category -a '["1", 2, true, {"area": "cn"}]'
  vvip run site.lua -m play -a '["line1", "https://example.com/ep1"]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.resolveSource(args[0], opts.extend)
			if err != nil {
				return err
			}
			if opts.watch {
				return a.watch(cmd.Context(), cmd.OutOrStdout(), src, opts)
			}
			return a.runOnce(cmd.Context(), cmd.OutOrStdout(), src, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.method, "method", "m", plugin.OpHome, "operation: "+strings.Join(methods, ", "))
	f.StringVarP(&opts.args, "args", "a", "[]", "operation arguments as a JSON array")
	f.StringVarP(&opts.extend, "extend", "e", "", "extension passed to init: a file or inline text")
	f.BoolVarP(&opts.watch, "watch", "w", false, "rerun the operation whenever the plugin file changes")
	return cmd
}

// resolveSource turns a command argument into a plugin source. Names that
// are neither files nor URLs are looked up in the plugin search paths.
func (a *app) resolveSource(arg, extend string) (plugin.Source, error) {
	src := plugin.Source{Location: arg, Extension: readExtension(extend)}
	if src.IsRemote() {
		return src, nil
	}
	if _, err := os.Stat(arg); err == nil {
		return src, nil
	}
	info, err := a.loader.FindPlugin(arg)
	if err != nil {
		return plugin.Source{}, err
	}
	if info.Error != nil {
		return plugin.Source{}, info.Error
	}
	src.Location = info.Path
	src.Manifest = info.Manifest
	return src, nil
}

func (a *app) runOnce(ctx context.Context, out io.Writer, src plugin.Source, opts runOptions) error {
	ad, err := a.loader.Load(ctx, src)
	if err != nil {
		return err
	}
	defer func() {
		if err := ad.Destroy(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("destroy failed", zap.Error(err))
		}
	}()
	a.reportWarnings(ad)

	if err := ad.Init(ctx, ad.Source().Extension); err != nil {
		return err
	}
	result, err := callMethod(ctx, ad, opts.method, opts.args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, result)
	return err
}

// watch keeps the plugin loaded through a Manager and reruns the operation
// after every reload until ctx ends.
func (a *app) watch(ctx context.Context, out io.Writer, src plugin.Source, opts runOptions) error {
	if src.IsRemote() {
		return errors.New("--watch needs a local plugin file")
	}
	m := plugin.NewManager(a.loader, plugin.DefaultManagerConfig())
	defer func() { _ = m.UnloadAll(context.WithoutCancel(ctx)) }()

	events := make(chan plugin.ManagerEvent, 8)
	unsubscribe := m.Subscribe(func(ev plugin.ManagerEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	name := src.Name()
	if _, err := m.Load(ctx, name, src); err != nil {
		return err
	}

	r, err := plugin.NewReloader(m, plugin.WithReloadLogger(a.logger))
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.Watch(name); err != nil {
		return err
	}
	go r.Run(ctx)

	rerun := func() {
		ad, ok := m.Get(name)
		if !ok {
			return
		}
		a.reportWarnings(ad)
		result, err := callMethod(ctx, ad, opts.method, opts.args)
		if err != nil {
			a.logger.Error("operation failed", zap.String("method", opts.method), zap.Error(err))
			return
		}
		fmt.Fprintln(out, result)
	}
	rerun()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch ev.Type {
			case plugin.EventPluginReloaded:
				rerun()
			case plugin.EventPluginError:
				a.logger.Error("reload failed", zap.String("plugin", ev.Plugin), zap.Error(ev.Error))
			}
		}
	}
}

func (a *app) reportWarnings(ad *plugin.Adapter) {
	for _, w := range ad.Warnings() {
		a.logger.Warn(w.String())
	}
}
