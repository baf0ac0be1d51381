// Package cli implements the vvip command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vvip-tv/vvip-parser/internal/cache"
	"github.com/vvip-tv/vvip-parser/internal/config"
	"github.com/vvip-tv/vvip-parser/internal/fetch"
	"github.com/vvip-tv/vvip-parser/internal/logging"
	"github.com/vvip-tv/vvip-parser/internal/plugin"
)

// app holds what every command shares. It is filled in by setup before a
// command runs and released by teardown.
type app struct {
	configPath string
	logLevel   string
	quiet      bool

	cfg    *config.Config
	logger *zap.Logger
	client *fetch.Client
	store  cache.Store
	loader *plugin.Loader

	cleanup []func()
}

// NewRootCommand builds the vvip command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "vvip",
		Short:         "Run and debug vvip content-source plugins",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context()); err != nil {
				a.teardown()
				return err
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "configuration file (default: user and project vvip.toml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "only print results")

	root.AddCommand(
		newRunCommand(a),
		newTestCommand(a),
		newExtractCommand(a),
		newListCommand(a),
		newConfigCommand(a),
	)

	// cobra skips post-run hooks when RunE fails
	for _, cmd := range root.Commands() {
		run := cmd.RunE
		if run == nil {
			continue
		}
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			defer a.teardown()
			return run(cmd, args)
		}
	}
	return root
}

func (a *app) setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(config.WithFile(a.configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	switch {
	case a.logLevel != "":
		cfg.Log.Level = a.logLevel
	case a.quiet:
		cfg.Log.Level = "error"
	}
	a.cfg = cfg

	logger, flush, err := logging.New(cfg.Log.Logging())
	if err != nil {
		return err
	}
	a.logger = logger
	a.cleanup = append(a.cleanup, flush)

	a.client, err = cfg.NewClient(ctx, logger.Named("fetch"))
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}

	storeCtx, cancel := context.WithCancel(ctx)
	a.cleanup = append(a.cleanup, cancel)
	a.store, err = cache.Open(storeCtx, cfg.Cache.Store())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Cache.Backend, err)
	}
	a.cleanup = append(a.cleanup, func() { _ = a.store.Close() })

	paths := cfg.Plugin.Paths
	if len(paths) == 0 {
		paths = plugin.DefaultPluginPaths()
	}
	a.loader = plugin.NewLoader(
		plugin.WithPaths(paths...),
		plugin.WithLogger(logger),
		plugin.WithClient(a.client),
		plugin.WithStore(a.store),
		plugin.WithLimits(cfg.Plugin.ResourceLimits()),
		plugin.WithPermissions(cfg.Plugin.PermissionSet()),
		plugin.WithProxy(cfg.Proxy.API()),
	)

	logger.Debug("configuration loaded", zap.Strings("files", cfg.Sources()))
	return nil
}

// teardown runs cleanups in reverse order.
func (a *app) teardown() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}
