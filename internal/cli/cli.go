package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sariayt/LGC-EQTY/internal/config"
	"github.com/sariayt/LGC-EQTY/pkg/buildinfo"
	"github.com/sariayt/LGC-EQTY/pkg/cache"
	"github.com/sariayt/LGC-EQTY/pkg/persist"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lgceqty",
		Short: "lgceqty stores index and market data in self-describing containers",
		Long: `lgceqty converts provider spreadsheets and market-data downloads into
self-describing containers, and inspects or exports existing ones.`,
		Version:       buildinfo.Resolved(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/lgceqty/config.toml)")

	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.dumpCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())
	root.AddCommand(c.versionCommand())

	return root
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

// config loads the configuration file once per process.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// persistOptions returns container options from the configuration, with the
// command's logger.
func (c *CLI) persistOptions(ctx context.Context) (persist.Options, error) {
	cfg, err := c.config()
	if err != nil {
		return persist.Options{}, err
	}
	return persist.Options{Compression: cfg.Compression(), Logger: loggerFromContext(ctx)}, nil
}

// openCache opens the configured checkpoint cache, or a null cache when
// noCache is set.
func (c *CLI) openCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	cc, err := cfg.OpenCache(ctx)
	if err != nil {
		return nil, err
	}
	return cache.NewInstrumented(cc, cfg.Cache.Backend), nil
}
