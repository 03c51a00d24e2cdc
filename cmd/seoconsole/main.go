package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/seoconsole"
)

// version is set at build time via ldflags.
var version = "dev"

type options struct {
	configPath string
	siteURL    string
	storage    string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "seoconsole",
		Short: "Manage and validate SEO metadata for a site",
		Long: `seoconsole keeps SEO metadata records for the routes of a site and checks
them against what the live site serves.

Example usage:
  seoconsole serve                       # Start the JSON API on :8080
  seoconsole discover                    # List page routes under ./app
  seoconsole import-site https://example.com / /about
  seoconsole validate --all              # Validate every stored record
  seoconsole check-image https://example.com/og.png`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.siteURL, "site-url", "", "site base URL (overrides config)")
	root.PersistentFlags().StringVar(&opts.storage, "storage", "", "storage path (overrides config)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newCheckImageCmd(opts),
		newCrawlCmd(opts),
		newExtractCmd(opts),
		newImportSiteCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newDiscoverCmd(opts),
		newReportCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *options) config() (seoconsole.Config, error) {
	cfg, err := seoconsole.LoadConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.siteURL != "" {
		cfg.SiteURL = o.siteURL
	}
	if o.storage != "" {
		cfg.Storage.Path = o.storage
	}
	if o.verbose {
		cfg.Log.Level = seoconsole.LogLevelDebug
	}
	return cfg, nil
}

// app loads the config and initializes an App. Commands other than serve
// only log warnings and errors unless --verbose is set.
func (o *options) app() (*seoconsole.App, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	if !o.verbose {
		cfg.Log.Level = seoconsole.LogLevelWarn
	}
	return o.appFor(cfg)
}

func (o *options) appFor(cfg seoconsole.Config) (*seoconsole.App, error) {
	app := seoconsole.New(cfg)
	if err := app.Init(); err != nil {
		return nil, err
	}
	return app, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the seoconsole version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seoconsole %s\n", version)
		},
	}
}

func closeApp(app *seoconsole.App) {
	if err := app.Close(); err != nil {
		app.Log.Warn("Close failed", zap.Error(err))
	}
}
