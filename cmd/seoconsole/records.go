package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eringen/seoconsole"
	"github.com/eringen/seoconsole/discovery"
)

func newExportCmd(opts *options) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer closeApp(app)
			records, err := app.Store.List(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			switch format {
			case "csv":
				return seoconsole.ExportCSV(w, records)
			case "json":
				return seoconsole.ExportJSON(w, records)
			default:
				return fmt.Errorf("unknown format %q (want csv or json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or json")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(opts *options) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create records from a CSV or JSON export",
		Long: `Create records from a file written by export. The format follows the file
extension unless --format is given; "-" reads stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(args[0])), ".")
			}

			var inputs []seoconsole.RecordInput
			var err error
			switch format {
			case "csv":
				inputs, err = seoconsole.ParseCSV(r)
			case "json":
				inputs, err = seoconsole.ParseJSON(r)
			default:
				return fmt.Errorf("cannot tell the format of %q, use --format", args[0])
			}
			if err != nil {
				return err
			}

			app, err := opts.app()
			if err != nil {
				return err
			}
			defer closeApp(app)

			w := cmd.OutOrStdout()
			var created, failed int
			for i, res := range app.Console.BulkCreate(cmd.Context(), "file", inputs) {
				if res.Success {
					created++
					continue
				}
				failed++
				fmt.Fprintf(w, "%s %s\n", red(inputs[i].RoutePath), res.Error)
			}
			fmt.Fprintf(w, "%s created, %s failed\n", green(strconv.Itoa(created)), red(strconv.Itoa(failed)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "csv or json (default from extension)")
	return cmd
}

func newDiscoverCmd(opts *options) *cobra.Command {
	var root, appDir string
	var examples int
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List page routes found in the app directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if appDir == "" {
				cfg, err := opts.config()
				if err != nil {
					return err
				}
				appDir = cfg.AppDir
			}
			routes, err := discovery.Discover(os.DirFS(root), appDir)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(routes) == 0 {
				fmt.Fprintf(w, "No routes found under %s\n", filepath.Join(root, appDir))
				return nil
			}
			t := newTable(w, "Route", "File", "Params", "Examples")
			for _, r := range routes {
				params := strings.Join(r.Params, ", ")
				var ex string
				if r.IsDynamic && examples > 0 {
					ex = faint(strings.Join(discovery.ExamplePaths(r, examples), " "))
				}
				if err := t.Append([]string{r.RoutePath, r.FilePath, params, ex}); err != nil {
					return err
				}
			}
			return t.Render()
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "project root")
	cmd.Flags().StringVar(&appDir, "app-dir", "", "app directory relative to root (overrides config)")
	cmd.Flags().IntVar(&examples, "examples", 0, "example paths to print for dynamic routes")
	return cmd
}
