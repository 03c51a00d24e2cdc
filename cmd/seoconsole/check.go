package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newValidateCmd(opts *options) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "validate [route...]",
		Short: "Validate stored records against the live site",
		Long: `Fetch the live page for each record, compare it with the stored metadata
and save the outcome. Routes select records by route path; --all validates
every record.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("give one or more routes, or --all")
			}
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer closeApp(app)
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			if all {
				batch, err := app.Console.ValidateAll(ctx)
				if err != nil {
					return err
				}
				for _, res := range batch.Results {
					if err := printRecordValidation(w, res); err != nil {
						return err
					}
					fmt.Fprintln(w)
				}
				for _, f := range batch.Failed {
					fmt.Fprintf(w, "%s %s\n", bold(f.Route), red(f.Error))
				}
				return nil
			}

			for _, route := range args {
				rec, err := app.Store.GetByRoute(ctx, route)
				if err != nil {
					return fmt.Errorf("%s: %w", route, err)
				}
				res, err := app.Console.ValidateRecord(ctx, rec.ID)
				if err != nil {
					return err
				}
				if err := printRecordValidation(w, res); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "validate every stored record")
	return cmd
}

func newCheckImageCmd(opts *options) *cobra.Command {
	var width, height int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check-image <url>",
		Short: "Check an Open Graph image against sharing recommendations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer closeApp(app)
			res, err := app.Validator.ValidateOGImage(cmd.Context(), args[0], width, height)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return printImage(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "expected width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "expected height in pixels")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newCrawlCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Check whether a page can be crawled and indexed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer closeApp(app)
			res := app.Validator.ValidateCrawlability(cmd.Context(), args[0], "")
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return printCrawlability(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newExtractCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <url>",
		Short: "Print the SEO metadata a page serves, as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer closeApp(app)
			return writeJSON(cmd.OutOrStdout(), app.Extractor.FromURL(cmd.Context(), args[0]))
		},
	}
}

func newImportSiteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import-site <base-url> [route...]",
		Short: "Create records from the metadata a live site serves",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer closeApp(app)
			results, err := app.Console.ImportFromSite(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			t := newTable(w, "Route", "Result")
			for _, r := range results {
				outcome := green("imported")
				if !r.Success {
					outcome = red(r.Error)
				}
				if err := t.Append([]string{r.Route, outcome}); err != nil {
					return err
				}
			}
			return t.Render()
		},
	}
}

func newReportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarize stored records by status and metadata gaps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer closeApp(app)
			rep, err := app.Console.Report(cmd.Context())
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
