package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/eringen/seoconsole"
	"github.com/eringen/seoconsole/validate"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	t.Header(header)
	return t
}

func severity(s validate.Severity) string {
	switch s {
	case validate.SeverityCritical:
		return red(string(s))
	case validate.SeverityWarning:
		return yellow(string(s))
	default:
		return faint(string(s))
	}
}

func status(s seoconsole.ValidationStatus) string {
	switch s {
	case seoconsole.StatusValid:
		return green(string(s))
	case seoconsole.StatusWarning:
		return yellow(string(s))
	case seoconsole.StatusInvalid:
		return red(string(s))
	default:
		return faint(string(s))
	}
}

func verdict(ok bool, yes, no string) string {
	if ok {
		return green(yes)
	}
	return red(no)
}

// printIssues renders issues as a table, or a single line when there are none.
func printIssues(w io.Writer, issues []validate.Issue) error {
	if len(issues) == 0 {
		fmt.Fprintln(w, green("No issues found"))
		return nil
	}
	t := newTable(w, "Field", "Severity", "Message", "Expected", "Actual")
	for _, is := range issues {
		if err := t.Append([]string{is.Field, severity(is.Severity), is.Message, is.Expected, is.Actual}); err != nil {
			return err
		}
	}
	return t.Render()
}

func printRecordValidation(w io.Writer, res seoconsole.RecordValidation) error {
	fmt.Fprintf(w, "%s %s\n", bold(res.RoutePath), status(res.Status))
	return printIssues(w, res.Validation.Issues)
}

func printImage(w io.Writer, res validate.ImageResult) error {
	if m := res.Metadata; m != nil {
		fmt.Fprintf(w, "%s %dx%d, %s bytes\n", bold(m.Format), m.Width, m.Height, strconv.Itoa(m.Size))
	}
	return printIssues(w, res.Issues)
}

func printCrawlability(w io.Writer, res validate.CrawlabilityResult) error {
	fmt.Fprintf(w, "%s  %s\n",
		verdict(res.Crawlable, "crawlable", "not crawlable"),
		verdict(res.Indexable, "indexable", "not indexable"))
	findings := append(append([]validate.CrawlIssue{}, res.Issues...), res.Warnings...)
	if len(findings) == 0 {
		return nil
	}
	t := newTable(w, "Type", "Severity", "Message")
	for _, is := range findings {
		if err := t.Append([]string{string(is.Type), severity(is.Severity), is.Message}); err != nil {
			return err
		}
	}
	return t.Render()
}

func printReport(w io.Writer, rep seoconsole.Report) error {
	fmt.Fprintf(w, "%d records: %s valid, %s warning, %s invalid, %s pending\n",
		rep.Total,
		green(strconv.Itoa(rep.Valid)),
		yellow(strconv.Itoa(rep.Warning)),
		red(strconv.Itoa(rep.Invalid)),
		faint(strconv.Itoa(rep.Pending)))
	t := newTable(w, "Issue", "Count")
	for _, c := range rep.Issues {
		if err := t.Append([]string{c.Type, strconv.Itoa(c.Count)}); err != nil {
			return err
		}
	}
	return t.Render()
}
