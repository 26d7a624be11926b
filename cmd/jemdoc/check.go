package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ritukeshbharali/jemjive-3.0/internal/diff"
	"github.com/ritukeshbharali/jemjive-3.0/internal/searchdata"
	"github.com/ritukeshbharali/jemjive-3.0/internal/sources"
	"github.com/ritukeshbharali/jemjive-3.0/tools"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|dir>...",
		Short: "Check searchData files for duplicate keys and entries without links",
		Long: `Parses each file (or every searchData file of a directory) and checks the
invariants of generated search data. Exits with status 1 when any error is found.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make([]tools.ValidateSearchDataOutput, 0, len(args))
			valid := true
			for _, path := range args {
				out, err := tools.ValidatePath(path)
				if err != nil {
					return err
				}
				valid = valid && out.Valid
				reports = append(reports, out)
			}

			if err := render(cmd, opts.output, reports, func(w io.Writer) {
				for _, r := range reports {
					printValidation(w, r)
				}
			}); err != nil {
				return err
			}
			if !valid {
				return errFailed
			}
			return nil
		},
	}
}

func printValidation(w io.Writer, r tools.ValidateSearchDataOutput) {
	colorHeader.Fprintln(w, r.Path)
	for _, f := range r.Files {
		fmt.Fprintf(w, "  %s: %d entries, %d links\n", f.Name, f.Entries, f.Links)
		for _, issue := range f.Issues {
			c := colorWarning
			if issue.Severity == searchdata.SeverityError {
				c = colorError
			}
			c.Fprintf(w, "    %s", issue.Severity)
			if issue.Key != "" {
				fmt.Fprintf(w, " [%s]", issue.Key)
			}
			fmt.Fprintf(w, " %s: %s\n", issue.Code, issue.Message)
		}
	}
	summary := fmt.Sprintf("%d files, %d entries, %d links, %d errors, %d warnings",
		len(r.Files), r.Entries, r.Links, r.Errors, r.Warnings)
	if r.Valid {
		colorAdded.Fprintf(w, "✓ %s\n", summary)
	} else {
		colorError.Fprintf(w, "✗ %s\n", summary)
	}
}

func newDiffCmd(opts *options) *cobra.Command {
	var (
		unified    bool
		exitCode   bool
		categories []string
	)

	cmd := &cobra.Command{
		Use:   "diff <old-search-dir> <new-search-dir>",
		Short: "Compare the symbols of two documentation builds",
		Long: `Matches the entries of two Doxygen search directories by label and reports
added, removed and changed symbols. --unified prints a unified diff of the
normalized link listings instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldFiles, _, err := sources.LoadDir(os.DirFS(args[0]), ".", categories)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			newFiles, _, err := sources.LoadDir(os.DirFS(args[1]), ".", categories)
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			report := diff.Compare(oldFiles, newFiles)

			if unified {
				text, err := diff.Unified(args[0], args[1], oldFiles, newFiles)
				if err != nil {
					return err
				}
				printUnified(cmd.OutOrStdout(), text)
			} else if err := render(cmd, opts.output, report, func(w io.Writer) {
				printReport(w, report)
			}); err != nil {
				return err
			}

			if exitCode && !report.Empty() {
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&unified, "unified", "u", false, "print a unified diff")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit with status 1 when the builds differ")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "only compare these categories")
	return cmd
}

func printReport(w io.Writer, r diff.Report) {
	for _, label := range r.Added {
		colorAdded.Fprintf(w, "+ %s\n", label)
	}
	for _, label := range r.Removed {
		colorError.Fprintf(w, "- %s\n", label)
	}
	for _, c := range r.Changed {
		colorWarning.Fprintf(w, "~ %s", c.Label)
		fmt.Fprintf(w, " (+%d/-%d links)\n", len(c.AddedLinks), len(c.RemovedLinks))
		for _, l := range c.AddedLinks {
			colorAdded.Fprintf(w, "    + %s %s\n", l.Scope, l.URL)
		}
		for _, l := range c.RemovedLinks {
			colorError.Fprintf(w, "    - %s %s\n", l.Scope, l.URL)
		}
	}
	fmt.Fprintln(w, r.Summary())
}

func printUnified(w io.Writer, text string) {
	for _, line := range strings.SplitAfter(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			colorBold.Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			colorCyan.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			colorAdded.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			colorError.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}
