package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ritukeshbharali/jemjive-3.0/internal/config"
	"github.com/ritukeshbharali/jemjive-3.0/tools"
)

func newIndexCmd(opts *options) *cobra.Command {
	var (
		force bool
		dir   string
		name  string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Ingest search data and rebuild the symbol index",
		Long: `Loads every configured library (and the bundled jem and jive data), stores
the libraries whose search files changed and rebuilds the index. --dir adds
a local Doxygen search directory for this run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.setup()
			if err != nil {
				return err
			}
			defer opts.close()

			if dir != "" {
				if name == "" {
					name = libraryName(dir)
				}
				if _, exists := cfg.Source(name); exists {
					return fmt.Errorf("library %s is already configured", name)
				}
				cfg.Sources = append(cfg.Sources, config.Source{Name: name, SearchDir: dir})
			}

			out, err := tools.Refresh(cmd.Context(), force)
			if err != nil {
				return err
			}
			return render(cmd, opts.output, out, func(w io.Writer) {
				for _, lib := range out.Changed {
					colorAdded.Fprintf(w, "✓ %s updated\n", lib)
				}
				for _, lib := range out.Unchanged {
					fmt.Fprintf(w, "  %s unchanged\n", lib)
				}
				for _, lib := range out.Removed {
					colorWarning.Fprintf(w, "- %s removed\n", lib)
				}
				for _, lib := range sortedKeys(out.Failed) {
					colorError.Fprintf(w, "✗ %s: ", lib)
					fmt.Fprintln(w, out.Failed[lib])
				}
				fmt.Fprintln(w, out.Message)
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-ingest libraries even when unchanged")
	cmd.Flags().StringVar(&dir, "dir", "", "local Doxygen search directory to index as well")
	cmd.Flags().StringVar(&name, "name", "", "library name for --dir (default: name of its parent directory)")
	return cmd
}

func newSearchCmd(opts *options) *cobra.Command {
	var input tools.SearchSymbolsInput

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search symbols by name, qualified name or signature",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.setup(); err != nil {
				return err
			}
			defer opts.close()

			input.Query = strings.Join(args, " ")
			out, err := tools.Search(cmd.Context(), input)
			if err != nil {
				return err
			}
			return render(cmd, opts.output, out, func(w io.Writer) {
				if len(out.Results) == 0 {
					fmt.Fprintln(w, "No results found.")
					return
				}
				for i, r := range out.Results {
					s := r.Symbol
					colorBold.Fprintf(w, "[%d] %s", i+1, s.Name)
					fmt.Fprintf(w, "  %s", s.Qualified)
					if s.Signature != "" {
						fmt.Fprint(w, s.Signature)
					}
					colorFaint.Fprintf(w, "  (%s, %s, %.2f)\n", s.Library, s.Category, r.Score)
					colorCyan.Fprintf(w, "    %s\n", s.URL)
				}
				fmt.Fprintf(w, "\n%d of %d matches\n", len(out.Results), out.TotalHits)
			})
		},
	}

	cmd.Flags().IntVarP(&input.MaxResults, "limit", "n", 0, "maximum number of results")
	cmd.Flags().StringVarP(&input.Library, "library", "l", "", "only search this library")
	cmd.Flags().StringVarP(&input.Category, "category", "c", "", "only search this category, e.g. functions")
	return cmd
}

func newLookupCmd(opts *options) *cobra.Command {
	var input tools.LookupSymbolInput

	cmd := &cobra.Command{
		Use:   "lookup <name>",
		Short: "Show every overload of an exactly named symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.setup(); err != nil {
				return err
			}
			defer opts.close()

			input.Name = args[0]
			out, err := tools.Lookup(cmd.Context(), input)
			if err != nil {
				return err
			}
			return render(cmd, opts.output, out, func(w io.Writer) {
				for _, sym := range out.Symbols {
					colorHeader.Fprintf(w, "%s", sym.Label)
					colorFaint.Fprintf(w, "  %s/%s %s\n", sym.Library, sym.File, sym.Key)
					for i, l := range sym.Links {
						fmt.Fprintf(w, "  [%d] %s\n", i, l.Scope)
						colorCyan.Fprintf(w, "      %s\n", l.URL)
					}
				}
			})
		},
	}

	cmd.Flags().StringVarP(&input.Library, "library", "l", "", "only look in this library")
	return cmd
}

func newDocsCmd(opts *options) *cobra.Command {
	var input tools.GetSymbolDocsInput

	cmd := &cobra.Command{
		Use:   "docs <name|url>",
		Short: "Print the documentation of a symbol as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.setup(); err != nil {
				return err
			}
			defer opts.close()

			if strings.Contains(args[0], ".html") {
				input.URL = args[0]
			} else {
				input.Name = args[0]
			}
			out, err := tools.Docs(cmd.Context(), input)
			if err != nil {
				return err
			}
			return render(cmd, opts.output, out, func(w io.Writer) {
				colorHeader.Fprintln(w, out.Title)
				if out.Prototype != "" {
					colorCyan.Fprintln(w, out.Prototype)
				}
				fmt.Fprintln(w)
				fmt.Fprintln(w, out.Markdown)
				colorFaint.Fprintf(w, "\n%s", out.Source)
				if out.Overloads > 1 {
					colorFaint.Fprintf(w, " (overload %d of %d)", input.Overload, out.Overloads)
				}
				fmt.Fprintln(w)
			})
		},
	}

	cmd.Flags().StringVarP(&input.Library, "library", "l", "", "library the symbol belongs to")
	cmd.Flags().IntVar(&input.Overload, "overload", 0, "zero-based overload to show")
	return cmd
}

func newLibrariesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "List the documented libraries and their indexed counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := opts.setup(); err != nil {
				return err
			}
			defer opts.close()

			out, err := tools.Summaries(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, opts.output, out, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "LIBRARY\tFILES\tENTRIES\tLINKS\tORIGIN")
				for _, lib := range out.Libraries {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", lib.Name, lib.Files, lib.Entries, lib.Links, lib.Origin)
				}
				tw.Flush()
			})
		},
	}
}

// libraryName guesses a library name from <project>/html/search.
func libraryName(searchDir string) string {
	dir := filepath.Dir(filepath.Clean(searchDir))
	if filepath.Base(dir) == "html" {
		dir = filepath.Dir(dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Base(dir)
	}
	return filepath.Base(abs)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
