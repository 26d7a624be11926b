package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ritukeshbharali/jemjive-3.0/internal/config"
	"github.com/ritukeshbharali/jemjive-3.0/tools"
)

// errFailed is returned by commands that printed their own failure report.
var errFailed = errors.New("command failed")

type options struct {
	dataDir    string
	configPath string
	output     string
	verbose    bool

	open bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "jemdoc",
		Short: "Search and check the jem and jive API reference",
		Long: `jemdoc ingests the searchData files Doxygen generates for the jem and jive
libraries, indexes every symbol and answers searches, exact lookups and
documentation requests. It also validates search data and compares builds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
			switch opts.output {
			case formatText, formatJSON, formatYAML:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", opts.output)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory holding the catalog and index (default $"+config.DataDirEnv+" or ~/.jemdoc)")
	flags.StringVar(&opts.configPath, "config", "", "configuration file (default config.toml in the data directory)")
	flags.StringVarP(&opts.output, "output", "o", formatText, "output format: text, json or yaml")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		newIndexCmd(opts),
		newSearchCmd(opts),
		newLookupCmd(opts),
		newDocsCmd(opts),
		newLibrariesCmd(opts),
		newValidateCmd(opts),
		newDiffCmd(opts),
		newVersionCmd(),
	)
	return root
}

// setup resolves the data directory, loads the configuration and points the
// tools package at both. Pair it with close.
func (o *options) setup() (*config.Config, error) {
	dir := o.dataDir
	if dir == "" {
		dir = config.ResolveDataDir()
	} else if err := os.MkdirAll(filepath.Join(dir, "search"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path := o.configPath
	if path == "" {
		path = filepath.Join(dir, config.ConfigFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	tools.Setup(dir, cfg)
	o.open = true
	return cfg, nil
}

func (o *options) close() {
	if !o.open {
		return
	}
	o.open = false
	if err := tools.CloseSymbolSearch(); err != nil {
		log.Printf("Error closing symbol search: %v", err)
	}
}
