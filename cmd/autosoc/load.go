package main

import (
	"os"
	"path/filepath"

	"github.com/fpga-compose/autosoc/internal/design"
	"github.com/fpga-compose/autosoc/internal/diag"
	"github.com/fpga-compose/autosoc/internal/store"
	"github.com/fpga-compose/autosoc/internal/tokenize"
)

// loadSources reads every named input file into a design.Source, in the
// order given on the command line -- the order that Merge's later-file-wins
// rule depends on.
func loadSources(paths []string, diags *diag.Sink) ([]design.Source, error) {
	sources := make([]design.Source, 0, len(paths))

	for _, p := range paths {
		s, err := loadFile(p, diags)
		if err != nil {
			return nil, err
		}

		sources = append(sources, design.Source{File: p, Store: s})
	}

	return sources, nil
}

// loadFile tokenizes one input file, resolving any "@INCLUDEFILE" directive
// it contains against paths relative to the including file's own directory.
// Search-path resolution beyond that is left to whoever invokes the
// binary; this is the simplest resolver that covers relative includes.
func loadFile(path string, diags *diag.Sink) (*store.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dir := filepath.Dir(path)

	resolver := func(included string) (*store.Store, error) {
		if !filepath.IsAbs(included) {
			included = filepath.Join(dir, included)
		}

		return loadFile(included, diags)
	}

	return tokenize.New(path, diags).WithIncludeResolver(resolver).Parse(f), nil
}
