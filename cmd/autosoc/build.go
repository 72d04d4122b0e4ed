package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fpga-compose/autosoc/internal/design"
	"github.com/fpga-compose/autosoc/internal/diag"
	"github.com/fpga-compose/autosoc/internal/emit"
	"github.com/fpga-compose/autosoc/internal/log"
)

func newBuildCmd() *cobra.Command {
	var (
		headerOut  string
		regdefsOut string
		linkerOut  string
		makeOut    string
		debugDump  string
	)

	cmd := &cobra.Command{
		Use:   "build <file>...",
		Short: "Merge, evaluate and compose one or more input files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diags := &diag.Sink{}

			sources, err := loadSources(args, diags)
			if err != nil {
				return err
			}

			d := design.Build(sources, diags)

			log.DefaultLogger().Debug("design composed",
				log.Int("sweeps", d.Sweeps),
				log.Int("buses", len(d.Buses)),
				log.Int("clocks", len(d.Clocks)),
				log.Int("pics", len(d.PICs)))

			if debugDump != "" {
				if err := writeDebugDump(debugDump, d); err != nil {
					return err
				}
			}

			if headerOut != "" {
				if err := writeTo(headerOut, func(w *os.File) error {
					return emit.WriteHeader(w, "AUTOSOC_H", d)
				}); err != nil {
					return err
				}
			}

			if linkerOut != "" {
				if err := writeTo(linkerOut, func(w *os.File) error {
					return emit.WriteLinkerScript(w, d)
				}); err != nil {
					return err
				}
			}

			if regdefsOut != "" {
				if err := writeTo(regdefsOut, func(w *os.File) error {
					return emit.WriteRegisterDefs(w, "REGDEFS_H", d, diags)
				}); err != nil {
					return err
				}
			}

			if makeOut != "" {
				if err := writeTo(makeOut, func(w *os.File) error {
					return emit.WriteMakeFragment(w, d)
				}); err != nil {
					return err
				}
			}

			for _, dg := range diags.Diagnostics() {
				fmt.Fprintln(cmd.ErrOrStderr(), dg.Error())
			}

			if diags.HasErrors() {
				return fmt.Errorf("build: %d error(s)", countErrors(diags))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&headerOut, "header", "", "write a C header of address #defines to this path")
	cmd.Flags().StringVar(&regdefsOut, "regdefs", "", "write a C header of register #defines (from REGS lists) to this path")
	cmd.Flags().StringVar(&linkerOut, "linker-script", "", "write a GNU linker-script memory map to this path")
	cmd.Flags().StringVar(&makeOut, "make-fragment", "", "write a Makefile fragment to this path")
	cmd.Flags().StringVar(&debugDump, "debug-dump", "", "write a YAML snapshot of the composed design to this path")

	return cmd
}

func writeTo(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer f.Close()

	return fn(f)
}

func countErrors(diags *diag.Sink) int {
	n := 0

	for _, d := range diags.Diagnostics() {
		if d.Severity >= diag.Error {
			n++
		}
	}

	return n
}

// debugDump is a flattened, YAML-friendly snapshot of a Design, used only
// for --debug-dump; it is never the input format.
type debugDump struct {
	Sweeps int                `yaml:"sweeps"`
	Clocks []debugClock       `yaml:"clocks"`
	Buses  []debugBus         `yaml:"buses"`
	PICs   []string           `yaml:"pics"`
}

type debugClock struct {
	Name     string `yaml:"name"`
	Wire     string `yaml:"wire"`
	PeriodPS int64  `yaml:"period_ps"`
	Default  bool   `yaml:"default"`
}

type debugBus struct {
	Name      string       `yaml:"name"`
	Type      string       `yaml:"type"`
	DataWidth int64        `yaml:"data_width"`
	AddrWidth int64        `yaml:"addr_width"`
	Slaves    []debugSlave `yaml:"slaves"`
}

type debugSlave struct {
	Component string `yaml:"component"`
	Tier      string `yaml:"tier"`
	Base      int64  `yaml:"base"`
	Mask      int64  `yaml:"mask"`
}

func writeDebugDump(path string, d *design.Design) error {
	dump := debugDump{Sweeps: d.Sweeps, PICs: d.PICs}

	for _, c := range d.Clocks {
		dump.Clocks = append(dump.Clocks, debugClock{
			Name: c.Name, Wire: c.Wire, PeriodPS: c.PeriodPS, Default: c.IsDefault,
		})
	}

	for _, b := range d.Buses {
		db := debugBus{Name: b.Name, Type: b.Type, DataWidth: b.DataWidth, AddrWidth: b.AddrWidth}

		for _, s := range b.Slaves {
			db.Slaves = append(db.Slaves, debugSlave{
				Component: s.Component, Tier: s.Tier.String(), Base: s.BaseOctets, Mask: s.Mask,
			})
		}

		dump.Buses = append(dump.Buses, db)
	}

	out, err := yaml.Marshal(dump)
	if err != nil {
		return err
	}

	return os.WriteFile(path, out, 0o644)
}
