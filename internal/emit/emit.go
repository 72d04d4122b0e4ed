// Package emit renders a finished design into the textual artifacts the
// build system and firmware toolchain consume: a C header of #define
// constants, a register-definition header and register-name table, a GNU
// linker-script memory map, and a Makefile fragment. The header, linker and
// Makefile emitters are stdlib text/templates and the register emitters
// write with fmt, keeping generated-text concerns out of the core data
// model.
package emit

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/fpga-compose/autosoc/internal/bus"
	"github.com/fpga-compose/autosoc/internal/design"
)

var headerTmpl = template.Must(template.New("header").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"hex":   func(n int64) string { return fmt.Sprintf("0x%08x", n) },
}).Parse(`#ifndef {{.Guard}}
#define {{.Guard}}
{{range .Rows}}
#define {{upper .Name}}	{{hex .BaseOctets}}
#define {{upper .Name}}_MASK	{{hex .Mask}}
{{end}}
#endif /* {{.Guard}} */
`))

type headerRow struct {
	Name       string
	BaseOctets int64
	Mask       int64
}

// HeaderData adapts a Design for the C-header template.
type HeaderData struct {
	Guard string
	Rows  []headerRow
}

// WriteHeader renders a C header of address/mask #defines for d's slaves.
func WriteHeader(w io.Writer, guard string, d *design.Design) error {
	var rows []headerRow

	for _, b := range d.Buses {
		for _, s := range b.Slaves {
			if s.Tier == bus.TierBusBridge {
				continue
			}

			rows = append(rows, headerRow{Name: b.Name + "_" + s.Prefix, BaseOctets: s.BaseOctets, Mask: s.Mask})
		}
	}

	return headerTmpl.Execute(w, HeaderData{Guard: guard, Rows: rows})
}

var linkerTmpl = template.Must(template.New("ld").Parse(`/* generated memory map */
MEMORY {
{{range .Slaves}}	{{.LinkerName}} ({{.LinkerPerm}}) : ORIGIN = {{printf "0x%08x" .BaseOctets}}, LENGTH = {{printf "0x%08x" .Length}}
{{end}}}
`))

type linkerSlave struct {
	*bus.Slave
	Length int64
}

// WriteLinkerScript renders a GNU-ld MEMORY block covering every memory
// slave in d that requested a linker-script entry, in address order. A
// region's length is the slave's natural address range, 1<<AWIDBits
// octets.
func WriteLinkerScript(w io.Writer, d *design.Design) error {
	slaves := d.ListSlaves()

	rows := make([]linkerSlave, 0, len(slaves))

	for _, s := range slaves {
		if s.Tier != bus.TierMemory || s.LinkerName == "" {
			continue
		}

		rows = append(rows, linkerSlave{Slave: s, Length: int64(1) << s.AWIDBits})
	}

	return linkerTmpl.Execute(w, struct{ Slaves []linkerSlave }{rows})
}

var makeTmpl = template.Must(template.New("mk").Parse(`# generated build fragment
CLOCKS := {{range .Clocks}}{{.Name}} {{end}}
PICS := {{range .PICs}}{{.}} {{end}}
`))

// WriteMakeFragment renders a Makefile fragment listing d's clocks and
// interrupt controllers.
func WriteMakeFragment(w io.Writer, d *design.Design) error {
	return makeTmpl.Execute(w, d)
}

// WriteHDL is a placeholder: translating a Design into synthesizable HDL
// glue (Verilog/VHDL top-level port lists, interconnect instantiation) is
// dialect-specific and out of scope for this pipeline.
func WriteHDL(_ io.Writer, _ *design.Design, dialect string) error {
	return fmt.Errorf("emit: HDL dialect %q: not implemented: HDL dialect is an external concern", dialect)
}
