package emit

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fpga-compose/autosoc/internal/bus"
	"github.com/fpga-compose/autosoc/internal/design"
	"github.com/fpga-compose/autosoc/internal/diag"
)

// register is one parsed REGS.<n> entry, tied back to the slave that
// declared it.
type register struct {
	DefName string   // C definition name
	Names   []string // user-facing names, possibly empty
	Addr    int64    // absolute octet address
}

// gatherRegisters walks every slave of every bus and parses its component's
// REGS list: REGS.N holds the count, each REGS.<n> a string of the form
// "<offset> <NAME> [user names...]". Offsets count bus addresses, so on a
// word-addressed bus they are scaled to octets before being added to the
// slave's base.
func gatherRegisters(d *design.Design, diags *diag.Sink) []register {
	var regs []register

	for _, b := range d.ListBuses() {
		daddr := int64(0)
		if b.WordAddressed {
			for w := b.DataWidth / 8; w > 1; w >>= 1 {
				daddr++
			}
		}

		for _, s := range b.Slaves {
			if s.Tier == bus.TierBusBridge {
				continue
			}

			comp, ok := d.Root.AsMap(s.Component)
			if !ok {
				continue
			}

			n, ok := comp.AsInt("REGS.N")
			if !ok {
				continue
			}

			for j := int64(0); j < n; j++ {
				raw, ok := comp.AsText("REGS." + strconv.FormatInt(j, 10))
				if !ok {
					diags.WarnAt("emit", s.Component, "", "REGS.%d missing (REGS.N=%d)", j, n)
					continue
				}

				r, err := parseRegister(raw)
				if err != nil {
					diags.WarnAt("emit", s.Component, "", "REGS.%d: %s", j, err)
					continue
				}

				r.Addr = s.BaseOctets + r.Addr<<daddr
				regs = append(regs, r)
			}
		}
	}

	return regs
}

// parseRegister splits "<offset> <NAME> [user names...]" on spaces, tabs
// and commas. The returned register's Addr holds the raw offset; the caller
// rebases it.
func parseRegister(raw string) (register, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})

	if len(fields) < 2 {
		return register{}, fmt.Errorf("malformed register entry %q", raw)
	}

	offset, err := strconv.ParseInt(fields[0], 0, 64)
	if err != nil {
		return register{}, fmt.Errorf("register entry %q: bad offset: %s", raw, err)
	}

	return register{DefName: fields[1], Names: fields[2:], Addr: offset}, nil
}

// WriteRegisterDefs renders a C header #define per declared register, each
// at its absolute octet address, aligned on the longest definition name the
// way the generated file's human readers expect.
func WriteRegisterDefs(w io.Writer, guard string, d *design.Design, diags *diag.Sink) error {
	regs := gatherRegisters(d, diags)

	longest := 0
	for _, r := range regs {
		if len(r.DefName) > longest {
			longest = len(r.DefName)
		}
	}

	if _, err := fmt.Fprintf(w, "#ifndef %s\n#define %s\n\n", guard, guard); err != nil {
		return err
	}

	for _, r := range regs {
		if _, err := fmt.Fprintf(w, "#define %-*s 0x%08x\n", longest, r.DefName, r.Addr); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\n#endif /* %s */\n", guard)

	return err
}

// WriteRegisterNames renders the name-lookup table companion to
// WriteRegisterDefs: one row per user name, mapping it to its register's
// definition, for a debugger or register-poke tool to resolve names at
// runtime.
func WriteRegisterNames(w io.Writer, d *design.Design, diags *diag.Sink) error {
	regs := gatherRegisters(d, diags)

	longestDef, longestName := 0, 0

	for _, r := range regs {
		if len(r.DefName) > longestDef {
			longestDef = len(r.DefName)
		}

		for _, n := range r.Names {
			if len(n) > longestName {
				longestName = len(n)
			}
		}
	}

	if _, err := fmt.Fprintf(w, "const REGNAME raw_bregs[] = {\n"); err != nil {
		return err
	}

	first := true

	for _, r := range regs {
		for _, n := range r.Names {
			if !first {
				if _, err := io.WriteString(w, ",\n"); err != nil {
					return err
				}
			}

			first = false

			if _, err := fmt.Fprintf(w, "\t{ %-*s,\t\"%s\"%*s\t}",
				longestDef, r.DefName, n, longestName-len(n), ""); err != nil {
				return err
			}
		}
	}

	_, err := io.WriteString(w, "\n};\n")

	return err
}
