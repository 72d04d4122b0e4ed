// Package design ties the pipeline together: merge every input file's
// store into one tree, run the fixed-point evaluator, freeze the result,
// discover clocks/buses/PICs from it, assign addresses, and route
// interrupts. It exposes the finished Design through a small set of
// read-only, ordered list views rather than handing out raw structs.
//
// Discovery walks the store's top-level keys -- each one a component -- and
// looks for a handful of conventional nested maps:
//
//	<component>.CLOCK                declares a clock
//	<component>.BUS                  declares <component> itself as a bus
//	<component>.MASTER                declares <component> as a bus master
//	<component>.SLAVE                 declares <component> as a bus slave
//	<component>.PIC                   declares <component> as an interrupt controller
//	<component>.INT                   declares <component> as an interrupt source
package design

import (
	"sort"

	"github.com/fpga-compose/autosoc/internal/addr"
	"github.com/fpga-compose/autosoc/internal/bus"
	"github.com/fpga-compose/autosoc/internal/clock"
	"github.com/fpga-compose/autosoc/internal/diag"
	"github.com/fpga-compose/autosoc/internal/eval"
	"github.com/fpga-compose/autosoc/internal/intr"
	"github.com/fpga-compose/autosoc/internal/store"
)

// Source is one input file already reduced to a Store, tagged with the
// file it came from for diagnostics.
type Source struct {
	File  string
	Store *store.Store
}

// Design is the fully built composition: a frozen store plus the derived
// clock, bus and interrupt-routing views built from it.
type Design struct {
	Root   *store.Store
	Buses  []*bus.Bus
	Clocks []clock.Clock
	Routes []intr.Assignment
	PICs   []string
	Diags  *diag.Sink
	Sweeps int
}

// Build runs the full pipeline over sources: merge, evaluate, discover,
// assign addresses, route interrupts.
func Build(sources []Source, diags *diag.Sink) *Design {
	root := Merge(sources, diags)
	sweeps := Evaluate(root, diags)

	clocks := clock.New(diags)
	buses := bus.New(diags)
	pics := intr.New(diags)

	pendingBridges := discover(root, clocks, buses, pics, diags)

	resolvedClocks := clocks.Resolve(root)
	resolvedBuses := buses.Resolve(clocks.Default())

	for _, pb := range pendingBridges {
		child, ok := buses.Lookup(pb.childBus)
		if !ok {
			diags.Errorf("bus", pb.slave.Component, "bridge slave %q: bridged bus %q not found",
				pb.slave.Component, pb.childBus)

			continue
		}

		pb.slave.Bridge = child
	}

	for _, b := range resolvedBuses {
		bus.Synthesize(b)
	}

	addr.New(diags).AssignAll(resolvedBuses)

	routes := pics.Route()

	writeBackAddresses(root, resolvedBuses)
	writeBackInterrupts(root, routes)

	return &Design{
		Root:   root,
		Buses:  orderBuses(resolvedBuses),
		Clocks: resolvedClocks,
		Routes: routes,
		PICs:   pics.PICNames(),
		Diags:  diags,
		Sweeps: sweeps,
	}
}

// Merge folds every source's store into one tree, in order, then flattens
// super-store inheritance. A later source's scalar keys override an
// earlier source's; "+"-prefixed keys append-merge instead.
func Merge(sources []Source, diags *diag.Sink) *store.Store {
	root := store.New()

	for _, s := range sources {
		if err := root.Merge(s.Store); err != nil {
			diags.Errorf("merge", s.File, "%s", err)
		}
	}

	root.Flatten()

	return root
}

// Evaluate runs the fixed-point evaluator over root in place and returns
// the number of sweeps it took.
func Evaluate(root *store.Store, diags *diag.Sink) int {
	return eval.New(diags).Run(root)
}

func intField(m *store.Store, key string, def int64) int64 {
	if n, ok := m.AsInt(key); ok {
		return n
	}

	return def
}

func textField(m *store.Store, key, def string) string {
	if s, ok := m.AsText(key); ok {
		return s
	}

	return def
}

// boolField treats a key's mere presence as true (the bare "@OPT_FOO" flag
// form), except an explicit Integer value of zero, which means "off".
func boolField(m *store.Store, key string) bool {
	v, ok := m.Lookup(key)
	if !ok {
		return false
	}

	if n, isInt := v.(store.Integer); isInt {
		return n != 0
	}

	return true
}

// pendingBridge records a declared (not synthesized) bridge slave's link
// to the bus it fronts, resolved once every bus has been discovered.
type pendingBridge struct {
	slave    *bus.Slave
	childBus string
}

// discover walks root's top-level components and populates clocks, buses
// and pics from whichever of the conventional nested maps each one
// declares. A component may be more than one of these at once (e.g. a
// bridge is both a slave on its parent bus and a master on its own). It
// returns any declared-bridge slave/child-bus links found, for the caller
// to resolve once bus discovery is complete.
func discover(root *store.Store, clocks *clock.Registry, buses *bus.Registry, pics *intr.Router, diags *diag.Sink) []pendingBridge {
	var pendingBridges []pendingBridge

	// First pass: PIC declarations, so AddLine in the second pass can
	// validate fan-out against a complete set of known PIC names.
	for _, name := range root.Keys() {
		comp, ok := root.AsMap(name)
		if !ok {
			continue
		}

		if p, ok := comp.AsMap("PIC"); ok {
			slots := intField(p, "MAX", 32)
			pics.AddPIC(name, int(slots))
		}
	}

	for _, name := range root.Keys() {
		comp, ok := root.AsMap(name)
		if !ok {
			continue
		}

		if v, ok := comp.Lookup("CLOCK"); ok {
			switch c := v.(type) {
			case store.MapValue:
				clocks.Declare(clock.Declaration{
					Name:      textField(c.S, "NAME", name),
					Wire:      textField(c.S, "WIRE", ""),
					Top:       textField(c.S, "TOP", ""),
					SimClass:  textField(c.S, "CLASS", ""),
					PeriodPS:  intField(c.S, "PERIOD", 0),
					FreqHz:    intField(c.S, "FREQUENCY", 0),
					IsDefault: boolField(c.S, "DEFAULT"),
					Component: name,
				})
			case store.Text:
				// The short triple form: "CLOCK=name wire freq", frequency
				// in Hz and optional.
				d, err := clock.ParseTriple(string(c), name)
				if err != nil {
					diags.Errorf("clock", name, "%s", err)
				} else {
					clocks.Declare(d)
				}
			}
		}

		if bd, ok := comp.AsMap("BUS"); ok {
			busName := textField(bd, "NAME", name)

			opts := bus.Options{
				LowPower:     boolField(bd, "OPT_LOWPOWER"),
				DoubleBuffer: boolField(bd, "OPT_DBLBUFFER"),
				Timeout:      intField(bd, "OPT_TIMEOUT", 0),
				MaxBurstLog:  intField(bd, "OPT_MAXBURST", 0),
				Linger:       intField(bd, "OPT_LINGER", 0),
			}

			buses.DeclareBus(busName,
				textField(bd, "TYPE", "wb"),
				intField(bd, "WIDTH", 32),
				textField(bd, "CLOCK", ""),
				textField(bd, "RESET", ""),
				intField(bd, "NULLSZ", 0),
				opts, name)
		}

		if md, ok := comp.AsMap("MASTER"); ok {
			busName := textField(md, "BUS", "")
			if busName == "" {
				diags.WarnAt("bus", name, "", "component %q declares MASTER with no BUS", name)
			} else {
				buses.AddMaster(busName, &bus.Master{
					Component: name,
					Prefix:    textField(md, "PREFIX", name),
					ReadOnly:  boolField(md, "OPT_READONLY"),
					WriteOnly: boolField(md, "OPT_WRITEONLY"),
					IDWidth:   intField(md, "IDWIDTH", 0),
				})
			}
		}

		if sd, ok := comp.AsMap("SLAVE"); ok {
			busName := textField(sd, "BUS", "")
			if busName == "" {
				diags.WarnAt("bus", name, "", "component %q declares SLAVE with no BUS", name)
			} else {
				var order *int64
				if n, ok := sd.AsInt("ORDER"); ok {
					order = &n
				}

				s := &bus.Slave{
					Component:  name,
					Prefix:     textField(sd, "PREFIX", name),
					Tier:       bus.ParseTier(textField(sd, "TYPE", "")),
					NAddr:      intField(sd, "NADDR", 0),
					Order:      order,
					ReadOnly:   boolField(sd, "OPT_READONLY"),
					WriteOnly:  boolField(sd, "OPT_WRITEONLY"),
					ErrorWire:  textField(sd, "ERROR_WIRE", ""),
					LinkerName: textField(sd, "LD_NAME", ""),
					LinkerPerm: textField(sd, "LD_PERM", "rwx"),
					LinkerAttr: textField(sd, "LD_ATTR", ""),
				}

				if s.LinkerName != "" && s.Tier != bus.TierMemory {
					diags.Errorf("bus", name,
						"component %q requests linker-script entry %q but is not a MEMORY slave", name, s.LinkerName)
				}

				buses.AddSlave(busName, s)

				if s.Tier == bus.TierBusBridge {
					if child := textField(sd, "BRIDGE", ""); child != "" {
						pendingBridges = append(pendingBridges, pendingBridge{slave: s, childBus: child})
					}
				}
			}
		}

		if im, ok := comp.AsMap("INT"); ok {
			// INT is a map of named lines: INT.<line>.WIRE, INT.<line>.PIC
			// and an optional pinned INT.<line>.ID.
			for _, lineName := range im.Keys() {
				if lineName == store.SuperKey {
					continue
				}

				lm, ok := im.AsMap(lineName)
				if !ok {
					continue
				}

				pin := -1
				if n, ok := lm.AsInt("ID"); ok {
					pin = int(n)
				}

				var picNames []string

				if picList, ok := lm.AsText("PIC"); ok && picList != "" {
					picNames = splitList(picList)
				}

				pics.AddLine(intr.Line{
					Component: name,
					Name:      lineName,
					Wire:      textField(lm, "WIRE", lineName),
					PICs:      picNames,
					Pin:       pin,
				})
			}
		}
	}

	return pendingBridges
}

// writeBackAddresses writes every slave's assigned BASE/MASK/AWID, and each
// bus's own AWID, into root as derived integers. It recurses into bridge sub-buses the
// same way addr.AssignBus does, so a synthesized or declared bridge's own
// child bus gets its slaves (and its own AWID) written back too.
func writeBackAddresses(root *store.Store, buses []*bus.Bus) {
	seen := make(map[*bus.Bus]bool)

	var visit func(b *bus.Bus)

	visit = func(b *bus.Bus) {
		if seen[b] {
			return
		}

		seen[b] = true

		for _, s := range b.Slaves {
			_ = root.Insert(s.Component+".SLAVE.BASE", store.Integer(s.BaseOctets))
			_ = root.Insert(s.Component+".SLAVE.MASK", store.Integer(s.Mask))
			_ = root.Insert(s.Component+".SLAVE.AWID", store.Integer(s.AWIDBits))

			if s.Bridge != nil {
				visit(s.Bridge)
			}
		}

		if b.DeclaringComponent != "" {
			_ = root.Insert(b.DeclaringComponent+".BUS.AWID", store.Integer(b.AddrWidth))
		}
	}

	for _, b := range buses {
		visit(b)
	}
}

// writeBackInterrupts writes each routed line's assigned ID back into root
// under <component>.INT.<line>.ID. A line that fans out to more than one
// PIC gets an independent ID per controller, so in that case ID becomes a
// map holding one ID.<pic> key per assignment, replacing any pinned ID
// value the input gave.
func writeBackInterrupts(root *store.Store, routes []intr.Assignment) {
	byLine := make(map[string][]intr.Assignment)
	var order []string

	for _, a := range routes {
		key := a.Line.Component + "\x00" + a.Line.Name
		if _, ok := byLine[key]; !ok {
			order = append(order, key)
		}

		byLine[key] = append(byLine[key], a)
	}

	for _, key := range order {
		assignments := byLine[key]
		line := assignments[0].Line
		prefix := line.Component + ".INT." + line.Name

		if len(assignments) == 1 {
			_ = root.Insert(prefix+".ID", store.Integer(assignments[0].Slot))
			continue
		}

		if _, isMap := root.AsMap(prefix + ".ID"); !isMap {
			_ = root.Insert(prefix+".ID", store.MapValue{S: store.New()})
		}

		for _, a := range assignments {
			_ = root.Insert(prefix+".ID."+a.PIC, store.Integer(a.Slot))
		}
	}
}

func splitList(s string) []string {
	var out []string
	start := 0

	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}

			start = i + 1
		}
	}

	return out
}

// orderBuses walks roots and every bus reachable through a bridge slave's
// child, emitting each bus only after every bus it bridges to, so the
// list comes out in dependency order, children before parents. A
// synthesized tier bridge (bus.Synthesize) never gets registered on its
// own -- it's only reachable by following a bridge slave's Bridge pointer
// -- so this walk is also what discovers synthesized sub-buses for the
// caller.
func orderBuses(roots []*bus.Bus) []*bus.Bus {
	var out []*bus.Bus

	seen := make(map[*bus.Bus]bool)

	var visit func(b *bus.Bus)

	visit = func(b *bus.Bus) {
		if seen[b] {
			return
		}

		seen[b] = true

		for _, s := range b.Slaves {
			if s.Bridge != nil {
				visit(s.Bridge)
			}
		}

		out = append(out, b)
	}

	for _, b := range roots {
		visit(b)
	}

	return out
}

// ListBuses returns the design's buses in dependency order, each bus after
// every bus it bridges to (children before parents).
func (d *Design) ListBuses() []*bus.Bus { return d.Buses }

// ListSlaves returns every slave on every bus, in bus-then-ascending-
// base-address order.
func (d *Design) ListSlaves() []*bus.Slave {
	var out []*bus.Slave

	for _, b := range d.Buses {
		sorted := append([]*bus.Slave(nil), b.Slaves...)

		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].BaseOctets < sorted[j].BaseOctets
		})

		out = append(out, sorted...)
	}

	return out
}

// ListMasters returns every master on every bus, in bus-then-declaration
// order.
func (d *Design) ListMasters() []*bus.Master {
	var out []*bus.Master

	for _, b := range d.Buses {
		out = append(out, b.Masters...)
	}

	return out
}

// ListClocks returns every resolved clock, in declaration order.
func (d *Design) ListClocks() []clock.Clock { return d.Clocks }

// ListPICs returns every registered PIC's name.
func (d *Design) ListPICs() []string { return d.PICs }
