// Package bus implements the bus registry: discovery of bus, master and
// slave declarations from the store, and the slave-tier classifier and
// sub-bus synthesizer that decide how a bus's interconnect is structured.
package bus

import (
	"github.com/fpga-compose/autosoc/internal/diag"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type Tier -output tier_string.go

// Tier is a slave's interconnect-complexity class.
type Tier uint8

const (
	TierSingle Tier = iota // one-address-word, no stalls, no independent decode
	TierDouble              // two-cycle, no-stall
	TierMemory              // block memory: wide, dense address range
	TierOther               // everything else
	TierBusBridge           // synthesized or declared bridge slave
)

// Options carries a bus's optional, HDL-opaque attributes (the BUS.OPT_*
// keys). The core never interprets these beyond carrying them through to
// the store.
type Options struct {
	LowPower     bool
	DoubleBuffer bool
	Timeout      int64
	MaxBurstLog  int64
	Linger       int64
}

// Master is a bus-master reference.
type Master struct {
	Component string
	Prefix    string
	ReadOnly  bool
	WriteOnly bool
	IDWidth   int64 // 0 if unset; AXI only
}

// Slave is a bus-slave reference. Bridge is set iff Tier == TierBusBridge;
// owning a child bus is a capability of the slave, not a separate type.
type Slave struct {
	Component string
	Prefix    string
	Tier      Tier
	NAddr     int64
	Order     *int64 // explicit SLAVE.ORDER, nil if unset

	ReadOnly  bool
	WriteOnly bool
	ErrorWire string

	LinkerName string
	LinkerPerm string
	LinkerAttr string

	// Derived by the address assigner. Mask holds only the high octet-
	// address bits that actually distinguish this slave from its peers: a
	// request decodes to the slave iff (addr & Mask) == BaseOctets.
	BaseOctets int64
	Mask       int64
	AWIDBits   int64 // slave-side address width, bits of octet address

	Bridge *Bus // non-nil iff this slave owns a child bus
}

// Bus is a named interconnect.
type Bus struct {
	Name          string
	Type          string
	DataWidth     int64 // bits
	AddrWidth     int64 // bits; derived by the address assigner
	ClockName     string
	Reset         string
	NullSize      int64 // octets
	Opts          Options
	WordAddressed bool

	// DeclaringComponent is the name of the component whose BUS.NAME
	// declared this bus, empty for a synthesized tier bridge (there is no
	// store entry to write its derived AWID back into).
	DeclaringComponent string

	Masters []*Master
	Slaves  []*Slave

	synthetic bool // true for a *_sio/*_dio bridge's child bus
}

// wordAddressedTypes names bus type tags that count addresses in data
// words rather than octets.
var wordAddressedTypes = map[string]bool{
	"wb":  true,
	"wbp": true,
}

// Registry discovers and owns every Bus in the design.
type Registry struct {
	diags *diag.Sink
	buses map[string]*Bus
	order []string
}

// New creates an empty Registry.
func New(diags *diag.Sink) *Registry {
	return &Registry{diags: diags, buses: make(map[string]*Bus)}
}

func (r *Registry) busFor(name, busType string, width int64, clockName, reset string, nullsz int64, opts Options, component string) *Bus {
	b, ok := r.buses[name]

	if !ok {
		b = &Bus{
			Name:          name,
			Type:          busType,
			DataWidth:     width,
			ClockName:     clockName,
			Reset:         reset,
			NullSize:      nullsz,
			Opts:          opts,
			WordAddressed: wordAddressedTypes[busType],
		}
		r.buses[name] = b
		r.order = append(r.order, name)

		return b
	}

	if busType != "" && b.Type == "" {
		b.Type = busType
		b.WordAddressed = wordAddressedTypes[busType]
	}

	if width != 0 {
		if b.DataWidth != 0 && b.DataWidth != width {
			// A data-width conflict is an error, not first-wins; the first
			// declared width is kept so downstream stages still run.
			r.diags.Errorf("bus", component,
				"bus %q: data width conflict: have %d bits, want %d bits", name, b.DataWidth, width)
		} else {
			b.DataWidth = width
		}
	}

	if clockName != "" && b.ClockName == "" {
		b.ClockName = clockName
	}

	if reset != "" && b.Reset == "" {
		b.Reset = reset
	}

	if nullsz != 0 && b.NullSize == 0 {
		b.NullSize = nullsz
	}

	return b
}

// DeclareBus registers (or updates) a bus's own declared attributes. A
// declared data width must be a power of two of at least 8 bits.
func (r *Registry) DeclareBus(name, busType string, width int64, clockName, reset string, nullsz int64, opts Options, component string) {
	if width != 0 && (width < 8 || width&(width-1) != 0) {
		r.diags.Errorf("bus", component,
			"bus %q: data width %d is not a power of two >= 8", name, width)

		width = 0
	}

	b := r.busFor(name, busType, width, clockName, reset, nullsz, opts, component)

	if b.DeclaringComponent == "" {
		b.DeclaringComponent = component
	}
}

// AddMaster registers a master participating on a named bus.
func (r *Registry) AddMaster(busName string, m *Master) {
	b := r.busFor(busName, "", 0, "", "", 0, Options{}, m.Component)
	b.Masters = append(b.Masters, m)
}

// AddSlave registers a slave participating on a named bus.
func (r *Registry) AddSlave(busName string, s *Slave) {
	b := r.busFor(busName, "", 0, "", "", 0, Options{}, s.Component)
	b.Slaves = append(b.Slaves, s)
}

// Resolve finalizes registration: drops a bus with neither masters nor
// slaves (with a warning), defaults an unclocked bus to the design's
// default clock, and returns every live bus.
func (r *Registry) Resolve(defaultClock string) []*Bus {
	var result []*Bus

	for _, name := range r.order {
		b := r.buses[name]

		if len(b.Masters) == 0 && len(b.Slaves) == 0 {
			r.diags.Warnf("bus", name, "bus %q has no masters and no slaves; dropped", name)
			continue
		}

		if len(b.Masters) == 0 {
			r.diags.WarnAt("bus", name, "", "bus %q has no masters", name)
		}

		if b.ClockName == "" {
			b.ClockName = defaultClock
		}

		result = append(result, b)
	}

	return result
}

// Lookup returns the bus registered under name, if any.
func (r *Registry) Lookup(name string) (*Bus, bool) {
	b, ok := r.buses[name]
	return b, ok
}

