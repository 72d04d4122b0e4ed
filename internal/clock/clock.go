// Package clock implements the clock registry: it discovers clock
// declarations in the frozen store and assigns each a canonical name,
// wire, optional top-level pin, optional simulation class, and period.
package clock

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fpga-compose/autosoc/internal/diag"
	"github.com/fpga-compose/autosoc/internal/store"
)

// UnknownPeriod is the sentinel period (picoseconds) meaning "unknown".
const UnknownPeriod = 2

// DefaultName, DefaultWire and DefaultPeriod describe the clock synthesized
// when no file declares one.
const (
	DefaultName   = "clk"
	DefaultWire   = "i_clk"
	DefaultPeriod = 10_000 // 10ns, in picoseconds
)

// Clock is one clock domain in the design.
type Clock struct {
	Name       string
	Wire       string
	Top        string // optional top-level pin name
	SimClass   string // optional simulation-class name
	PeriodPS   int64  // picoseconds; UnknownPeriod if not yet known
	IsDefault  bool
}

// FrequencyHz returns the clock's frequency, derived from its period.
// It is only meaningful once PeriodPS is known.
func (c Clock) FrequencyHz() int64 {
	if c.PeriodPS <= 0 {
		return 0
	}

	return 1_000_000_000_000 / c.PeriodPS
}

// Declaration is one raw clock declaration as discovered from the store,
// before duplicates are reconciled.
type Declaration struct {
	Name      string
	Wire      string
	Top       string
	SimClass  string
	PeriodPS  int64 // 0 means "not specified"
	FreqHz    int64 // 0 means "not specified"
	IsDefault bool
	Component string // originating component, for diagnostics
}

// ParseTriple parses the short declaration form "name wire freq": the
// logical name, its HDL wire, and an optional frequency in Hz.
func ParseTriple(text, component string) (Declaration, error) {
	fields := strings.Fields(text)

	if len(fields) < 2 || len(fields) > 3 {
		return Declaration{}, fmt.Errorf("clock %q: want \"name wire [freq]\", got %q", component, text)
	}

	d := Declaration{
		Name:      fields[0],
		Wire:      fields[1],
		Component: component,
	}

	if len(fields) == 3 {
		freq, err := strconv.ParseInt(fields[2], 0, 64)
		if err != nil || freq <= 0 {
			return Declaration{}, fmt.Errorf("clock %q: bad frequency %q", component, fields[2])
		}

		d.FreqHz = freq
	}

	return d, nil
}

// Registry accumulates clock declarations and resolves them into Clocks.
type Registry struct {
	diags   *diag.Sink
	clocks  map[string]*Clock
	order   []string
	defName string
}

// New creates an empty Registry.
func New(diags *diag.Sink) *Registry {
	return &Registry{
		diags:  diags,
		clocks: make(map[string]*Clock),
	}
}

// Declare registers one clock declaration. Duplicate declarations for the
// same name must agree on wire and frequency; a mismatch is reported but
// does not abort registration -- the first declaration's values win.
func (r *Registry) Declare(d Declaration) {
	periodPS := d.PeriodPS

	switch {
	case periodPS == 0 && d.FreqHz > 0:
		periodPS = 1_000_000_000_000 / d.FreqHz
	case periodPS == 0:
		periodPS = UnknownPeriod
	}

	existing, ok := r.clocks[d.Name]
	if !ok {
		c := &Clock{
			Name:      d.Name,
			Wire:      d.Wire,
			Top:       d.Top,
			SimClass:  d.SimClass,
			PeriodPS:  periodPS,
			IsDefault: d.IsDefault,
		}

		r.clocks[d.Name] = c
		r.order = append(r.order, d.Name)

		if d.IsDefault {
			r.defName = d.Name
		}

		return
	}

	if d.Wire != "" && existing.Wire != "" && d.Wire != existing.Wire {
		r.diags.Errorf("clock", d.Component, "clock %q: wire mismatch: have %q, want %q",
			d.Name, existing.Wire, d.Wire)
	}

	if periodPS != UnknownPeriod && existing.PeriodPS != UnknownPeriod && periodPS != existing.PeriodPS {
		r.diags.Errorf("clock", d.Component, "clock %q: frequency mismatch: have %dps, want %dps",
			d.Name, existing.PeriodPS, periodPS)
	}

	if existing.Wire == "" {
		existing.Wire = d.Wire
	}

	if existing.PeriodPS == UnknownPeriod {
		existing.PeriodPS = periodPS
	}

	if d.IsDefault {
		r.defName = d.Name
	}
}

// Resolve finalizes the registry: if no clock was declared at all, or no
// declaration was marked default, it synthesizes the default clock
// ("clk"/"i_clk"/10ns) and writes every resolved clock back
// into the store under CLOCK.<name>.*.
func (r *Registry) Resolve(root *store.Store) []Clock {
	if len(r.order) == 0 {
		r.clocks[DefaultName] = &Clock{
			Name:      DefaultName,
			Wire:      DefaultWire,
			PeriodPS:  DefaultPeriod,
			IsDefault: true,
		}
		r.order = append(r.order, DefaultName)
		r.defName = DefaultName
	} else if r.defName == "" {
		// No declaration claimed to be the default; synthesize one alongside
		// the declared clocks rather than guessing which declared clock the
		// designer meant.
		if _, exists := r.clocks[DefaultName]; !exists {
			r.clocks[DefaultName] = &Clock{
				Name:      DefaultName,
				Wire:      DefaultWire,
				PeriodPS:  DefaultPeriod,
				IsDefault: true,
			}
			r.order = append(r.order, DefaultName)
		} else {
			r.clocks[DefaultName].IsDefault = true
		}

		r.defName = DefaultName
	}

	clocks := make([]Clock, 0, len(r.order))

	for _, name := range r.order {
		c := *r.clocks[name]
		clocks = append(clocks, c)

		clockStore := store.New()
		clockStore.Set("WIRE", store.Text(c.Wire))
		clockStore.Set("PERIOD", store.Integer(c.PeriodPS))

		if c.Top != "" {
			clockStore.Set("TOP", store.Text(c.Top))
		}

		if c.SimClass != "" {
			clockStore.Set("CLASS", store.Text(c.SimClass))
		}

		_ = root.Insert("CLOCK."+c.Name, store.MapValue{S: clockStore})
	}

	return clocks
}

// Default returns the name of the design's default clock. Valid only after
// Resolve has run.
func (r *Registry) Default() string {
	return r.defName
}
