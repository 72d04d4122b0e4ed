// Package intr implements interrupt routing: each declared interrupt line
// is assigned a slot in one or more programmable interrupt controllers, in
// two passes -- first every line with a pinned slot claims it, then every
// remaining line fills the lowest free slot.
package intr

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/fpga-compose/autosoc/internal/diag"
)

// Line is one interrupt source as declared by a component. A component may
// declare several, each under its own name.
type Line struct {
	Component string
	Name      string   // the line's name within its component's INT map
	Wire      string   // the component's interrupt-output wire name
	PICs      []string // names of PICs this line fans out to
	Pin       int       // pinned slot, -1 if unpinned
}

// PIC is a programmable interrupt controller: a fixed number of slots,
// each either free or claimed by exactly one Line.
type PIC struct {
	Name  string
	Slots int

	assigned map[int]Line
	free     *bitset.BitSet
}

// NewPIC creates a PIC with the given slot count, all free.
func NewPIC(name string, slots int) *PIC {
	free := bitset.New(uint(slots))

	for i := 0; i < slots; i++ {
		free.Set(uint(i))
	}

	return &PIC{Name: name, Slots: slots, assigned: make(map[int]Line), free: free}
}

// Assignment describes where one Line landed on one PIC.
type Assignment struct {
	PIC      string
	Slot     int
	Line     Line
}

// Router accumulates PICs and lines, then assigns every line a slot on
// each PIC it targets.
type Router struct {
	diags *diag.Sink
	pics  map[string]*PIC
	order []string
	lines []Line
}

// New creates an empty Router.
func New(diags *diag.Sink) *Router {
	return &Router{diags: diags, pics: make(map[string]*PIC)}
}

// AddPIC registers a PIC by name. Re-declaring an existing name is a
// no-op; the first declaration's slot count wins.
func (r *Router) AddPIC(name string, slots int) {
	if _, ok := r.pics[name]; ok {
		return
	}

	r.pics[name] = NewPIC(name, slots)
	r.order = append(r.order, name)
}

// AddLine registers an interrupt line. Any PIC name in line.PICs that
// wasn't separately declared is reported as a warning and dropped from the
// line's fan-out; the line is still routed to whichever named PICs are
// known.
func (r *Router) AddLine(line Line) {
	var known []string

	for _, p := range line.PICs {
		if _, ok := r.pics[p]; ok {
			known = append(known, p)
		} else {
			r.diags.WarnAt("intr", line.Component, "", "line %q: unknown PIC %q ignored", line.Wire, p)
		}
	}

	line.PICs = known
	r.lines = append(r.lines, line)
}

// Route assigns every registered line a slot on each PIC in its fan-out.
// Pass one walks pinned lines and reserves each line's requested slot on
// the first PIC it names; pass two walks every remaining (line, PIC) pair
// and fills the lowest free slot. A pinned line that fans out to more than
// one PIC gets an independent, greedily assigned ID on each PIC past the
// first -- the pin binds the line to a slot on its primary controller only.
//
// Both passes walk lines in declaration (registration) order, not sorted by
// name: the greedy pass is order-sensitive, and the final table is one of
// the outputs whose ordering callers may rely on.
func (r *Router) Route() []Assignment {
	type pending struct {
		line Line
		pic  string
	}

	var claims []Assignment
	var greedy []pending

	for _, l := range r.lines {
		if l.Pin < 0 {
			for _, picName := range l.PICs {
				greedy = append(greedy, pending{line: l, pic: picName})
			}

			continue
		}

		for i, picName := range l.PICs {
			if i > 0 {
				greedy = append(greedy, pending{line: l, pic: picName})
				continue
			}

			p := r.pics[picName]

			if l.Pin >= p.Slots {
				r.diags.Errorf("intr", l.Component, "line %q: pin %d out of range on PIC %q (%d slots)",
					l.Wire, l.Pin, picName, p.Slots)

				continue
			}

			if !p.free.Test(uint(l.Pin)) {
				r.diags.Errorf("intr", l.Component, "line %q: pin %d on PIC %q already claimed",
					l.Wire, l.Pin, picName)

				continue
			}

			p.free.Clear(uint(l.Pin))
			p.assigned[l.Pin] = l

			claims = append(claims, Assignment{PIC: picName, Slot: l.Pin, Line: l})
		}
	}

	result := claims

	for _, g := range greedy {
		p := r.pics[g.pic]

		slot, ok := lowestFree(p.free, p.Slots)
		if !ok {
			r.diags.Errorf("intr", g.line.Component, "line %q: no free slot on PIC %q", g.line.Wire, g.pic)
			continue
		}

		p.free.Clear(uint(slot))
		p.assigned[slot] = g.line

		result = append(result, Assignment{PIC: g.pic, Slot: slot, Line: g.line})
	}

	return result
}

func lowestFree(free *bitset.BitSet, slots int) (int, bool) {
	for i := 0; i < slots; i++ {
		if free.Test(uint(i)) {
			return i, true
		}
	}

	return 0, false
}

// PICNames returns every registered PIC's name, in declaration order.
func (r *Router) PICNames() []string {
	return append([]string(nil), r.order...)
}
