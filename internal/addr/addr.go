// Package addr implements the address assigner: for each bus it computes a
// minimum-width, alignment-correct address map, recursing into bridge
// sub-buses before sizing the bridge itself.
//
// All arithmetic happens in octets. A word-addressed bus (wishbone) differs
// from a byte-addressed one (axi, axi-lite) in exactly two places: a
// slave's natural width gains log2(dataWidth/8) octet-offset bits, and the
// bus's derived address width drops back to bus-address units on
// write-back. Masks stay in octet units, like base addresses.
//
// Package bits-and-blooms/bitset backs the overlap check made as each
// slave is placed, at the granularity of the chosen minimum decode
// granule.
package addr

import (
	"math/bits"
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/fpga-compose/autosoc/internal/bus"
	"github.com/fpga-compose/autosoc/internal/diag"
)

// Assigner assigns base addresses, masks and address widths to every slave
// on a bus, recursively through any bridge.
type Assigner struct {
	diags *diag.Sink
}

// New creates an Assigner that reports problems into diags.
func New(diags *diag.Sink) *Assigner {
	return &Assigner{diags: diags}
}

// nextlg returns the smallest k such that (1 << k) >= n; 0 for n <= 1.
func nextlg(n int64) int64 {
	if n <= 1 {
		return 0
	}

	return int64(bits.Len64(uint64(n - 1)))
}

func roundUp(addr, align int64) int64 {
	if align <= 1 {
		return addr
	}

	return (addr + align - 1) &^ (align - 1)
}

// daddrBits returns the number of octet-offset bits one bus word spans: a
// word-addressed bus advances one address per data word, so converting its
// addresses to octets shifts by log2(dataWidth/8). A byte-addressed bus
// already counts octets.
func daddrBits(b *bus.Bus) int64 {
	if !b.WordAddressed {
		return 0
	}

	return nextlg(b.DataWidth / 8)
}

// slaveWidth returns a slave's natural address width in bus-address units:
// the bits needed to address NAddr locations.
func slaveWidth(s *bus.Slave) int64 {
	return nextlg(s.NAddr)
}

// sortForAssignment orders slaves for address packing: slaves without an
// explicit order come first, natural width ascending with ties broken by
// component name; slaves carrying an explicit SLAVE.ORDER come after them,
// sorted by that value.
func sortForAssignment(slaves []*bus.Slave) []*bus.Slave {
	sorted := append([]*bus.Slave(nil), slaves...)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]

		switch {
		case a.Order != nil && b.Order != nil:
			return *a.Order < *b.Order
		case a.Order != nil:
			return false
		case b.Order != nil:
			return true
		}

		aw, bw := slaveWidth(a), slaveWidth(b)
		if aw != bw {
			return aw < bw
		}

		return a.Component < b.Component
	})

	return sorted
}

// minAddrSize computes the total address width (in octet bits) the sorted
// slave list would occupy if every slave's address increment were forced up
// to at least minaOctetBits. The packing mirrors assignment exactly: start
// past the reserved bottom region (the larger of the declared null region
// and one decode granule, so that address zero never decodes to a slave),
// round each slave's base up to its own increment, advance.
// Zero-width slaves are skipped here; assignment still hands each a full
// granule, so the final width may slightly exceed this estimate.
func minAddrSize(sorted []*bus.Slave, minaOctetBits, nullsz, daddr int64) int64 {
	mna := minaOctetBits - daddr
	if mna < 1 {
		mna = 1
	}

	start := nullsz >> daddr
	if g := int64(1) << mna; start < g {
		start = g
	}

	for _, s := range sorted {
		pa := slaveWidth(s)
		if pa <= 0 {
			continue
		}

		if pa < mna {
			pa = mna
		}

		base := roundUp(start, int64(1)<<pa)
		start = base + int64(1)<<pa
	}

	return nextlg(start) + daddr
}

// AssignBus assigns addresses to every slave directly on b, recursing first
// into any slave that owns a bridge sub-bus (the bridge's address count is
// its child bus's total range, expressed in parent-bus units). It returns
// the overall size of b's address range in octets.
func (a *Assigner) AssignBus(b *bus.Bus) int64 {
	daddr := daddrBits(b)

	for _, s := range b.Slaves {
		if s.Tier == bus.TierBusBridge && s.Bridge != nil {
			childTotal := a.AssignBus(s.Bridge)
			s.NAddr = childTotal >> daddr
		} else if s.NAddr <= 0 {
			a.diags.Errorf("addr", s.Component,
				"bus %q: slave %q has zero NADDR; no address assigned", b.Name, s.Component)
		}
	}

	switch {
	case len(b.Slaves) == 0:
		if b.NullSize > 0 {
			b.AddrWidth = nextlg(b.NullSize)
			return int64(1) << nextlg(b.NullSize)
		}

		b.AddrWidth = 0

		return 0

	case len(b.Slaves) == 1 && b.NullSize == 0:
		s := b.Slaves[0]
		s.BaseOctets = 0
		s.Mask = 0
		s.AWIDBits = slaveWidth(s) + daddr
		b.AddrWidth = slaveWidth(s)

		return int64(1) << s.AWIDBits
	}

	sorted := sortForAssignment(b.Slaves)

	// Widest slave's octet width is the baseline increment; the candidate
	// search below may shrink it, but never past the point where the total
	// address width grows.
	minAwd := int64(0)

	for _, s := range sorted {
		if w := slaveWidth(s) + daddr; w > minAwd {
			minAwd = w
		}
	}

	minAsz := minAddrSize(sorted, minAwd, b.NullSize, daddr)

	// Search the minimum slave granularity that keeps the total width at
	// its minimum while spending the fewest address bits above the
	// granule, i.e. the shallowest decode tree.
	minRelevant := 32 - daddr

	for mina := daddr + 1; mina < 32-daddr; mina++ {
		total := minAddrSize(sorted, mina, b.NullSize, daddr)
		relevant := total - mina

		if total > minAsz {
			continue // never grow the address bus
		}

		if relevant < minRelevant {
			minAsz = total
			minRelevant = relevant
			minAwd = mina
		}
	}

	granule := int64(1) << minAwd

	occupied := bitset.New(0)

	start := b.NullSize
	if start < granule {
		start = granule
	}

	type placed struct {
		slave    *bus.Slave
		wordMask int64
	}

	placements := make([]placed, 0, len(sorted))

	for _, s := range sorted {
		pfull := slaveWidth(s) + daddr

		if s.NAddr <= 0 && s.Tier != bus.TierBusBridge {
			s.BaseOctets = start
			s.Mask = 0
			s.AWIDBits = 0
			placements = append(placements, placed{slave: s})

			continue
		}

		pa := pfull
		if pa < minAwd {
			pa = minAwd
		}

		base := roundUp(start, int64(1)<<pa)

		lo := uint(base / granule)
		hi := uint((base + int64(1)<<pa) / granule)

		for slot := lo; slot < hi; slot++ {
			if occupied.Test(slot) {
				a.diags.Errorf("addr", s.Component,
					"bus %q: slave %q: address range overlaps a prior assignment", b.Name, s.Component)

				break
			}

			occupied.Set(slot)
		}

		s.BaseOctets = base
		s.AWIDBits = pfull
		start = base + int64(1)<<pa

		placements = append(placements, placed{
			slave:    s,
			wordMask: int64(-1) << (pa - daddr),
		})
	}

	// Trim every mask down to the bits that actually distinguish slaves
	// within the bus's final address range, then store it shifted back to
	// octet positions so base and mask share units.
	totalBits := nextlg(start)
	masterMask := (int64(1) << (totalBits - daddr)) - 1

	for _, p := range placements {
		if p.wordMask == 0 {
			continue
		}

		p.slave.Mask = (p.wordMask & masterMask) << daddr
	}

	b.AddrWidth = totalBits - daddr

	return int64(1) << totalBits
}

// AssignAll assigns addresses for every top-level bus in buses. Buses
// reached only as a slave's Bridge are assigned as part of their parent
// and must not also appear in buses.
func (a *Assigner) AssignAll(buses []*bus.Bus) {
	for _, b := range buses {
		a.AssignBus(b)
	}
}
