package bus

import (
	"fmt"
	"strings"
)

// ParseTier maps a declared SLAVE.TYPE string to a Tier, defaulting to
// TierOther for anything unrecognized (a slave with no declared type, or
// a type tag this pipeline doesn't know, is never rejected -- it is just
// assumed to need the conservative, fully-handshaked interconnect).
// SLAVE.TYPE's enumerators are uppercase (SINGLE, DOUBLE, MEMORY, BUS,
// OTHER); matching is case-insensitive so a lowercase or mixed-case input
// file isn't silently misclassified as OTHER.
func ParseTier(declared string) Tier {
	switch strings.ToUpper(declared) {
	case "SINGLE":
		return TierSingle
	case "DOUBLE":
		return TierDouble
	case "MEMORY":
		return TierMemory
	case "BUS", "BRIDGE":
		return TierBusBridge
	default:
		return TierOther
	}
}

// bridgeSuffix names a synthesized sub-bus, derived from its parent and
// the tier it collects.
func bridgeSuffix(parent string, t Tier) string {
	switch t {
	case TierSingle:
		return parent + "_sio"
	case TierDouble:
		return parent + "_dio"
	default:
		return parent + "_oio"
	}
}

// spinOff builds a synthesized sub-bus of tier t owning members, appends a
// bridge slave for it to kept, and returns the updated kept slice plus the
// new child bus.
func spinOff(b *Bus, t Tier, members []*Slave, kept []*Slave) ([]*Slave, *Bus) {
	child := &Bus{
		Name:          bridgeSuffix(b.Name, t),
		Type:          b.Type,
		DataWidth:     b.DataWidth,
		ClockName:     b.ClockName,
		Reset:         b.Reset,
		NullSize:      0,
		WordAddressed: b.WordAddressed,
		Slaves:        members,
		synthetic:     true,
	}
	child.Masters = append(child.Masters, &Master{
		Component: b.Name,
		Prefix:    fmt.Sprintf("%s_%s", b.Name, child.Name),
	})

	bridgeSlave := &Slave{
		Component: child.Name,
		Prefix:    child.Name,
		Tier:      TierBusBridge,
		Bridge:    child,
	}

	return append(kept, bridgeSlave), child
}

// Synthesize applies the tier policy to b's slaves: a bus whose
// slaves are wholly single-tier or wholly double-tier is left untouched; a
// residual handful (<=2) of singles sharing a bus with doubles is promoted
// into the double tier rather than bridged off on its own; and whichever of
// single/double still coexists with anything else (doubles, memory-mapped
// or otherwise "other" slaves) is split onto its own synthesized `_sio` /
// `_dio` sub-bus, leaving the more general tier directly on the parent.
// Slaves already of tier TierBusBridge (an explicitly declared bridge) are
// left exactly where they are -- they already own their own child Bus and
// never get re-bridged.
//
// It returns the newly synthesized child buses, in the order they were
// created. Each child bus stays reachable from b through its bridge
// slave's Bridge pointer, which is how the address assigner and the
// design's bus list find it; it is not registered separately.
func Synthesize(b *Bus) []*Bus {
	var singles, doubles, rest, bridges []*Slave

	for _, s := range b.Slaves {
		switch s.Tier {
		case TierBusBridge:
			bridges = append(bridges, s)
		case TierSingle:
			singles = append(singles, s)
		case TierDouble:
			doubles = append(doubles, s)
		default: // TierMemory, TierOther: the general-purpose bucket
			rest = append(rest, s)
		}
	}

	if len(doubles) == 0 && len(rest) == 0 {
		return nil // every slave single: whole-bus single-tier mode
	}

	if len(singles) > 0 && len(singles) <= 2 && len(doubles) > 0 {
		for _, s := range singles {
			s.Tier = TierDouble
		}

		doubles = append(doubles, singles...)
		singles = nil
	}

	var synthesized []*Bus

	kept := append([]*Slave(nil), bridges...)

	if len(singles) > 0 {
		var child *Bus
		kept, child = spinOff(b, TierSingle, singles, kept)
		synthesized = append(synthesized, child)
	}

	if len(doubles) > 0 && len(rest) > 0 {
		var child *Bus
		kept, child = spinOff(b, TierDouble, doubles, kept)
		synthesized = append(synthesized, child)
	} else {
		kept = append(kept, doubles...) // every slave double: no synthesis
	}

	kept = append(kept, rest...)

	if len(synthesized) == 0 {
		return nil
	}

	b.Slaves = kept

	return synthesized
}
