package bus

import (
	"testing"

	"github.com/fpga-compose/autosoc/internal/diag"
)

func TestRegisterAndResolveSingleBus(t *testing.T) {
	diags := &diag.Sink{}
	r := New(diags)

	r.DeclareBus("wb", "wb", 32, "clk", "i_rst", 0, Options{}, "top")
	r.AddMaster("wb", &Master{Component: "cpu"})
	r.AddSlave("wb", &Slave{Component: "uart", NAddr: 4})

	buses := r.Resolve("clk")

	if len(buses) != 1 {
		t.Fatalf("got %d buses, want 1", len(buses))
	}

	b := buses[0]
	if len(b.Masters) != 1 || len(b.Slaves) != 1 {
		t.Fatalf("got %d masters, %d slaves", len(b.Masters), len(b.Slaves))
	}
}

func TestEmptyBusIsDroppedWithWarning(t *testing.T) {
	diags := &diag.Sink{}
	r := New(diags)

	r.DeclareBus("orphan", "wb", 32, "", "", 0, Options{}, "top")

	buses := r.Resolve("clk")

	if len(buses) != 0 {
		t.Fatalf("expected the masterless, slaveless bus to be dropped")
	}

	found := false

	for _, d := range diags.Diagnostics() {
		if d.Severity == diag.Warning {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected a warning diagnostic")
	}
}

func TestDataWidthConflictIsAnError(t *testing.T) {
	diags := &diag.Sink{}
	r := New(diags)

	r.DeclareBus("wb", "wb", 32, "", "", 0, Options{}, "a")
	r.DeclareBus("wb", "wb", 64, "", "", 0, Options{}, "b")

	if !diags.HasErrors() {
		t.Fatalf("expected a data-width conflict error")
	}
}

func TestUnclockedBusInheritsDefault(t *testing.T) {
	diags := &diag.Sink{}
	r := New(diags)

	r.DeclareBus("wb", "wb", 32, "", "", 0, Options{}, "top")
	r.AddSlave("wb", &Slave{Component: "uart", NAddr: 1})

	buses := r.Resolve("clk")

	if buses[0].ClockName != "clk" {
		t.Fatalf("got clock %q, want the default clock", buses[0].ClockName)
	}
}

func TestSynthesizeSplitsMixedTiers(t *testing.T) {
	b := &Bus{Name: "wb"}

	for i := 0; i < 5; i++ {
		b.Slaves = append(b.Slaves, &Slave{Component: "s", Tier: TierSingle, NAddr: 1})
	}

	for i := 0; i < 3; i++ {
		b.Slaves = append(b.Slaves, &Slave{Component: "o", Tier: TierOther, NAddr: 1})
	}

	children := Synthesize(b)

	if len(children) != 1 {
		t.Fatalf("got %d synthesized sub-buses, want 1", len(children))
	}

	var bridges int

	for _, s := range b.Slaves {
		if s.Tier == TierBusBridge {
			bridges++
		}
	}

	if bridges != 1 {
		t.Fatalf("got %d bridge slaves on the parent bus, want 1", bridges)
	}

	if len(children[0].Slaves) != 5 {
		t.Fatalf("got %d slaves on the synthesized bus, want 5 (the TierSingle group)", len(children[0].Slaves))
	}

	if len(b.Slaves) != 4 {
		t.Fatalf("got %d slaves on the parent bus, want 4 (three original TierOther plus the bridge)", len(b.Slaves))
	}
}

func TestSynthesizePromotesSmallSingleGroupIntoDouble(t *testing.T) {
	b := &Bus{Name: "wb"}
	b.Slaves = append(b.Slaves,
		&Slave{Component: "s1", Tier: TierSingle, NAddr: 1},
		&Slave{Component: "s2", Tier: TierSingle, NAddr: 1},
		&Slave{Component: "d1", Tier: TierDouble, NAddr: 1},
		&Slave{Component: "d2", Tier: TierDouble, NAddr: 1},
	)

	if children := Synthesize(b); children != nil {
		t.Fatalf("expected the two singles to be promoted into the double tier, not bridged off")
	}

	for _, s := range b.Slaves {
		if s.Component == "s1" || s.Component == "s2" {
			if s.Tier != TierDouble {
				t.Fatalf("slave %q: got tier %v, want promoted TierDouble", s.Component, s.Tier)
			}
		}
	}
}

func TestSynthesizeSplitsResidualDoubleFromOther(t *testing.T) {
	b := &Bus{Name: "wb"}
	b.Slaves = append(b.Slaves,
		&Slave{Component: "d1", Tier: TierDouble, NAddr: 1},
		&Slave{Component: "d2", Tier: TierDouble, NAddr: 1},
		&Slave{Component: "d3", Tier: TierDouble, NAddr: 1},
		&Slave{Component: "o1", Tier: TierOther, NAddr: 1},
	)

	children := Synthesize(b)

	if len(children) != 1 {
		t.Fatalf("got %d synthesized sub-buses, want 1", len(children))
	}

	if len(children[0].Slaves) != 3 {
		t.Fatalf("got %d slaves on the synthesized bus, want 3 (the TierDouble group)", len(children[0].Slaves))
	}

	if len(b.Slaves) != 2 {
		t.Fatalf("got %d slaves on the parent bus, want 2 (the TierOther slave plus the bridge)", len(b.Slaves))
	}
}

func TestSynthesizeNoopWhenSingleTier(t *testing.T) {
	b := &Bus{Name: "wb"}
	b.Slaves = append(b.Slaves,
		&Slave{Component: "a", Tier: TierSingle, NAddr: 1},
		&Slave{Component: "b", Tier: TierSingle, NAddr: 1},
	)

	if children := Synthesize(b); children != nil {
		t.Fatalf("expected no synthesis when every slave shares a tier")
	}
}

// TestTierStrings exercises the generated stringer over every Tier value,
// TierBusBridge included -- the debug dump renders tiers through String, so
// a bad index table would panic at runtime rather than fail a build.
func TestTierStrings(t *testing.T) {
	want := map[Tier]string{
		TierSingle:    "TierSingle",
		TierDouble:    "TierDouble",
		TierMemory:    "TierMemory",
		TierOther:     "TierOther",
		TierBusBridge: "TierBusBridge",
	}

	for tier, name := range want {
		if got := tier.String(); got != name {
			t.Errorf("Tier(%d).String() = %q, want %q", tier, got, name)
		}
	}

	if got := Tier(99).String(); got != "Tier(99)" {
		t.Errorf("out-of-range tier = %q, want %q", got, "Tier(99)")
	}
}
