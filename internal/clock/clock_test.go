package clock

import (
	"testing"

	"github.com/fpga-compose/autosoc/internal/diag"
	"github.com/fpga-compose/autosoc/internal/store"
)

func TestResolveSynthesizesDefaultWhenNoneDeclared(t *testing.T) {
	r := New(&diag.Sink{})
	root := store.New()

	clocks := r.Resolve(root)

	if len(clocks) != 1 || clocks[0].Name != DefaultName {
		t.Fatalf("got %v, want a single synthesized %q clock", clocks, DefaultName)
	}

	if !clocks[0].IsDefault {
		t.Fatalf("synthesized clock should be marked default")
	}

	if _, ok := root.AsMap("CLOCK." + DefaultName); !ok {
		t.Fatalf("resolved clock was not written back into the store")
	}
}

func TestDeclaredClockIsUsedAsIs(t *testing.T) {
	r := New(&diag.Sink{})

	r.Declare(Declaration{Name: "sys", Wire: "i_sysclk", FreqHz: 100_000_000, IsDefault: true, Component: "top"})

	clocks := r.Resolve(store.New())

	if len(clocks) != 1 {
		t.Fatalf("got %d clocks, want 1", len(clocks))
	}

	if clocks[0].PeriodPS != 10_000 {
		t.Fatalf("got period %dps, want 10000ps for a 100MHz clock", clocks[0].PeriodPS)
	}

	if r.Default() != "sys" {
		t.Fatalf("got default %q, want %q", r.Default(), "sys")
	}
}

func TestConflictingRedeclarationIsAnError(t *testing.T) {
	diags := &diag.Sink{}
	r := New(diags)

	r.Declare(Declaration{Name: "sys", Wire: "i_a", FreqHz: 100_000_000, Component: "x"})
	r.Declare(Declaration{Name: "sys", Wire: "i_b", FreqHz: 100_000_000, Component: "y"})

	if !diags.HasErrors() {
		t.Fatalf("expected a wire-mismatch error")
	}
}

func TestFrequencyHz(t *testing.T) {
	c := Clock{PeriodPS: 10_000}

	if c.FrequencyHz() != 100_000_000 {
		t.Fatalf("got %d Hz, want 100MHz", c.FrequencyHz())
	}
}

func TestParseTriple(t *testing.T) {
	d, err := ParseTriple("clk i_clk 100000000", "board")
	if err != nil {
		t.Fatalf("ParseTriple: %v", err)
	}

	if d.Name != "clk" || d.Wire != "i_clk" || d.FreqHz != 100000000 {
		t.Fatalf("got %+v", d)
	}

	if _, err := ParseTriple("justaname", "board"); err == nil {
		t.Fatalf("expected an error for a one-field triple")
	}

	if _, err := ParseTriple("clk i_clk notanumber", "board"); err == nil {
		t.Fatalf("expected an error for a malformed frequency")
	}
}

func TestTripleDeclarationDerivesPeriod(t *testing.T) {
	diags := &diag.Sink{}
	r := New(diags)

	d, err := ParseTriple("clk i_clk 100000000", "board")
	if err != nil {
		t.Fatalf("ParseTriple: %v", err)
	}

	r.Declare(d)

	clocks := r.Resolve(store.New())

	for _, c := range clocks {
		if c.Name == "clk" {
			if c.PeriodPS != 10_000 {
				t.Fatalf("got period %dps, want 10000 (100MHz)", c.PeriodPS)
			}

			return
		}
	}

	t.Fatalf("declared clock not resolved")
}
