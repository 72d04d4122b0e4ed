package intr

import (
	"testing"

	"github.com/fpga-compose/autosoc/internal/diag"
)

func TestGreedyFillsLowestFreeSlot(t *testing.T) {
	r := New(&diag.Sink{})
	r.AddPIC("pic", 8)

	r.AddLine(Line{Component: "a", Wire: "a_int", PICs: []string{"pic"}, Pin: -1})
	r.AddLine(Line{Component: "b", Wire: "b_int", PICs: []string{"pic"}, Pin: -1})

	assigns := r.Route()

	if len(assigns) != 2 {
		t.Fatalf("got %d assignments, want 2", len(assigns))
	}

	slots := map[string]int{}
	for _, a := range assigns {
		slots[a.Line.Component] = a.Slot
	}

	if slots["a"] != 0 || slots["b"] != 1 {
		t.Fatalf("got slots %v, want a=0, b=1", slots)
	}
}

func TestPinnedSlotIsReservedFirst(t *testing.T) {
	r := New(&diag.Sink{})
	r.AddPIC("pic", 8)

	r.AddLine(Line{Component: "unpinned", Wire: "u", PICs: []string{"pic"}, Pin: -1})
	r.AddLine(Line{Component: "pinned", Wire: "p", PICs: []string{"pic"}, Pin: 0})

	assigns := r.Route()

	slots := map[string]int{}
	for _, a := range assigns {
		slots[a.Line.Component] = a.Slot
	}

	if slots["pinned"] != 0 {
		t.Fatalf("pinned line did not get its requested slot: %v", slots)
	}

	if slots["unpinned"] != 1 {
		t.Fatalf("unpinned line should fill the next free slot after the pin: %v", slots)
	}
}

func TestFanOutToMultiplePICs(t *testing.T) {
	r := New(&diag.Sink{})
	r.AddPIC("a", 4)
	r.AddPIC("b", 4)

	r.AddLine(Line{Component: "shared", Wire: "w", PICs: []string{"a", "b"}, Pin: -1})

	assigns := r.Route()

	if len(assigns) != 2 {
		t.Fatalf("got %d assignments, want 2 (one per PIC)", len(assigns))
	}
}

func TestUnknownPICIsWarnedAndDropped(t *testing.T) {
	diags := &diag.Sink{}
	r := New(diags)
	r.AddPIC("known", 4)

	r.AddLine(Line{Component: "x", Wire: "w", PICs: []string{"known", "ghost"}, Pin: -1})

	assigns := r.Route()

	if len(assigns) != 1 {
		t.Fatalf("got %d assignments, want 1 (routed to the known PIC only)", len(assigns))
	}

	found := false

	for _, d := range diags.Diagnostics() {
		if d.Severity == diag.Warning {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected a warning about the unknown PIC")
	}
}

func TestPinConflictIsAnError(t *testing.T) {
	diags := &diag.Sink{}
	r := New(diags)
	r.AddPIC("pic", 4)

	r.AddLine(Line{Component: "a", Wire: "a", PICs: []string{"pic"}, Pin: 0})
	r.AddLine(Line{Component: "b", Wire: "b", PICs: []string{"pic"}, Pin: 0})

	r.Route()

	if !diags.HasErrors() {
		t.Fatalf("expected a pin-conflict error")
	}
}

// TestPinnedFanOutPinsPrimaryOnly routes one line to two PICs with a pinned
// ID: the pin binds on the first-named controller; the second gets the
// lowest free slot independently.
func TestPinnedFanOutPinsPrimaryOnly(t *testing.T) {
	r := New(&diag.Sink{})
	r.AddPIC("syspic", 8)
	r.AddPIC("altpic", 16)

	r.AddLine(Line{Component: "gpio", Name: "gpio", Wire: "gpio_int", PICs: []string{"syspic", "altpic"}, Pin: 3})

	assigns := r.Route()

	slots := map[string]int{}
	for _, a := range assigns {
		slots[a.PIC] = a.Slot
	}

	if slots["syspic"] != 3 {
		t.Fatalf("got syspic slot %d, want pinned 3", slots["syspic"])
	}

	if slots["altpic"] != 0 {
		t.Fatalf("got altpic slot %d, want 0 (greedy, independent of the pin)", slots["altpic"])
	}
}

func TestAssignedIDsStayBelowCapacity(t *testing.T) {
	diags := &diag.Sink{}
	r := New(diags)
	r.AddPIC("pic", 2)

	r.AddLine(Line{Component: "a", Wire: "a", PICs: []string{"pic"}, Pin: -1})
	r.AddLine(Line{Component: "b", Wire: "b", PICs: []string{"pic"}, Pin: -1})
	r.AddLine(Line{Component: "c", Wire: "c", PICs: []string{"pic"}, Pin: -1})

	assigns := r.Route()

	seen := map[int]bool{}

	for _, a := range assigns {
		if a.Slot < 0 || a.Slot >= 2 {
			t.Fatalf("slot %d outside [0,2)", a.Slot)
		}

		if seen[a.Slot] {
			t.Fatalf("slot %d assigned twice", a.Slot)
		}

		seen[a.Slot] = true
	}

	if !diags.HasErrors() {
		t.Fatalf("expected an error for the line that found no free slot")
	}
}
