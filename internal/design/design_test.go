package design

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fpga-compose/autosoc/internal/diag"
	"github.com/fpga-compose/autosoc/internal/tokenize"
)

func sourceFrom(t *testing.T, file, text string) Source {
	t.Helper()

	diags := &diag.Sink{}
	s := tokenize.New(file, diags).Parse(strings.NewReader(text))

	if diags.HasErrors() {
		t.Fatalf("unexpected tokenize diagnostics for %s: %v", file, diags.Diagnostics())
	}

	return Source{File: file, Store: s}
}

func TestBuildSingleMasterSingleSlave(t *testing.T) {
	cpu := sourceFrom(t, "cpu.txt", ""+
		"@cpu.MASTER.BUS=wb\n")

	uart := sourceFrom(t, "uart.txt", ""+
		"@uart.SLAVE.BUS=wb\n"+
		"@uart.SLAVE.NADDR=4\n"+
		"@wb.BUS.TYPE=wb\n"+
		"@wb.BUS.WIDTH=32\n")

	diags := &diag.Sink{}
	d := Build([]Source{cpu, uart}, diags)

	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Diagnostics())
	}

	if len(d.Buses) != 1 {
		t.Fatalf("got %d buses, want 1", len(d.Buses))
	}

	b := d.Buses[0]
	if len(b.Masters) != 1 || len(b.Slaves) != 1 {
		t.Fatalf("got %d masters, %d slaves", len(b.Masters), len(b.Slaves))
	}

	if b.Slaves[0].BaseOctets != 0 {
		t.Fatalf("got base %d, want 0 for the sole slave", b.Slaves[0].BaseOctets)
	}

	if len(d.Clocks) != 1 {
		t.Fatalf("got %d clocks, want 1 synthesized default", len(d.Clocks))
	}
}

func TestBuildTwoPICFanOut(t *testing.T) {
	uart := sourceFrom(t, "uart.txt", ""+
		"@uart.INT.istat.WIRE=uart_int\n"+
		"@uart.INT.istat.PIC=picA,picB\n")

	picA := sourceFrom(t, "pica.txt", "@picA.PIC.MAX=8\n")
	picB := sourceFrom(t, "picb.txt", "@picB.PIC.MAX=8\n")

	diags := &diag.Sink{}
	d := Build([]Source{picA, picB, uart}, diags)

	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Diagnostics())
	}

	if len(d.Routes) != 2 {
		t.Fatalf("got %d routes, want 2 (fan-out to both PICs)", len(d.Routes))
	}
}

// TestBuildPinnedFanOut pins a line to slot 3 on its primary PIC and checks
// the second PIC in the fan-out gets an independent, greedily assigned ID.
func TestBuildPinnedFanOut(t *testing.T) {
	gpio := sourceFrom(t, "gpio.txt", ""+
		"@gpio.INT.gpio.WIRE=gpio_int\n"+
		"@gpio.INT.gpio.PIC=syspic,altpic\n"+
		"@gpio.INT.gpio.ID=3\n")

	syspic := sourceFrom(t, "syspic.txt", "@syspic.PIC.MAX=8\n")
	altpic := sourceFrom(t, "altpic.txt", "@altpic.PIC.MAX=16\n")

	diags := &diag.Sink{}
	d := Build([]Source{syspic, altpic, gpio}, diags)

	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Diagnostics())
	}

	slots := map[string]int{}
	for _, a := range d.Routes {
		slots[a.PIC] = a.Slot
	}

	if slots["syspic"] != 3 {
		t.Fatalf("got syspic slot %d, want the pinned 3", slots["syspic"])
	}

	if slots["altpic"] != 0 {
		t.Fatalf("got altpic slot %d, want 0 (lowest free, independent of the pin)", slots["altpic"])
	}

	if n, ok := d.Root.AsInt("gpio.INT.gpio.ID.syspic"); !ok || n != 3 {
		t.Fatalf("got gpio.INT.gpio.ID.syspic=%d ok=%v, want 3", n, ok)
	}
}

func TestBuildLaterSourceOverridesEarlier(t *testing.T) {
	a := sourceFrom(t, "a.txt", "@board.NAME=first\n")
	b := sourceFrom(t, "b.txt", "@board.NAME=second\n")

	diags := &diag.Sink{}
	d := Build([]Source{a, b}, diags)

	got, ok := d.Root.AsText("board.NAME")
	if !ok || got != "second" {
		t.Fatalf("got %q, ok=%v, want %q", got, ok, "second")
	}
}

// TestBuildSynthesizesBridgeForMixedTiers mixes tiers on one bus: five
// SINGLE slaves and three OTHER slaves on one bus produce a synthetic
// "<bus>_sio" bridge that owns the five singles, leaving the parent bus
// with four slaves (the three original OTHER slaves plus the bridge).
func TestBuildSynthesizesBridgeForMixedTiers(t *testing.T) {
	var lines strings.Builder

	lines.WriteString("@cpu.MASTER.BUS=wb\n")
	lines.WriteString("@wb.BUS.TYPE=wb\n")
	lines.WriteString("@wb.BUS.WIDTH=32\n")

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("s%d", i)
		lines.WriteString(fmt.Sprintf("@%s.SLAVE.BUS=wb\n", name))
		lines.WriteString(fmt.Sprintf("@%s.SLAVE.TYPE=SINGLE\n", name))
		lines.WriteString(fmt.Sprintf("@%s.SLAVE.NADDR=1\n", name))
	}

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("o%d", i)
		lines.WriteString(fmt.Sprintf("@%s.SLAVE.BUS=wb\n", name))
		lines.WriteString(fmt.Sprintf("@%s.SLAVE.TYPE=OTHER\n", name))
		lines.WriteString(fmt.Sprintf("@%s.SLAVE.NADDR=1\n", name))
	}

	src := sourceFrom(t, "mixed.txt", lines.String())

	diags := &diag.Sink{}
	d := Build([]Source{src}, diags)

	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Diagnostics())
	}

	if len(d.Buses) != 2 {
		t.Fatalf("got %d buses, want 2 (the parent plus the synthesized sub-bus)", len(d.Buses))
	}

	child := d.Buses[0]
	parent := d.Buses[1]

	if child.Name != "wb_sio" {
		t.Fatalf("got buses %v, want the synthesized sub-bus listed before its parent", []string{d.Buses[0].Name, d.Buses[1].Name})
	}

	if len(child.Slaves) != 5 {
		t.Fatalf("got %d slaves on %q, want 5", len(child.Slaves), child.Name)
	}

	if len(parent.Slaves) != 4 {
		t.Fatalf("got %d slaves on %q, want 4 (three OTHER plus the bridge)", len(parent.Slaves), parent.Name)
	}
}

func TestBuildWritesDerivedAddressesBackIntoStore(t *testing.T) {
	cpu := sourceFrom(t, "cpu.txt", "@cpu.MASTER.BUS=wb\n")
	uart := sourceFrom(t, "uart.txt", ""+
		"@uart.SLAVE.BUS=wb\n"+
		"@uart.SLAVE.NADDR=4\n"+
		"@wb.BUS.TYPE=wb\n"+
		"@wb.BUS.WIDTH=32\n")

	diags := &diag.Sink{}
	d := Build([]Source{cpu, uart}, diags)

	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Diagnostics())
	}

	base, ok := d.Root.AsInt("uart.SLAVE.BASE")
	if !ok || base != 0 {
		t.Fatalf("got uart.SLAVE.BASE=%v (ok=%v), want 0", base, ok)
	}

	if _, ok := d.Root.AsInt("uart.SLAVE.AWID"); !ok {
		t.Fatalf("expected uart.SLAVE.AWID to be written back")
	}

	if _, ok := d.Root.AsInt("wb.BUS.AWID"); !ok {
		t.Fatalf("expected wb.BUS.AWID to be written back")
	}
}

func TestBuildWritesDerivedInterruptIDsBackIntoStore(t *testing.T) {
	uart := sourceFrom(t, "uart.txt", ""+
		"@uart.INT.istat.WIRE=uart_int\n"+
		"@uart.INT.istat.PIC=syspic\n")
	pic := sourceFrom(t, "pic.txt", "@syspic.PIC.MAX=8\n")

	diags := &diag.Sink{}
	d := Build([]Source{pic, uart}, diags)

	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Diagnostics())
	}

	if _, ok := d.Root.AsInt("uart.INT.istat.ID"); !ok {
		t.Fatalf("expected uart.INT.istat.ID to be written back")
	}
}

// TestBuildTwoSlaveAddressMap runs the two-slave wishbone scenario end to
// end through the store: NADDRs 1 and 16 on a 32-bit word-addressed bus
// give bases 0x40/0x80 and a shared decode mask of 0xc0.
func TestBuildTwoSlaveAddressMap(t *testing.T) {
	src := sourceFrom(t, "board.txt", ""+
		"@cpu.MASTER.BUS=wb\n"+
		"@wb.BUS.TYPE=wb\n"+
		"@wb.BUS.WIDTH=32\n"+
		"@small.SLAVE.BUS=wb\n"+
		"@small.SLAVE.NADDR=1\n"+
		"@big.SLAVE.BUS=wb\n"+
		"@big.SLAVE.NADDR=16\n")

	diags := &diag.Sink{}
	d := Build([]Source{src}, diags)

	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Diagnostics())
	}

	base, _ := d.Root.AsInt("small.SLAVE.BASE")
	if base != 0x40 {
		t.Fatalf("got small.SLAVE.BASE=%#x, want 0x40", base)
	}

	base, _ = d.Root.AsInt("big.SLAVE.BASE")
	if base != 0x80 {
		t.Fatalf("got big.SLAVE.BASE=%#x, want 0x80", base)
	}

	mask, _ := d.Root.AsInt("small.SLAVE.MASK")
	if mask != 0xc0 {
		t.Fatalf("got small.SLAVE.MASK=%#x, want 0xc0", mask)
	}
}

// TestBuildWordAddressedSlaveAWID checks the derived slave-side address
// width written back for a 256-word slave on a 32-bit word-addressed bus:
// 8 word bits plus 2 octet-offset bits.
func TestBuildWordAddressedSlaveAWID(t *testing.T) {
	src := sourceFrom(t, "board.txt", ""+
		"@cpu.MASTER.BUS=wb\n"+
		"@wb.BUS.TYPE=wb\n"+
		"@wb.BUS.WIDTH=32\n"+
		"@mem.SLAVE.BUS=wb\n"+
		"@mem.SLAVE.NADDR=256\n")

	diags := &diag.Sink{}
	d := Build([]Source{src}, diags)

	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Diagnostics())
	}

	awid, ok := d.Root.AsInt("mem.SLAVE.AWID")
	if !ok || awid != 10 {
		t.Fatalf("got mem.SLAVE.AWID=%d ok=%v, want 10", awid, ok)
	}
}
