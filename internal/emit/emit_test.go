package emit

import (
	"strconv"
	"strings"
	"testing"

	"github.com/fpga-compose/autosoc/internal/design"
	"github.com/fpga-compose/autosoc/internal/diag"
	"github.com/fpga-compose/autosoc/internal/tokenize"
)

func buildFrom(t *testing.T, text string) *design.Design {
	t.Helper()

	diags := &diag.Sink{}
	s := tokenize.New("test.txt", diags).Parse(strings.NewReader(text))

	d := design.Build([]design.Source{{File: "test.txt", Store: s}}, diags)

	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Diagnostics())
	}

	return d
}

func TestWriteHeaderListsSlaves(t *testing.T) {
	d := buildFrom(t, ""+
		"@cpu.MASTER.BUS=wb\n"+
		"@wb.BUS.TYPE=wb\n"+
		"@wb.BUS.WIDTH=32\n"+
		"@uart.SLAVE.BUS=wb\n"+
		"@uart.SLAVE.NADDR=4\n"+
		"@timer.SLAVE.BUS=wb\n"+
		"@timer.SLAVE.NADDR=1\n")

	var out strings.Builder

	if err := WriteHeader(&out, "BOARD_H", d); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	got := out.String()

	for _, want := range []string{"#ifndef BOARD_H", "WB_UART", "WB_TIMER"} {
		if !strings.Contains(got, want) {
			t.Fatalf("header output missing %q:\n%s", want, got)
		}
	}
}

func TestWriteRegisterDefsResolvesOffsets(t *testing.T) {
	d := buildFrom(t, ""+
		"@cpu.MASTER.BUS=wb\n"+
		"@wb.BUS.TYPE=wb\n"+
		"@wb.BUS.WIDTH=32\n"+
		"@uart.SLAVE.BUS=wb\n"+
		"@uart.SLAVE.NADDR=4\n"+
		"@uart.REGS.N=2\n"+
		"@uart.REGS.0=0 R_UART_RX RX\n"+
		"@uart.REGS.1=1 R_UART_TX TX\n"+
		"@spio.SLAVE.BUS=wb\n"+
		"@spio.SLAVE.NADDR=1\n")

	diags := &diag.Sink{}

	var out strings.Builder

	if err := WriteRegisterDefs(&out, "REGDEFS_H", d, diags); err != nil {
		t.Fatalf("WriteRegisterDefs: %v", err)
	}

	got := out.String()

	if !strings.Contains(got, "R_UART_RX") || !strings.Contains(got, "R_UART_TX") {
		t.Fatalf("register defines missing:\n%s", got)
	}

	// The two registers sit one bus word (4 octets) apart.
	var rxAddr, txAddr int64
	for _, line := range strings.Split(got, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}

		addr, err := strconv.ParseInt(fields[2], 0, 64)
		if err != nil {
			continue
		}

		switch fields[1] {
		case "R_UART_RX":
			rxAddr = addr
		case "R_UART_TX":
			txAddr = addr
		}
	}

	if txAddr-rxAddr != 4 {
		t.Fatalf("got RX=%#x TX=%#x, want one word (4 octets) apart", rxAddr, txAddr)
	}

	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Diagnostics())
	}
}

func TestWriteRegisterNamesEmitsUserNames(t *testing.T) {
	d := buildFrom(t, ""+
		"@cpu.MASTER.BUS=wb\n"+
		"@wb.BUS.TYPE=wb\n"+
		"@wb.BUS.WIDTH=32\n"+
		"@uart.SLAVE.BUS=wb\n"+
		"@uart.SLAVE.NADDR=4\n"+
		"@uart.REGS.N=1\n"+
		"@uart.REGS.0=0 R_UART RXTX UART\n")

	var out strings.Builder

	if err := WriteRegisterNames(&out, d, &diag.Sink{}); err != nil {
		t.Fatalf("WriteRegisterNames: %v", err)
	}

	got := out.String()

	if !strings.Contains(got, `"RXTX"`) || !strings.Contains(got, `"UART"`) {
		t.Fatalf("name table missing user names:\n%s", got)
	}
}

func TestWriteLinkerScriptOnlyMemoriesWithNames(t *testing.T) {
	d := buildFrom(t, ""+
		"@cpu.MASTER.BUS=wb\n"+
		"@wb.BUS.TYPE=wb\n"+
		"@wb.BUS.WIDTH=32\n"+
		"@bkram.SLAVE.BUS=wb\n"+
		"@bkram.SLAVE.TYPE=MEMORY\n"+
		"@bkram.SLAVE.NADDR=1024\n"+
		"@bkram.SLAVE.LD_NAME=bkram\n"+
		"@bkram.SLAVE.LD_PERM=wx\n"+
		"@uart.SLAVE.BUS=wb\n"+
		"@uart.SLAVE.NADDR=4\n")

	var out strings.Builder

	if err := WriteLinkerScript(&out, d); err != nil {
		t.Fatalf("WriteLinkerScript: %v", err)
	}

	got := out.String()

	if !strings.Contains(got, "bkram (wx)") {
		t.Fatalf("linker script missing the bkram region:\n%s", got)
	}

	if strings.Contains(got, "uart") {
		t.Fatalf("linker script should not list the non-memory uart slave:\n%s", got)
	}
}

func TestWriteHDLIsAnExplicitStub(t *testing.T) {
	d := buildFrom(t, "@cpu.MASTER.BUS=wb\n@wb.BUS.TYPE=wb\n@wb.BUS.WIDTH=32\n@uart.SLAVE.BUS=wb\n@uart.SLAVE.NADDR=1\n")

	if err := WriteHDL(nil, d, "verilog"); err == nil {
		t.Fatalf("expected the HDL stub to refuse")
	}
}
