// Command autosoc composes an FPGA SoC's bus, clock, address-map and
// interrupt-routing structure from a set of declarative input files.
package main

import (
	"fmt"
	"os"

	"github.com/fpga-compose/autosoc/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.DefaultLogger().Error("command failed", log.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
