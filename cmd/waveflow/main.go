// Command waveflow is the acquisition process: it loads the device, Buffer
// Manager and Pulse Filter configuration documents, wires the two
// subsystems together, and drives a run under command-channel control
// until the device collaborator signals end of data or an operator sends
// "E".
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcade-daq/waveflow/pkg/version"
)

func main() {
	root := &cobra.Command{
		Use:   "waveflow",
		Short: "Triggering-digitizer acquisition core: Buffer Manager + Pulse Filter",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newSimCmd())
	root.AddCommand(version.VersionCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
