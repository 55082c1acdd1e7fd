// Command piosim drives the core through a synthetic write/read cycle
// without a real MPI runtime or parallel netCDF library: it simulates
// a small rank set in-process, builds a BOX decomposition, and round-
// trips a variable through an in-memory back-end, for exercising and
// demonstrating the library.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "piosim",
		Short: "Simulate a distributed-array write/read cycle over a goroutine-backed rank set",
	}
	root.AddCommand(newDemoCommand())
	return root
}
