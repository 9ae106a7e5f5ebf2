package main

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
)

// main wires environment overrides (§5 ambient stack) into a
// CommandContext and hands off to RunCLI. Grounded on flapc's main.go,
// which likewise parses a handful of top-level flags/env values before
// dispatching into its own CLI dispatcher.
func main() {
	ctx := &CommandContext{
		Platform: platformFromEnv(),
		Verbose:  env.Bool("OLUSC_DEBUG"),
		HeapSize: uint64(env.Int64("OLUSC_HEAP_SIZE", 0)),
	}

	if err := RunCLI(os.Args[1:], ctx); err != nil {
		fmt.Fprintln(os.Stderr, "olusc:", err)
		os.Exit(1)
	}
}
