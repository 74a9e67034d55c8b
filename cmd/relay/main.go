// Binary relay bridges a LINE bot to a language model and a local coding
// tool.
//
// Usage:
//
//	relay serve                 run the LINE webhook server
//	relay chat                  talk to the bridge from the terminal
//	relay history <user-id>     print a user's recent conversation
//	relay version
//
// Global flags:
//
//	--config   path to the YAML config (default: ~/.config/relay/config.yaml if present)
//	--verbose  debug logging
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
