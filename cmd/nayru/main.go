// Nayru — a local voice server.
//
// Usage:
//
//	nayru serve [-addr -port -kokoro-url -voice -speed -verbose -quiet]
//	nayru speak [-addr -voice] <text>
//	nayru stop|skip|pause|resume|status [-addr]
package main

import (
	"os"

	"github.com/hammamikhairi/nayru/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
