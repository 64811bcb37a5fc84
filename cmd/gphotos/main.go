// Command gphotos picks, lists and downloads Google Photos media.
package main

import (
	"os"

	"github.com/custodia-labs/gphotos-cli/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	os.Exit(cli.Execute())
}
