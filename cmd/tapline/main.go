// Command tapline records keyboard, pointer and scroll activity into a local
// SQLite database.
package main

import (
	"os"

	"github.com/roach88/tapline/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
