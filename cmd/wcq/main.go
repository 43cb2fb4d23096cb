// Command wcq finalizes working-copy metadata after a commit.
package main

import (
	"os"

	"github.com/roach88/wcq/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
