// Command dhfs runs the Data Hub File Service worker.
package main

import (
	"os"

	"github.com/ghga-de/datahub-file-service/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
