// Command moodarc plans mood-arc playlists from the command line and serves the
// web application.
package main

import (
	"os"

	"github.com/justestif/moodarc/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
