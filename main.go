package main

import (
	"os"

	"github.com/ekaya-inc/ekaya-ingest/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
