// grimoire compiles YAML query descriptions into SQL.
//
//	grimoire --schema schema.yaml compile --dialect postgres query.yaml
//	grimoire --schema schema.yaml models
package main

import (
	"os"

	"github.com/syssam/grimoire/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
