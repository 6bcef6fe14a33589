// The main package for the boe-harvester executable.
package main

import (
	"github.com/jfandino/boe-harvester/cmd"
)

func main() {
	cmd.Execute()
}
