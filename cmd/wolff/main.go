package main

import (
	"os"
	"wolff/cmd/wolff/cmds"
)

func main() {
	os.Exit(cmds.Run(os.Args[1:], os.Stdout, os.Stderr))
}
