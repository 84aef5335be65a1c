package main

import (
	"os"

	"github.com/hashicorp-forge/courier/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
