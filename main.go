package main

import (
	"os"

	"github.com/raysh454/freename/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
