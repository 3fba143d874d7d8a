package main

import (
	"os"

	"github.com/JonMunkholm/pokelab/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
