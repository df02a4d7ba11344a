package main

import (
	"os"

	"github.com/Ziarant/StarPupil/cmd/starpupil/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
