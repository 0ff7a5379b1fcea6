package main

import (
	"fmt"
	"os"

	"idlc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "idlc: %v\n", err)
		os.Exit(1)
	}
}
