package main

import (
	"os"
)

func main() {
	a := newApp()
	if err := a.root.Execute(); err != nil {
		a.outputError(os.Stderr, err)
		os.Exit(1)
	}
}
