package main

import (
	"fmt"
	"os"

	"github.com/kenta/moviemate/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "moviemate: %v\n", err)
		os.Exit(1)
	}
}
