package main

import (
	"fmt"
	"os"

	"github.com/petroseis/pgi/cmd/pgi/fit"
	"github.com/petroseis/pgi/cmd/pgi/sensitivity"
	"github.com/petroseis/pgi/cmd/pgi/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "fit":
		fit.Run(os.Args[2:])
	case "sensitivity":
		sensitivity.Run(os.Args[2:])
	case "version":
		version.Run()
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pgi - Petrophysically Guided Inversion toolkit

Usage:
  pgi <command> [options]

Commands:
  fit          Fit a volume-weighted Gaussian mixture to sample data
  sensitivity  Build and persist a sensitivity (Jacobian) matrix
  version      Print version information
  help         Show this help message

Run 'pgi <command> --help' for more information on a command.`)
}
