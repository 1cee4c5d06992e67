// Package main provides the execution layer CLI.
package main

import (
	"fmt"
	"os"

	"github.com/00mjk/oneDNN/compute"
)

const version = "v0.1.0-dev"

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "version":
		fmt.Printf("oneDNN execution layer %s\n", version)
	case "devices":
		devices()
	default:
		fmt.Println("oneDNN execution layer for Go")
		fmt.Printf("Version: %s\n\n", version)
		fmt.Println("Commands:")
		fmt.Println("  version    Show version")
		fmt.Println("  devices    Probe the compute device")
	}
}

func devices() {
	if !compute.Available() {
		fmt.Println("No compute adapter available.")
		fmt.Println("Ensure wgpu-native is installed and accessible.")
		os.Exit(1)
	}
	q, err := compute.NewQueue()
	if err != nil {
		fmt.Fprintf(os.Stderr, "device init failed: %v\n", err)
		os.Exit(1)
	}
	defer q.Release()
	fmt.Println(q.String())
}
