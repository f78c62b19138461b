package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the CLI and returns the exit status. An interrupted command
// exits 130 without printing the cancellation.
func run(args []string, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		fmt.Fprintln(stderr, "voxdub:", err)
		return 1
	}
}
