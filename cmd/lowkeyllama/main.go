package main

import (
	"context"
	"fmt"
	"os"

	"lowkeyllama/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "lowkeyllama:", err)
		os.Exit(1)
	}
}
