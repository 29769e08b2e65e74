// Command rbxproxy runs the hostname-transforming reverse proxy
// described by SPEC_FULL.md, grounded on the teacher's cmd/main.go
// entrypoint: build the root cobra command and execute it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
