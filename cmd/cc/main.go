// Command cc is the ahead-of-time compiler's command-line entry point: it
// reads one source file, lowers it to LLVM IR, and writes the result to a
// file or standard output (§6).
package main

import (
	"os"

	"minicc/pkg/driver"
)

func main() {
	os.Exit(driver.Run("cc", os.Args[1:], os.Stdout, os.Stderr))
}
