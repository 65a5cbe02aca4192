package config

import (
	"fmt"
	"os"
)

// Exitf prints a formatted message to stderr and exits with code 1.
// Service mains call it when startup configuration cannot be parsed.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
