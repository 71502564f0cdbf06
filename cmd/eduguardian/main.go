// Package main is the single-binary entrypoint for EduGuardian.
package main

import "github.com/eduguardian/guardian/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
