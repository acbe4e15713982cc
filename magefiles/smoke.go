//go:build mage

package main

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// Smoke groups end-to-end checks that exercise the built binary against
// live services. They download real files; run them deliberately.
type Smoke mg.Namespace

// smokeIdentifier is a stable open-access paper every registry knows.
const smokeIdentifier = "arXiv:1706.03762"

// Fetch builds the CLI and retrieves one known open-access paper.
func (Smoke) Fetch() error {
	mg.Deps(Build)
	return runBin("fetch", "--skip-existing", smokeIdentifier)
}

// Login builds the CLI and runs the interactive institutional login.
func (Smoke) Login() error {
	mg.Deps(Build)
	return runBin("login")
}

// Report builds the CLI and lists recent ledger runs.
func (Smoke) Report() error {
	mg.Deps(Build)
	return runBin("report")
}

func runBin(args ...string) error {
	cmd := exec.Command(filepath.Join(binDir, binName), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}
