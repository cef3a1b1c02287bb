// Command clinicprobe runs end-to-end browser scenarios against the dental
// clinic web application and reports the outcome.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kuitang/clinicprobe/internal/engine"
	"github.com/kuitang/clinicprobe/internal/errs"
)

// deps are the process boundaries the commands use, replaced in tests.
type deps struct {
	driver func(install bool) engine.Driver
	stdout io.Writer
	stderr io.Writer
}

func defaultDeps() deps {
	return deps{
		driver: func(install bool) engine.Driver { return engine.PlaywrightDriver{Install: install} },
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func main() {
	os.Exit(execute(os.Args[1:], defaultDeps()))
}

// execute runs the CLI and returns the process exit status.
func execute(args []string, d deps) int {
	root := newRootCmd(d)
	root.SetArgs(args)
	root.SetOut(d.stdout)
	root.SetErr(d.stderr)

	err := root.Execute()
	if err == nil {
		return errs.ExitOK
	}
	fmt.Fprintf(d.stderr, "Error: %s\n", err)

	// Errors without a code come from argument and flag parsing.
	var coded *errs.Error
	if !errors.As(err, &coded) {
		return errs.ExitInvalid
	}
	return errs.ExitCode(coded.Code)
}
