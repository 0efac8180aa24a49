package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tyemirov/gitstat/cmd/cli"
	"github.com/tyemirov/gitstat/cmd/cli/repos"
)

const (
	exitErrorTemplateConstant = "%v\n"
	failureExitCodeConstant   = 1
)

// main executes the gitstat command-line application.
func main() {
	executionError := cli.Execute()
	if executionError == nil {
		return
	}
	var exitStatus repos.ExitStatusError
	if !errors.As(executionError, &exitStatus) {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
	}
	os.Exit(failureExitCodeConstant)
}
