// Package launcher implements the final bootstrap phase: running the
// project's build-and-run command with the caller's standard streams and
// surfacing its exit code.
package launcher

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/LZB-126/gold-miner/pkg/bootlog"
)

// Launcher executes the build-and-run command through a shell interpreter.
type Launcher struct {
	// Command is the shell command line that compiles and runs the project.
	Command string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env replaces the process environment when non-nil (tests).
	Env []string
	// Stdout/Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
	DryRun bool
}

func (l *Launcher) stdout() io.Writer {
	if l.Stdout != nil {
		return l.Stdout
	}
	return os.Stdout
}

func (l *Launcher) stderr() io.Writer {
	if l.Stderr != nil {
		return l.Stderr
	}
	return os.Stderr
}

func (l *Launcher) environ() []string {
	if l.Env != nil {
		return l.Env
	}
	return os.Environ()
}

// Run parses and executes the configured command. The returned error carries
// the child's exit status when it terminated with a non-zero code; use
// ExitCode to retrieve it.
func (l *Launcher) Run(ctx context.Context) error {
	bootlog.PrintTask("Building and running the game")

	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(l.Command), "build command")
	if err != nil {
		return eris.Wrapf(err, "Failed to parse build command %q", l.Command)
	}

	if l.DryRun {
		printer := syntax.NewPrinter(syntax.Minify(true))
		strBuffer := strings.Builder{}
		for _, stmt := range file.Stmts {
			strBuffer.Reset()
			printer.Print(&strBuffer, stmt)
			bootlog.Log(ctx).Info().Bool("command", true).Msg(strBuffer.String())
		}
		return nil
	}

	runner, err := interp.New(
		interp.Dir(l.Dir),
		interp.Env(expand.ListEnviron(l.environ()...)),
		interp.StdIO(os.Stdin, l.stdout(), l.stderr()),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize the shell runner")
	}

	return runner.Run(ctx, file)
}

// ExitCode extracts the child exit code from an error returned by Run.
func ExitCode(err error) (int, bool) {
	status, ok := interp.IsExitStatus(err)
	if ok {
		return int(status), true
	}

	return 0, false
}
