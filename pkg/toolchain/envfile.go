package toolchain

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/LZB-126/gold-miner/pkg/bootlog"
)

func (inst *Installer) loadEnv(ctx context.Context) error {
	path, err := expandPath(inst.EnvFile)
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			bootlog.Log(ctx).Warn().Msgf("Environment file %s does not exist, skipping", path)
			return nil
		}

		return eris.Wrapf(err, "Failed to check %s", path)
	}

	return LoadEnv(ctx, path)
}

// LoadEnv executes the given shell environment file against the current
// environment and exports every variable the script marks as exported into
// the running process. This is the Go equivalent of sourcing the file.
func LoadEnv(ctx context.Context, path string) error {
	handle, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "Failed to open %s", path)
	}
	defer handle.Close()

	parser := syntax.NewParser()
	file, err := parser.Parse(handle, path)
	if err != nil {
		return eris.Wrapf(err, "Failed to parse %s", path)
	}

	runner, err := interp.New(
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(nil, io.Discard, io.Discard),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize the shell runner")
	}

	err = runner.Run(ctx, file)
	if err != nil {
		return eris.Wrapf(err, "Failed to execute %s", path)
	}

	for name, value := range runner.Vars {
		if !value.Exported {
			continue
		}

		err = os.Setenv(name, value.String())
		if err != nil {
			return eris.Wrapf(err, "Failed to set %s", name)
		}
	}

	return nil
}
