// Package bootstrap sequences the three phases that prepare a machine for
// the Golden Miner project and launch its build.
package bootstrap

import (
	"context"
	"time"

	"github.com/LZB-126/gold-miner/pkg/bootlog"
	"github.com/LZB-126/gold-miner/pkg/config"
	"github.com/LZB-126/gold-miner/pkg/download"
	"github.com/LZB-126/gold-miner/pkg/launcher"
	"github.com/LZB-126/gold-miner/pkg/sysdeps"
	"github.com/LZB-126/gold-miner/pkg/toolchain"
)

// Bootstrapper holds the three phases. They run strictly in order, with no
// concurrency and no way back.
type Bootstrapper struct {
	Toolchain *toolchain.Installer
	Sysdeps   *sysdeps.Installer
	Launcher  *launcher.Launcher
}

// New assembles the phases from the given configuration.
func New(cfg *config.Config, dryRun, force bool) *Bootstrapper {
	return &Bootstrapper{
		Toolchain: &toolchain.Installer{
			Binary:       cfg.Toolchain.Binary,
			InstallerURL: cfg.Toolchain.InstallerURL,
			EnvFile:      cfg.Toolchain.EnvFile,
			MinVersion:   cfg.Toolchain.MinVersion,
			Archive: toolchain.ArchiveSpec{
				URL:      cfg.Toolchain.Archive.URL,
				Sha256:   cfg.Toolchain.Archive.Sha256,
				Dest:     cfg.Toolchain.Archive.Dest,
				Strip:    cfg.Toolchain.Archive.Strip,
				MarkExec: cfg.Toolchain.Archive.MarkExec,
			},
			Client: download.NewClient(30 * time.Minute),
			DryRun: dryRun,
			Force:  force,
		},
		Sysdeps: &sysdeps.Installer{
			ManifestPath: cfg.Packages.Manifest,
			UpdateCmd:    cfg.Packages.Update,
			InstallCmd:   cfg.Packages.Install,
			DryRun:       dryRun,
		},
		Launcher: &launcher.Launcher{
			Command: cfg.Build.Command,
			DryRun:  dryRun,
		},
	}
}

// Run executes the three phases in order. Like the shell script this tool
// replaces, failures in the first two phases are reported but do not stop
// the run; a machine whose package index refresh fails can still produce a
// working build. The returned error is the launch phase's, so the caller can
// propagate the build command's exit code.
func (b *Bootstrapper) Run(ctx context.Context) error {
	tcCtx := bootlog.WithPhase(ctx, "toolchain")
	err := b.Toolchain.Ensure(tcCtx)
	if err != nil {
		bootlog.Log(tcCtx).Error().Stack().Err(err).Msg("Toolchain installation failed, attempting to continue")
	}

	if err = ctx.Err(); err != nil {
		return err
	}

	depsCtx := bootlog.WithPhase(ctx, "sysdeps")
	err = b.Sysdeps.Install(depsCtx)
	if err != nil {
		bootlog.Log(depsCtx).Error().Stack().Err(err).Msg("System package installation failed, attempting to continue")
	}

	if err = ctx.Err(); err != nil {
		return err
	}

	return b.Launcher.Run(bootlog.WithPhase(ctx, "launch"))
}
