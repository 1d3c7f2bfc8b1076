// Package toolchain implements the first bootstrap phase: making sure the
// compiler toolchain the game project needs is available on PATH, installing
// it if it isn't.
package toolchain

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"

	"github.com/LZB-126/gold-miner/pkg/bootlog"
	"github.com/LZB-126/gold-miner/pkg/download"
	"github.com/LZB-126/gold-miner/pkg/stamps"
)

// ArchiveSpec points to a standalone toolchain archive that is used instead
// of the installer script when its URL is set.
type ArchiveSpec struct {
	URL      string
	Sha256   string
	Dest     string
	Strip    int
	MarkExec []string
}

// Installer probes for and installs the toolchain.
type Installer struct {
	// Binary is the executable name probed for on PATH.
	Binary string
	// InstallerURL is the pinned HTTPS endpoint serving the installer script.
	InstallerURL string
	// EnvFile is the shell environment file the installer leaves behind.
	EnvFile string
	// MinVersion is the oldest accepted toolchain version. Older toolchains
	// only produce a warning; the build is still attempted.
	MinVersion string
	Archive    ArchiveSpec
	Client     *http.Client
	// StampFile overrides the stamp file location (archive installs only).
	StampFile string
	DryRun    bool
	Force     bool
}

// Probe looks the toolchain binary up on PATH.
func (inst *Installer) Probe() (string, error) {
	return exec.LookPath(inst.Binary)
}

// Ensure makes the toolchain available: if the binary is already on PATH the
// installer is not touched and no network request happens. Otherwise the
// installer script (or standalone archive) is downloaded and run, and the
// toolchain's environment file is loaded into the current process.
func (inst *Installer) Ensure(ctx context.Context) error {
	binPath, err := inst.Probe()
	if err == nil && !inst.Force {
		bootlog.Log(ctx).Debug().Str("path", binPath).Msgf("%s is already installed", inst.Binary)
		inst.checkVersion(ctx, binPath)
		return nil
	}

	bootlog.PrintTask(fmt.Sprintf("%s not found, installing the toolchain now", inst.Binary))

	if inst.Archive.URL != "" {
		err = inst.installArchive(ctx)
	} else {
		err = inst.installScript(ctx)
	}
	if err != nil {
		return err
	}

	if inst.DryRun {
		return nil
	}

	err = inst.loadEnv(ctx)
	if err != nil {
		return err
	}

	binPath, err = inst.Probe()
	if err != nil {
		return eris.Wrapf(err, "%s is still missing from PATH after the installer finished", inst.Binary)
	}

	inst.checkVersion(ctx, binPath)
	return nil
}

func (inst *Installer) installScript(ctx context.Context) error {
	bootlog.PrintSubtask(inst.InstallerURL)
	if inst.DryRun {
		bootlog.Log(ctx).Info().Bool("command", true).Msg("sh <installer> -y")
		return nil
	}

	tmpDir, err := os.MkdirTemp("", "goldminer-toolchain")
	if err != nil {
		return eris.Wrap(err, "Failed to create a temporary directory for the installer")
	}
	defer os.RemoveAll(tmpDir)

	script := filepath.Join(tmpDir, "install.sh")
	_, err = download.Fetch(ctx, inst.Client, inst.InstallerURL, script, "")
	if err != nil {
		return err
	}

	bootlog.PrintSubtask("Running installer")
	proc := exec.CommandContext(ctx, "sh", script, "-y")
	proc.Stdout = os.Stdout
	proc.Stderr = os.Stderr
	err = proc.Run()
	if err != nil {
		return eris.Wrapf(err, "Installer from %s failed", inst.InstallerURL)
	}

	return nil
}

func (inst *Installer) installArchive(ctx context.Context) error {
	dest, err := expandPath(inst.Archive.Dest)
	if err != nil {
		return err
	}

	stampPath := inst.StampFile
	if stampPath == "" {
		stampPath, err = stamps.DefaultPath()
		if err != nil {
			return err
		}
	}

	recorded, err := stamps.Load(stampPath)
	if err != nil {
		return err
	}

	stampToken := inst.Archive.URL + "#" + inst.Archive.Sha256
	_, destErr := os.Stat(dest)
	if recorded["toolchain"] == stampToken && destErr == nil {
		bootlog.Log(ctx).Info().Msgf("Toolchain archive already extracted to %s", dest)
		inst.prependPath(dest)
		return nil
	}

	bootlog.PrintSubtask(inst.Archive.URL)
	if inst.DryRun {
		return nil
	}

	tmpDir, err := os.MkdirTemp("", "goldminer-toolchain")
	if err != nil {
		return eris.Wrap(err, "Failed to create a temporary directory for the archive")
	}
	defer os.RemoveAll(tmpDir)

	arPath := filepath.Join(tmpDir, "toolchain.ar")
	_, err = download.Fetch(ctx, inst.Client, inst.Archive.URL, arPath, inst.Archive.Sha256)
	if err != nil {
		return err
	}

	arHandle, err := os.Open(arPath)
	if err != nil {
		return eris.Wrapf(err, "Failed to open %s", arPath)
	}
	defer arHandle.Close()

	err = download.Extract(arHandle, inst.Archive.URL, download.ArchiveSpec{
		Dest:     dest,
		Strip:    inst.Archive.Strip,
		MarkExec: inst.Archive.MarkExec,
	})
	if err != nil {
		return err
	}

	recorded["toolchain"] = stampToken
	err = stamps.Save(stampPath, recorded)
	if err != nil {
		bootlog.PrintError(err.Error())
	}

	inst.prependPath(dest)
	return nil
}

func (inst *Installer) prependPath(dest string) {
	binDir := filepath.Join(dest, "bin")
	os.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// checkVersion warns if the installed toolchain is older than the configured
// minimum. It never aborts the run.
func (inst *Installer) checkVersion(ctx context.Context, binPath string) {
	if inst.MinVersion == "" || inst.DryRun {
		return
	}

	out, err := exec.CommandContext(ctx, binPath, "--version").Output()
	if err != nil {
		bootlog.Log(ctx).Warn().Err(err).Msgf("Failed to run %s --version", binPath)
		return
	}

	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		bootlog.Log(ctx).Warn().Msgf("Unexpected output from %s --version: %s", binPath, out)
		return
	}

	version, err := semver.NewVersion(fields[1])
	if err != nil {
		bootlog.Log(ctx).Warn().Err(err).Msgf("Failed to parse toolchain version %s", fields[1])
		return
	}

	constraint, err := semver.NewConstraint(">= " + inst.MinVersion)
	if err != nil {
		bootlog.Log(ctx).Warn().Err(err).Msgf("Invalid minimum version %s", inst.MinVersion)
		return
	}

	if !constraint.Check(version) {
		bootlog.Log(ctx).Warn().Msgf("%s %s is older than the expected minimum %s; the build might fail", inst.Binary, version, inst.MinVersion)
	}
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", eris.Wrap(err, "Failed to determine the home directory")
		}

		return filepath.Join(home, path[1:]), nil
	}

	return path, nil
}
