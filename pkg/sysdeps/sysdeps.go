// Package sysdeps implements the second bootstrap phase: installing the
// native libraries the game needs for windowing and audio support. The phase
// only does anything on Linux systems; everywhere else it is a silent no-op.
package sysdeps

import (
	"context"
	_ "embed"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/LZB-126/gold-miner/pkg/bootlog"
	"github.com/LZB-126/gold-miner/pkg/stamps"
)

//go:embed deps.yml
var defaultManifest []byte

type pkgSpec struct {
	Name       string   `yaml:"name"`
	Condition  string   `yaml:"if,omitempty"`
	Rejections string   `yaml:"ifNot,omitempty"`
	Install    []string `yaml:"install"`
}

type manifest struct {
	Packages []pkgSpec `yaml:"packages"`
}

func (spec *pkgSpec) enabled(vars map[string]string) bool {
	for _, condition := range strings.Split(spec.Condition, ",") {
		if condition == "" {
			continue
		}

		value, ok := vars[strings.TrimSpace(condition)]
		if !ok || value == "" {
			return false
		}
	}

	for _, condition := range strings.Split(spec.Rejections, ",") {
		if condition == "" {
			continue
		}

		value, ok := vars[strings.TrimSpace(condition)]
		if ok && value != "" {
			return false
		}
	}
	return true
}

// Installer runs the platform package manager for the packages the manifest
// selects on this platform.
type Installer struct {
	// OS overrides the detected OS identity (tests). Empty means runtime.GOOS.
	OS string
	// Arch overrides the detected architecture. Empty means runtime.GOARCH.
	Arch string
	// ManifestPath points to a deps.yml replacing the built-in manifest.
	ManifestPath string
	// UpdateCmd refreshes the package index (needs elevated privileges).
	UpdateCmd string
	// InstallCmd installs packages; the selected names are appended.
	InstallCmd string
	// StampFile overrides the stamp file location.
	StampFile string
	DryRun    bool
}

func (inst *Installer) osName() string {
	if inst.OS != "" {
		return inst.OS
	}
	return runtime.GOOS
}

func (inst *Installer) archName() string {
	if inst.Arch != "" {
		return inst.Arch
	}
	return runtime.GOARCH
}

func (inst *Installer) loadManifest() (manifest, error) {
	var result manifest

	data := defaultManifest
	if inst.ManifestPath != "" {
		var err error
		data, err = os.ReadFile(inst.ManifestPath)
		if err != nil {
			return result, eris.Wrapf(err, "Could not open file %s", inst.ManifestPath)
		}
	}

	err := yaml.Unmarshal(data, &result)
	if err != nil {
		return result, eris.Wrap(err, "Failed to parse the package manifest")
	}

	return result, nil
}

// Install refreshes the package index and installs the selected packages, in
// manifest order, on Linux systems. On any other OS identity it returns
// immediately without side effects.
func (inst *Installer) Install(ctx context.Context) error {
	if inst.osName() != "linux" {
		bootlog.Log(ctx).Debug().Str("os", inst.osName()).Msg("Not a Linux system, skipping package installation")
		return nil
	}

	mf, err := inst.loadManifest()
	if err != nil {
		return err
	}

	vars := map[string]string{
		inst.osName():   "true",
		inst.archName(): "true",
	}
	if os.Getenv("CI") == "true" {
		vars["ci"] = "true"
	}

	selected := make([]string, 0, len(mf.Packages))
	for _, spec := range mf.Packages {
		if spec.enabled(vars) {
			selected = append(selected, spec.Install...)
		}
	}

	if len(selected) == 0 {
		bootlog.Log(ctx).Debug().Msg("No packages selected for this platform")
		return nil
	}

	bootlog.PrintTask("Installing system packages, this needs elevated privileges")

	err = inst.runCmd(ctx, strings.Fields(inst.UpdateCmd))
	if err != nil {
		return eris.Wrap(err, "Package index refresh failed")
	}

	install := append(strings.Fields(inst.InstallCmd), selected...)
	err = inst.runCmd(ctx, install)
	if err != nil {
		return eris.Wrap(err, "Package installation failed")
	}

	inst.writeStamp(ctx, selected)
	return nil
}

func (inst *Installer) runCmd(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return eris.New("Empty package manager command")
	}

	bootlog.PrintSubtask(strings.Join(argv, " "))
	if inst.DryRun {
		return nil
	}

	proc := exec.CommandContext(ctx, argv[0], argv[1:]...)
	proc.Stdin = os.Stdin
	proc.Stdout = os.Stdout
	proc.Stderr = os.Stderr
	return proc.Run()
}

// writeStamp records the completed install for diagnostics. It never gates
// future runs; the package manager decides on its own what is up to date.
func (inst *Installer) writeStamp(ctx context.Context, packages []string) {
	if inst.DryRun {
		return
	}

	stampPath := inst.StampFile
	if stampPath == "" {
		var err error
		stampPath, err = stamps.DefaultPath()
		if err != nil {
			bootlog.Log(ctx).Warn().Err(err).Msg("Failed to locate the stamp file")
			return
		}
	}

	recorded, err := stamps.Load(stampPath)
	if err != nil {
		bootlog.Log(ctx).Warn().Err(err).Msg("Failed to read the stamp file")
		return
	}

	recorded["sysdeps"] = time.Now().UTC().Format(time.RFC3339) + " " + strings.Join(packages, ",")
	err = stamps.Save(stampPath, recorded)
	if err != nil {
		bootlog.Log(ctx).Warn().Err(err).Msg("Failed to update the stamp file")
	}
}
