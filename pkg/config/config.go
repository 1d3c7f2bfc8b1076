package config

import (
	"net/url"

	"github.com/Masterminds/semver/v3"
	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config describes all configuration options. The defaults pin the exact
// values the original bootstrap script hard-coded; overrides come from
// bootstrap.toml or GOLDMINER_* environment variables.
type Config struct {
	Log struct {
		Level string `default:"info"`
		JSON  bool   `default:"false" usage:"Output NDJSON instead of pretty console messages"`
	}
	Toolchain struct {
		Binary       string `default:"cargo" usage:"Executable probed for on PATH"`
		InstallerURL string `default:"https://sh.rustup.rs" usage:"HTTPS endpoint serving the toolchain installer script"`
		EnvFile      string `default:"~/.cargo/env" usage:"Environment file loaded after the installer ran"`
		MinVersion   string `default:"1.56.0" usage:"Oldest toolchain version accepted without a warning"`
		Archive      struct {
			URL      string   `usage:"Standalone toolchain archive (.tar.gz or .tar.xz); replaces the installer script when set"`
			Sha256   string   `usage:"Expected SHA-256 checksum of the archive"`
			Dest     string   `default:"~/.goldminer/toolchain" usage:"Directory the archive is extracted into"`
			Strip    int      `default:"1" usage:"Leading path elements stripped during extraction"`
			MarkExec []string `usage:"Files below dest to mark as executable after extraction"`
		}
	}
	Packages struct {
		Manifest string `usage:"Path to a deps.yml overriding the built-in package manifest"`
		Update   string `default:"sudo apt-get update" usage:"Package index refresh command"`
		Install  string `default:"sudo apt-get install -y" usage:"Package install command; selected packages are appended"`
	}
	Build struct {
		Command string `default:"cargo run" usage:"Build-and-run command executed in the current directory"`
	}
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Loader returns a new aconfig Loader for the given config object. An empty
// file argument falls back to bootstrap.toml in the working directory; a
// missing file is not an error.
func Loader(cfg *Config, file string) *aconfig.Loader {
	if file == "" {
		file = "bootstrap.toml"
	}

	return aconfig.LoaderFor(cfg, aconfig.Config{
		EnvPrefix: "GOLDMINER",
		SkipFlags: true,
		Files:     []string{file},
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if err := checkHTTPS("toolchain.installerurl", cfg.Toolchain.InstallerURL); err != nil {
		return err
	}

	if cfg.Toolchain.Archive.URL != "" {
		if err := checkHTTPS("toolchain.archive.url", cfg.Toolchain.Archive.URL); err != nil {
			return err
		}
	}

	if cfg.Toolchain.MinVersion != "" {
		_, err := semver.StrictNewVersion(cfg.Toolchain.MinVersion)
		if err != nil {
			return eris.Wrapf(err, `Invalid value for toolchain.minversion: %s`, cfg.Toolchain.MinVersion)
		}
	}

	if cfg.Build.Command == "" {
		return eris.New(`build.command must not be empty`)
	}

	return nil
}

func checkHTTPS(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return eris.Wrapf(err, `Invalid value for %s`, field)
	}

	if parsed.Scheme != "https" {
		return eris.Errorf(`Invalid value for %s: %s (must be an https:// URL)`, field, value)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}
