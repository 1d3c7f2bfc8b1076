package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/LZB-126/gold-miner/pkg/bootlog"
	"github.com/LZB-126/gold-miner/pkg/bootstrap"
	"github.com/LZB-126/gold-miner/pkg/config"
	"github.com/LZB-126/gold-miner/pkg/launcher"
)

var (
	cfg config.Config

	flagDry      bool
	flagForce    bool
	flagConfig   string
	flagLogLevel string
	flagLogJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Prepares this machine for Golden Miner and launches the build",
	Long: `Installs the Rust toolchain if it is missing, installs the native
libraries the game links against (Linux only) and finally builds and runs
the game. The exit code is the build command's exit code.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loader := config.Loader(&cfg, flagConfig)
		if err := loader.Load(); err != nil {
			return eris.Wrap(err, "Failed to load configuration")
		}

		// flags beat bootstrap.toml and GOLDMINER_* values
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = flagLogLevel
		}
		if cmd.Flags().Changed("log-json") {
			cfg.Log.JSON = flagLogJSON
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		zerolog.SetGlobalLevel(cfg.LogLevel())
		if cfg.Log.JSON {
			log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
			zerolog.ErrorStackMarshaler = func(err error) interface{} {
				return eris.ToJSON(err, true)
			}
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := bootlog.WithRunID(cmd.Context())
		return bootstrap.New(&cfg, flagDry, flagForce).Run(ctx)
	},
}

var toolchainCmd = &cobra.Command{
	Use:   "toolchain",
	Short: "Runs only the toolchain phase",
	Long:  `Checks for the toolchain on PATH and installs it if it is missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := bootlog.WithPhase(bootlog.WithRunID(cmd.Context()), "toolchain")
		return bootstrap.New(&cfg, flagDry, flagForce).Toolchain.Ensure(ctx)
	},
}

var sysdepsCmd = &cobra.Command{
	Use:   "sysdeps",
	Short: "Runs only the system package phase",
	Long: `Refreshes the package index and installs the native libraries the
game needs. Does nothing on non-Linux systems.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := bootlog.WithPhase(bootlog.WithRunID(cmd.Context()), "sysdeps")
		return bootstrap.New(&cfg, flagDry, flagForce).Sysdeps.Install(ctx)
	},
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Runs only the build & run phase",
	Long:  `Builds and runs the game in the current directory, skipping the install phases.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := bootlog.WithPhase(bootlog.WithRunID(cmd.Context()), "launch")
		return bootstrap.New(&cfg, flagDry, flagForce).Launcher.Run(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagDry, "dry", "n", false, "dry run; only print the commands, don't execute anything")
	rootCmd.PersistentFlags().BoolVarP(&flagForce, "force", "f", false, "reinstall the toolchain even if it is already on PATH")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default bootstrap.toml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "output NDJSON instead of pretty console messages")

	rootCmd.AddCommand(toolchainCmd)
	rootCmd.AddCommand(sysdepsCmd)
	rootCmd.AddCommand(launchCmd)
}

func main() {
	log.Logger = zerolog.New(NewConsoleWriter())
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		return eris.ToString(err, true)
	}

	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		code, ok := launcher.ExitCode(err)
		if ok {
			// the build command's exit code becomes ours
			os.Exit(code)
		}

		log.Error().Stack().Err(err).Msg("Bootstrap failed")
		os.Exit(1)
	}
}
