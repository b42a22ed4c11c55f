// Package cli holds the lowkeyllama command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lowkeyllama/internal/config"
	"lowkeyllama/internal/logging"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// Execute runs the command tree with args and returns the first error.
func Execute(ctx context.Context, args []string) error {
	root := buildRootCmdWith(&Options{})
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// buildRootCmdWith constructs the command tree bound to opts.
func buildRootCmdWith(opts *Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "lowkeyllama",
		Short:         "Local LLM API in front of an Ollama backend",
		Long:          "lowkeyllama exposes a small HTTP API over a local Ollama server.\nRun without a subcommand to start the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, serveFlags{})
		},
	}

	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Config file (default: ./config.yaml layered under "+config.DefaultUserPath+")")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug|info|warning|error|critical (overrides config)")
	root.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "Log format: auto|json|console (overrides config)")

	root.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newModelsCmd(opts),
		newPullCmd(opts),
		newGenerateCmd(opts),
		newConfigCmd(opts),
		newCompletionCmd(root),
	)
	return root
}

// loadConfig resolves the effective configuration: an explicit --config file,
// or ./config.yaml with the per-user file layered on top, then the
// environment, then flags.
func loadConfig(opts *Options) (config.Config, []string, error) {
	var (
		cfg     config.Config
		skipped []string
		err     error
	)
	if opts.ConfigPath != "" {
		cfg, skipped, err = config.LoadLayered(opts.ConfigPath)
		if err == nil && len(skipped) > 0 {
			err = fmt.Errorf("config file not found: %s", opts.ConfigPath)
		}
	} else {
		cfg, skipped, err = config.LoadLayered("config.yaml", config.DefaultUserPath)
	}
	if err != nil {
		return config.Config{}, skipped, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return config.Config{}, skipped, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, skipped, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, skipped, nil
}

// setup loads the configuration and builds the process logger writing to w.
func setup(opts *Options, w io.Writer) (config.Config, zerolog.Logger, error) {
	cfg, skipped, err := loadConfig(opts)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, w)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	for _, p := range skipped {
		log.Debug().Str("path", p).Msg("config file not present, skipped")
	}
	return cfg, log, nil
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error {
		return root.GenBashCompletion(cmd.OutOrStdout())
	}})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error {
		return root.GenZshCompletion(cmd.OutOrStdout())
	}})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error {
		return root.GenFishCompletion(cmd.OutOrStdout(), true)
	}})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error {
		return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
	}})
	return completionCmd
}
