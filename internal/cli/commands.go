package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lowkeyllama/internal/events"
	"lowkeyllama/internal/generate"
	"lowkeyllama/internal/httpapi"
	"lowkeyllama/internal/ollama"
	"lowkeyllama/internal/supervisor"
	"lowkeyllama/pkg/types"
)

// clientFor connects to the configured backend without spawning it.
func clientFor(opts *Options, cmd *cobra.Command) (*ollama.Client, error) {
	cfg, log, err := setup(opts, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	c := ollama.NewClient(cfg.BackendURL(), time.Duration(cfg.Backend.ConnectTimeoutSeconds)*time.Second)
	c.SetLogger(log)
	return c, nil
}

func newCheckCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report backend health, binary location and default model availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, skipped, err := loadConfig(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range skipped {
				fmt.Fprintf(out, "config   %s (not present)\n", p)
			}
			if bin, err := supervisor.FindBinary(cfg.Backend.Binary); err != nil {
				fmt.Fprintf(out, "binary   missing: %v\n", err)
			} else {
				fmt.Fprintf(out, "binary   %s\n", bin)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			c := ollama.NewClient(cfg.BackendURL(), time.Duration(cfg.Backend.ConnectTimeoutSeconds)*time.Second)
			v, err := c.Version(ctx)
			if err != nil {
				fmt.Fprintf(out, "backend  %s unreachable: %v\n", cfg.BackendURL(), err)
				return fmt.Errorf("backend check failed: %w", err)
			}
			fmt.Fprintf(out, "backend  %s (ollama %s)\n", cfg.BackendURL(), v)

			models, err := c.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}
			fmt.Fprintf(out, "models   %d installed\n", len(models))
			if !ollama.HasModel(models, cfg.DefaultModel) {
				fmt.Fprintf(out, "default  %s not installed (run: lowkeyllama pull %s)\n", cfg.DefaultModel, cfg.DefaultModel)
				return fmt.Errorf("default model %q not installed", cfg.DefaultModel)
			}
			fmt.Fprintf(out, "default  %s ok\n", cfg.DefaultModel)
			return nil
		},
	}
}

func newModelsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models installed on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(opts, cmd)
			if err != nil {
				return err
			}
			models, err := c.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Fprintln(cmd.OutOrStdout(), m.Name)
			}
			return nil
		},
	}
}

func newPullCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "pull <model>",
		Short:   "Download a model into the backend",
		Example: "  lowkeyllama pull mistral",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(opts, cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			last := ""
			err = c.Pull(cmd.Context(), args[0], func(p ollama.PullProgress) {
				switch {
				case p.Total > 0:
					fmt.Fprintf(out, "%s %d%%\n", p.Status, p.Completed*100/p.Total)
				case p.Status != last:
					fmt.Fprintln(out, p.Status)
				}
				last = p.Status
			})
			if err != nil {
				return fmt.Errorf("pull %s: %w", args[0], err)
			}
			return nil
		},
	}
}

type generateFlags struct {
	model       string
	system      string
	maxTokens   int
	temperature float64
	topP        float64
	topK        int
}

func newGenerateCmd(opts *Options) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:     "generate <prompt>",
		Short:   "Run one prompt through the same pipeline as POST /generate",
		Example: "  lowkeyllama generate \"Write a haiku about the ocean\" --max-tokens 60",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c := ollama.NewClient(cfg.BackendURL(), time.Duration(cfg.Backend.ConnectTimeoutSeconds)*time.Second)
			c.SetLogger(log)
			svc := generate.NewService(c, generate.ConfigFrom(cfg), log, events.Log{Logger: log})

			req := types.GenerateRequest{Model: f.model, System: f.system, Prompt: strings.Join(args, " ")}
			if cmd.Flags().Changed("max-tokens") {
				req.MaxTokens = &f.maxTokens
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &f.temperature
			}
			if cmd.Flags().Changed("top-p") {
				req.TopP = &f.topP
			}
			if cmd.Flags().Changed("top-k") {
				req.TopK = &f.topK
			}
			resp, err := svc.Generate(cmd.Context(), req)
			if err != nil {
				var he httpapi.HTTPError
				if errors.As(err, &he) {
					return fmt.Errorf("%w (status %d)", err, he.StatusCode())
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Response)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model name (default: default_model)")
	cmd.Flags().StringVar(&f.system, "system", "", "System prompt")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "Maximum tokens to generate (1-4096)")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0, "Sampling temperature (0-1)")
	cmd.Flags().Float64Var(&f.topP, "top-p", 0, "Nucleus sampling (0-1)")
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "Top-k sampling")
	return cmd
}

func newConfigCmd(opts *Options) *cobra.Command {
	configCmd := &cobra.Command{Use: "config", Short: "Inspect configuration", RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("config requires a subcommand: show")
	}}
	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after layering files, env and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			b, err := cfg.Marshal(format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	show.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml|json|toml")
	configCmd.AddCommand(show)
	return configCmd
}
