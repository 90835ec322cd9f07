// Package commands defines all Cobra CLI commands for the spectrumgpt binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/spectrumops/spectrumgpt/internal/audit"
	"github.com/spectrumops/spectrumgpt/internal/config"
	"github.com/spectrumops/spectrumgpt/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "spectrumgpt",
		Short: "SpectrumGPT — design-system Q&A grounded in your indexed docs",
		Long: `SpectrumGPT answers questions about the Spectrum design system using only
the indexed documentation, Slack archive, and GitHub corpus.

Questions are answered by hybrid retrieval (semantic search over Qdrant plus
BM25 keyword re-ranking) followed by grounded generation. If the corpus holds
no authoritative answer, SpectrumGPT says so instead of guessing.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.spectrumgpt/config.yaml).
See 'spectrumgpt --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.spectrumgpt/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
