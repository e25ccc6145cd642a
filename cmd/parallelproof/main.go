package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/longregen/parallelproof/internal/config"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "parallelproof",
		Short: "ParallelProof - parallel multi-agent code optimization",
		Long: `ParallelProof fans one piece of code out to many agents, each applying
a different optimization strategy in its own environment, and keeps the
result with the greatest reported improvement.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				os.Setenv("PARALLELPROOF_CONFIG", configPath)
			}

			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger = newLogger(cfg.Log, os.Stderr)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config file")

	rootCmd.AddCommand(
		serveCmd(),
		optimizeCmd(),
		strategiesCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Current configuration:")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "LLM:")
			fmt.Fprintf(out, "  URL:          %s\n", cfg.LLM.URL)
			fmt.Fprintf(out, "  Model:        %s\n", cfg.LLM.Model)
			fmt.Fprintf(out, "  Max Tokens:   %d\n", cfg.LLM.MaxTokens)
			fmt.Fprintf(out, "  Temperature:  %.2f\n", cfg.LLM.Temperature)
			fmt.Fprintf(out, "  Rate Limit:   %d/min\n", cfg.LLM.RateLimitPerMinute)
			fmt.Fprintf(out, "  API Key:      %s\n", maskSecret(cfg.LLM.APIKey))
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Embedding:")
			fmt.Fprintf(out, "  URL:        %s\n", cfg.Embedding.URL)
			fmt.Fprintf(out, "  Model:      %s\n", cfg.Embedding.Model)
			fmt.Fprintf(out, "  Dimensions: %d\n", cfg.Embedding.Dimensions)
			fmt.Fprintf(out, "  API Key:    %s\n", maskSecret(cfg.Embedding.APIKey))
			fmt.Fprintf(out, "  Status:     %s\n", boolStatus(cfg.IsEmbeddingConfigured()))
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Database:")
			fmt.Fprintf(out, "  PostgreSQL: %s\n", maskSecret(cfg.Database.PostgresURL))
			fmt.Fprintf(out, "  Max Conns:  %d\n", cfg.Database.MaxConns)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Forks:")
			fmt.Fprintf(out, "  Mode:           %s\n", cfg.Fork.Mode)
			fmt.Fprintf(out, "  Base Service:   %s\n", cfg.Fork.BaseService)
			fmt.Fprintf(out, "  CLI:            %s\n", cfg.Fork.CLI)
			fmt.Fprintf(out, "  Max Concurrent: %d\n", cfg.Fork.MaxConcurrent)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Agents:")
			fmt.Fprintf(out, "  Default/Max:   %d/%d\n", cfg.Agent.DefaultCount, cfg.Agent.MaxCount)
			fmt.Fprintf(out, "  Agent Timeout: %s\n", cfg.AgentTimeout())
			fmt.Fprintf(out, "  Task Timeout:  %s\n", cfg.TaskTimeout())
			fmt.Fprintf(out, "  Search Limit:  %d\n", cfg.Agent.SearchLimit)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Server:")
			fmt.Fprintf(out, "  Address:         %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Fprintf(out, "  Environment:     %s\n", cfg.Server.Environment)
			fmt.Fprintf(out, "  Max Connections: %d\n", cfg.Server.MaxConnections)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Environment variables:")
			fmt.Fprintln(out, "  PARALLELPROOF_CONFIG, PARALLELPROOF_LLM_URL, PARALLELPROOF_LLM_API_KEY, PARALLELPROOF_LLM_MODEL")
			fmt.Fprintln(out, "  PARALLELPROOF_EMBEDDING_URL, PARALLELPROOF_POSTGRES_URL")
			fmt.Fprintln(out, "  PARALLELPROOF_FORK_MODE, PARALLELPROOF_FORK_BASE_SERVICE, PARALLELPROOF_SERVER_PORT")

			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ParallelProof %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Build Date: %s\n", buildDate)
		},
	}
}
