package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/longregen/parallelproof/internal/domain/models"
)

// optimizeCmd runs one task in-process and prints its events
func optimizeCmd() *cobra.Command {
	var language string
	var agents int

	cmd := &cobra.Command{
		Use:   "optimize FILE",
		Short: "Optimize a file in-process and stream task events",
		Long: `Read FILE, run one optimization task in this process and print every
task event as a JSON line. Use "-" to read from stdin.

The language defaults to the file extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if strings.TrimSpace(code) == "" {
				return fmt.Errorf("%s is empty", args[0])
			}
			if language == "" {
				language = languageFromPath(args[0])
			}
			if agents == 0 {
				agents = cfg.Agent.DefaultCount
			}
			if agents < 1 || agents > cfg.Agent.MaxCount {
				return fmt.Errorf("--agents must be between 1 and %d", cfg.Agent.MaxCount)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runOptimize(ctx, cmd.OutOrStdout(), code, language, agents)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "language of the code (default: from the file extension)")
	cmd.Flags().IntVarP(&agents, "agents", "n", 0, "number of agents (default: agent.default_count)")
	return cmd
}

func runOptimize(ctx context.Context, out io.Writer, code, language string, agents int) error {
	pool, err := initDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	a, err := newApp(pool)
	if err != nil {
		return err
	}
	defer a.hub.Close()

	task := models.NewOptimizationTask(a.ids.GenerateTaskID(), code, language, agents)
	if err := a.tasks.Create(ctx, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	// subscribe before starting so no event is missed
	sub, err := a.hub.Subscribe(task.ID)
	if err != nil {
		return err
	}
	defer a.hub.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.coordinator.Run(ctx, task)
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case ev := <-sub.Events():
			if err := enc.Encode(ev); err != nil {
				return err
			}
			switch ev.Type {
			case models.EventComplete:
				<-done
				return nil
			case models.EventError:
				<-done
				return fmt.Errorf("task %s failed", task.ID)
			}
		case <-sub.Done():
			<-done
			return fmt.Errorf("event stream for task %s ended early", task.ID)
		}
	}
}

func readSource(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

var extLanguages = map[string]string{
	".py":   "python",
	".sql":  "sql",
	".go":   "go",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".cpp":  "cpp",
}

func languageFromPath(path string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "text"
}
