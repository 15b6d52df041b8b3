package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/config"
	logpkg "github.com/kailas-cloud/vecembed/internal/logger"
	"github.com/kailas-cloud/vecembed/internal/metrics"
)

// app carries state shared by all subcommands.
type app struct {
	configPath string
	logLevel   string

	cfg         config.Config
	logger      *zap.Logger
	loggerReady bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, logger: zap.NewNop()}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	defer func() { _ = a.logger.Sync() }()
	if err == nil {
		return 0
	}
	if a.loggerReady {
		a.logger.Error("vecembed failed", zap.Error(err))
	} else {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return 1
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vecembed",
		Short: "Turn JSON documents into vector embeddings",
		Long: `vecembed reads a JSON array of documents, embeds the text of the
selected fields and writes the documents back in a vector index ingestion
format: augmented documents with a _vector field (Meilisearch) or a point
list (Qdrant).`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (optional)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(a.convertCmd(), a.queryCmd(), a.serveCmd(), a.versionCmd())
	return root
}

// setup loads configuration and the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	a.cfg = cfg

	level := a.logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logpkg.NewLogger(config.GetEnv(), level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	a.loggerReady = true
	cmd.SetContext(logpkg.ContextWithLogger(cmd.Context(), logger))

	metrics.RegisterEmbeddingMetrics()
	return nil
}
