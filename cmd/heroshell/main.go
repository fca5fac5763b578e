package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"heroshell/internal/collection"
	"heroshell/internal/commands"
	"heroshell/internal/config"
	"heroshell/internal/dump"
	"heroshell/internal/logging"
	"heroshell/internal/shell"
	"heroshell/internal/transport"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "heroshell <dump>",
	Short: "heroshell - interactive HumanBeing collection manager",
	Long: `heroshell manages a keyed collection of HumanBeing elements.

The single argument names the dump the collection is loaded from and saved to:
a local XML file, or udp://host:port to use a dumpd server.

Commands are read line by line from the terminal. Type 'help' for the list.
execute_script <file> runs commands from a file, nesting scripts is allowed.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runShell,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runShell loads the collection from the dump named by args[0] and runs the
// interactive shell on the command's input and output streams.
func runShell(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// The first signal ends the session; after it the default handlers are
	// back, so a second one kills the process.
	context.AfterFunc(ctx, stop)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Initialize(loggingOptions(cfg)); err != nil {
		return err
	}
	defer logging.CloseAll()
	if err := logging.InitAudit(); err != nil {
		logger.Warn("Audit log unavailable", zap.Error(err))
	}
	defer logging.CloseAudit()

	dumper, err := dump.Open(args[0], transport.ClientOptions{
		BufferSize: cfg.Transport.BufferSize,
		Timeout:    cfg.GetTransportTimeout(),
	})
	if err != nil {
		return err
	}
	repo := dump.NewRepository(dumper)
	manager := collection.NewManager(repo)
	if err := manager.Load(ctx); err != nil {
		return fmt.Errorf("cannot start without a collection: %w", err)
	}
	logger.Info("Collection loaded",
		zap.String("dump", args[0]),
		zap.Int("elements", manager.Len()),
		zap.Int("skipped", len(repo.Skipped)))

	console := shell.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), shell.ConsoleOptions{
		Prompt: cfg.Shell.Prompt,
		Color:  cfg.Shell.Color,
	})
	for _, skipped := range repo.Skipped {
		console.PrintError(skipped)
	}

	registry := shell.NewRegistry()
	sh := shell.New(console, registry, nil, shell.Options{
		ScriptCommand:     cfg.Shell.ScriptCommand,
		MaxRecursionDepth: cfg.Shell.MaxRecursionDepth,
	})
	commands.Register(commands.Env{
		Collection:    manager,
		Prompter:      console,
		Registry:      registry,
		History:       sh.History(),
		ScriptCommand: cfg.Shell.ScriptCommand,
	})

	return sh.Run(ctx)
}

func loggingOptions(cfg *config.Config) logging.Options {
	return logging.Options{
		Dir:        cfg.Logging.Dir,
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat(),
		Categories: cfg.Logging.Categories,
	}
}
