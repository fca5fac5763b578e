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

	"heroshell/internal/config"
	"heroshell/internal/logging"
	"heroshell/internal/shell"
	"heroshell/internal/store"
	"heroshell/internal/transport"
)

var (
	// Global flags
	verbose    bool
	configPath string
	port       int

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dumpd <dump-file>",
	Short: "dumpd - UDP dump server for heroshell",
	Long: `dumpd keeps the XML dump of a heroshell collection and serves it over UDP.

Clients connect with: heroshell udp://host:port

The server console accepts 'help', 'history', 'stats' and 'exit'.
End of console input also stops the server.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
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
	RunE: runServer,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "UDP port (overrides server.port)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, stop)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Initialize(logging.Options{
		Dir:        cfg.Logging.Dir,
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat(),
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return err
	}
	defer logging.CloseAll()

	srv, err := transport.Listen(fmt.Sprintf(":%d", cfg.Server.Port), transport.ServerOptions{
		BufferSize: cfg.Server.BufferSize,
		Workers:    cfg.Server.Workers,
	})
	if err != nil {
		return err
	}

	return serve(ctx, cmd, cfg, srv, args[0])
}

// serve runs srv until the console exits or ctx is cancelled.
func serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config, srv *transport.Server, dumpPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := &dumpHandler{files: store.NewFileStore(dumpPath)}

	if cfg.Archive.Enabled {
		archive, err := store.OpenArchive(cfg.Archive.Driver, cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer archive.Close()
		h.archive = archive
	}

	var watcher *store.Watcher
	if cfg.Server.WatchDump {
		w, err := store.NewWatcher(dumpPath, h.files.Invalidate)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return err
		}
		defer w.Stop()
		watcher = w
	}

	console := shell.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), shell.ConsoleOptions{
		Prompt: "dumpd> ",
		Color:  cfg.Shell.Color,
	})
	reg := shell.NewRegistry()
	registerConsole(reg, h, watcher)
	operator := shell.New(console, reg, nil, shell.Options{})

	// Run returns once ctx is done, but the stdin read it was blocked on
	// stays pending, so the console is not waited for.
	go func() {
		defer cancel()
		if err := operator.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Server console failed", zap.Error(err))
		}
	}()

	logger.Info("dumpd listening",
		zap.String("addr", srv.Addr().String()),
		zap.String("dump", dumpPath),
		zap.Bool("archive", h.archive != nil),
		zap.Bool("watch", watcher != nil))

	return srv.Serve(ctx, h)
}
