package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahamlinman/webglhost/internal/api"
	"github.com/ahamlinman/webglhost/internal/config"
	"github.com/ahamlinman/webglhost/internal/lifecycle"
	"github.com/ahamlinman/webglhost/internal/log"
	"github.com/ahamlinman/webglhost/internal/server"
)

var (
	flagPublicDir        string
	flagEnvFile          string
	flagDrainTimeout     time.Duration
	flagSelfCheckTimeout time.Duration
	flagCacheSize        int
)

var rootCmd = &cobra.Command{
	Use:   "webglhost-server",
	Short: "Serve a compiled WebGL build",
	Long: `Serves a compiled Unity WebGL build from a public directory, decompressing
build artifacts for clients that cannot decode them, along with a small health
and status API.

The server is configured through the PORT, HOST, APP_ENV, CORS_ORIGIN,
BUILD_NAMES, and BUILD_COMPRESSION environment variables, which may also be set
in an env file.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagPublicDir, "public-dir", "public", "Directory containing the compiled build")
	flags.StringVar(&flagEnvFile, "env-file", ".env", "File of environment variables to load if present")
	flags.DurationVar(&flagDrainTimeout, "drain-timeout", lifecycle.DefaultDrainTimeout, "Maximum time to wait for in-flight requests at shutdown")
	flags.DurationVar(&flagSelfCheckTimeout, "self-check-timeout", lifecycle.DefaultSelfCheckTimeout, "Maximum time to wait for the startup health check")
	flags.IntVar(&flagCacheSize, "cache-size", 64<<20, "Bytes of memory for decompressed artifacts (0 disables the cache)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "webglhost-server:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Variables already in the environment take precedence over the file.
	envErr := godotenv.Load(flagEnvFile)
	if errors.Is(envErr, fs.ErrNotExist) {
		envErr = nil
	}

	cfg, warnings := config.Load(os.Getenv)
	logger, err := log.New(cfg.Production())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Warn("Unable to load env file", zap.String("path", flagEnvFile), zap.Error(envErr))
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	logger.Info("Starting",
		zap.String("version", api.Version),
		zap.Stringer("mode", cfg.Mode),
		zap.String("addr", cfg.Addr()),
		zap.String("publicDir", flagPublicDir),
		zap.Strings("builds", cfg.BuildNames),
		zap.String("compression", string(cfg.Compression)),
	)

	ctrl := lifecycle.New(lifecycle.Options{
		HealthPath:       api.HealthPath,
		HealthMarker:     api.HealthMarker,
		SelfCheckTimeout: flagSelfCheckTimeout,
		DrainTimeout:     flagDrainTimeout,
	}, logger)

	set := metrics.NewSet()
	srv := server.New(server.Options{
		Config:     cfg,
		PublicDir:  flagPublicDir,
		CacheBytes: flagCacheSize,
	}, ctrl.State(), set, logger)

	ln, err := lifecycle.Listen(cfg.Addr())
	if errors.Is(err, lifecycle.ErrAddrInUse) {
		logger.Error("Port already in use; is another server running?", zap.Int("port", cfg.Port))
		return err
	}
	if err != nil {
		logger.Error("Unable to bind listener", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Run(ctx, ln, srv); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}
