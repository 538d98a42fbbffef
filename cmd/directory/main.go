// Command directory serves the merchant directory API and runs one-off syncs.
//
//	directory serve   # sync once, then serve HTTP until SIGINT/SIGTERM
//	directory sync    # sync once and print the outcome
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	_ "github.com/tbourn/go-merchant-directory/docs"
	"github.com/tbourn/go-merchant-directory/internal/app"
	"github.com/tbourn/go-merchant-directory/internal/config"
	"github.com/tbourn/go-merchant-directory/internal/observability"
	"github.com/tbourn/go-merchant-directory/internal/sysutil"
)

// @title                      Merchant Directory API
// @version                    1.0
// @description                Merchant directory with remote sync, offline snapshot, reviews and recommendations.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "directory",
	Short:         "Merchant directory data service",
	Long:          "Syncs the merchant directory from its remote backend, keeps a local snapshot for offline use and serves it over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the environment, configures logging and tracing, and wires the
// application. The returned cleanup closes everything in reverse order.
func setup(ctx context.Context) (*app.App, func(), error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	level := sysutil.SetLogLevel(cfg.LogLevel)
	log := sysutil.NewLogger(cfg.LogPretty, nil).With().Str("version", version).Logger()
	zerolog.DefaultContextLogger = &log
	log.Debug().Str("level", level.String()).Str("remote", cfg.Remote.Kind()).Msg("config loaded")
	gin.SetMode(cfg.GinMode)

	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version, observability.RemoteKind(cfg.Remote.Kind()))
	if err != nil {
		return nil, nil, fmt.Errorf("otel: %w", err)
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("close databases")
		}
		if err := shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}
	return a, cleanup, nil
}
