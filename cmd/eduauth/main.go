// Package main provides the eduauth binary: the HTTP auth service plus
// operator commands for migrations and admin seeding.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/MrEthical07/eduAuth/internal/appconfig"
	"github.com/MrEthical07/eduAuth/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "eduauth"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

// load reads configuration and builds the process logger. --log-level wins
// over the config file when set.
func (g *globalFlags) load() (*appconfig.App, *zap.Logger, error) {
	cfg, err := appconfig.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg, logging.New(cfg.LogLevel, cfg.Env), nil
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Authentication and session service",
		Long: `eduauth serves signup with email OTP, login, refresh-token rotation,
logout, password reset and change under /api/auth.

Settings come from an optional YAML file (--config) overlaid with
EDUAUTH_* environment variables, e.g. EDUAUTH_AUTH_ACCESS_SECRET.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(g), migrateCmd(g), seedAdminCmd(g))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func serveCmd(g *globalFlags) *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log, dev)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.engine.EnsureAdmin(ctx, cfg.AdminSeed()); err != nil {
				log.Warn("admin seed failed", zap.Error(err))
			}
			return a.Serve(ctx)
		},
	}

	cmd.Flags().BoolVar(&dev, "dev", false, "Use in-process Redis and the memory store")
	return cmd
}

func migrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply store schema (postgres migrations or mongo indexes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			_, closeStore, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			log.Info("schema up to date", zap.String("driver", cfg.Store.Driver))
			return nil
		},
	}
}

func seedAdminCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the configured administrator if no admin exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.engine.EnsureAdmin(ctx, cfg.AdminSeed())
			if err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", cfg.Admin.Email)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "admin already exists")
			}
			return nil
		},
	}
}
