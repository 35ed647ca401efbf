package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-verifier/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for verifying resumes and inspecting GitHub accounts.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().Bool("migrate", true, "Create the database schema on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, map[string]string{"server.port": "port"})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{needsHasher: true})
	if err != nil {
		return err
	}
	defer a.Close()

	deps := server.Dependencies{
		Verifier: a.verifier,
		Records:  a.records,
		Accounts: a.profiles,
		Hasher:   a.hasher,
		Cache:    a.cache,
		Logger:   a.logger,
	}
	if a.database != nil {
		if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
			if err := a.database.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		deps.Database = a.database
	}

	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AllowedOrigins: cfg.Server.CORSOrigins,
		RateLimit:      cfg.RateLimiter(),
	}, deps)
	return srv.Start(ctx)
}
