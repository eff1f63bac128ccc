package cmd

import (
	"net/http"
	"os"

	"piplock/handlers"
	"piplock/resolve"
	"piplock/verify"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lockfile service",
	Long: `Serve exposes the index cache and the compile/verify operations over
HTTP. Set WITH_INITIAL_REFRESH=true to refresh the cache on startup and
WITH_DAILY_REFRESH=true to refresh it on the configured cron schedule.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager, store, closeDB, err := newManager(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	resolver := &resolve.Resolver{
		Index:   manager,
		Log:     logger,
		Command: "piplock compile requirements.in",
	}
	verifier := &verify.Verifier{Index: manager, Log: logger}

	handler := &handlers.Handler{
		Store:    store,
		Manager:  manager,
		Resolver: resolver,
		Verifier: verifier,
		Log:      logger,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Logger)

	r.Get("/packages", handler.ListReleases)
	r.Post("/packages", handler.CreateRelease)
	r.Get("/packages/{name}/{version}", handler.GetRelease)
	r.Put("/packages/{name}/{version}", handler.UpdateRelease)
	r.Delete("/packages/{name}/{version}", handler.DeleteRelease)
	r.Post("/packages/refresh", handler.RefreshHandler)

	r.Post("/lockfiles/verify", handler.VerifyLockfile)
	r.Post("/lockfiles/compile", handler.CompileRequirements)

	if os.Getenv("WITH_INITIAL_REFRESH") == "true" {
		if err := manager.Refresh(cmd.Context()); err != nil {
			return err
		}
	}

	if os.Getenv("WITH_DAILY_REFRESH") == "true" {
		c := cron.New()
		_, err := c.AddFunc(cfg.RefreshSchedule, func() {
			logger.Info("Scheduled index refresh triggered")
			if err := manager.Refresh(cmd.Context()); err != nil {
				logger.Errorf("scheduled refresh failed: %v", err)
			}
		})
		if err != nil {
			return err
		}
		c.Start()
		defer c.Stop()
	}

	logger.Infof("starting on port %s...", cfg.Port)
	return http.ListenAndServe(":"+cfg.Port, r)
}
