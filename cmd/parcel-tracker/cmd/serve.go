package cmd

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"parcel-tracking/internal/handlers"
	"parcel-tracking/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the mailbox on a schedule and serve the records over HTTP",
	Long: `Serve starts the poll coordinator and an HTTP API:

    GET  /api/health                     service and poll health
    GET  /api/records[?carrier=KEY]      current tracking records
    GET  /api/records/{tracking_number}  a single record
    POST /api/refresh[?force=true]       poll now (rate limited)
    GET  /api/carriers[?active=true]     carrier rules

With an admin API key configured, bearer-authenticated routes manage custom
carriers, pause and resume polling and report cache statistics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	logger.Info("Starting parcel tracker server",
		"version", Version,
		"build_date", BuildDate)

	coordinator, err := a.newCoordinator(cmd.Context())
	if err != nil {
		return err
	}
	manager, err := a.newCache(cmd.Context())
	if err != nil {
		return err
	}

	router := server.NewRouter(server.Handlers{
		Records:  handlers.NewRecordHandler(coordinator, a.cfg.Scan.Timeout, logger),
		Carriers: handlers.NewCarrierHandler(a.registry, a.db.Carriers, a.cfg.Carrier.Keys, logger),
		Health:   handlers.NewHealthHandler(a.db, coordinator),
		Admin:    handlers.NewAdminHandler(coordinator, manager, logger),
	}, server.RouterConfig{
		AdminAPIKey: a.cfg.Server.AdminAPIKey,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:    a.cfg.Address(),
		Handler: router,

		// A manual refresh runs a full poll inside the request
		ReadTimeout:  15 * time.Second,
		WriteTimeout: a.cfg.Scan.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := coordinator.Start(); err != nil {
		return err
	}

	signals := server.NewSignalHandler(srv, a.cfg.Server.ShutdownTimeout, logger)
	signals.OnShutdown(coordinator.Stop)

	logger.Info("Listening", "addr", srv.Addr, "admin_routes", a.cfg.Server.AdminAPIKey != "")
	if err := signals.Serve(cmd.Context()); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
