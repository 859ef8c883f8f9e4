package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/leadsengine/dashboard/internal/app"
	"github.com/leadsengine/dashboard/internal/config"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/migrations"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// Run serves the API until ctx is cancelled, then drains in-flight requests
// and queued deliveries.
func Run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.CloseConnection(pool)

	logger.Info("Successfully connected to database")

	applied, err := migrations.Apply(ctx, pool)
	if err != nil {
		return err
	}
	logger.WithField("migrations", applied).Info("Database schema is up to date")

	a := app.New(cfg, pool, logger)
	workersCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()
	a.Start(workersCtx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewHandler(cfg, a, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"address":     srv.Addr,
			"environment": cfg.Environment,
			"smtp":        a.Mail.CanSend(),
			"imap":        a.Mail.CanSync(),
		}).Info("Dashboard backend server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		httpErr := srv.Shutdown(shutdownCtx)
		// Queued deliveries finish before the SMTP session and the pool close.
		appErr := a.Close(shutdownCtx)
		cancelWorkers()
		return errors.Join(httpErr, appErr)
	})

	return g.Wait()
}
