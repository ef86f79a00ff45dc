package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/cronrunner"
	"github.com/jask/wastewatch/internal/handler"
	"github.com/jask/wastewatch/internal/service"
)

func cmdServe(ctx context.Context, a *app, _ []string) error {
	if a.cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.Deps{
		DB:            a.db,
		DBPath:        a.cfg.Database.Path,
		Log:           a.log,
		Detection:     a.detect,
		Subscriptions: a.subs,
		Alerts:        a.alerts,
	})

	if a.cfg.Cron.Enabled {
		runner := cronrunner.New(ctx, a.log)
		if _, err := runner.Add("detection", a.cfg.Cron.Detection, func(ctx context.Context) error {
			if _, err := a.matcher.MatchPending(ctx); err != nil {
				a.log.Warn("receipt matching failed", zap.Error(err))
			}
			_, err := a.detect.Run(ctx, service.RunOptions{})
			return err
		}); err != nil {
			return err
		}
		if _, err := runner.Add("prune", a.cfg.Cron.Prune, func(ctx context.Context) error {
			_, err := a.maint.PruneAlerts(ctx, a.cfg.Retention.AlertDays)
			return err
		}); err != nil {
			return err
		}
		runner.Start()
		defer runner.Stop()
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
