package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"cargo-market/internal/config"
	"cargo-market/internal/game"
	"cargo-market/internal/metrics"
	"cargo-market/internal/snapshot"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("cargo-market stopped")
	}
}

func run() error {
	settings, err := config.Load(".env")
	if err != nil {
		return err
	}
	log := newLogger(settings.LogLevel, settings.LogFormat)

	defaults, err := config.LoadEconomy(settings.EconomyFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, settings, log)
	if err != nil {
		return err
	}
	store := snapshot.New(backend, defaults)
	defer store.Close()

	state, err := store.Load(ctx)
	if err != nil {
		return err
	}
	engine := game.New(state, defaults, store, game.WithLogger(log))

	scheduler, err := startBackups(settings, engine, log)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              settings.Addr,
		Handler:           newRouter(engine, log, settings.RateLimitRPS, settings.RateLimitBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", settings.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func openBackend(ctx context.Context, settings config.Settings, log logrus.FieldLogger) (snapshot.Backend, error) {
	storage, err := settings.Storage()
	if err != nil {
		return nil, err
	}
	if !storage.SQL {
		log.WithField("path", storage.Path).Info("snapshot: file backend")
		return snapshot.NewFileBackend(storage.Path), nil
	}
	backend, err := snapshot.OpenSQL(ctx, storage.Dialect, storage.DSN)
	if err != nil {
		return nil, err
	}
	log.WithField("dialect", storage.Dialect).Info("snapshot: database backend")
	return backend, nil
}

// startBackups schedules rotated backups when BACKUP_DIR is set.
func startBackups(settings config.Settings, engine *game.Engine, log logrus.FieldLogger) (*cron.Cron, error) {
	if settings.BackupDir == "" {
		return nil, nil
	}
	rotator := snapshot.NewRotator(settings.BackupDir, settings.BackupKeep)
	c := cron.New()
	_, err := c.AddFunc(settings.BackupSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		path, err := rotator.Backup(ctx, engine.View(), time.Now())
		metrics.RecordBackup(err == nil)
		if err != nil {
			log.WithError(err).Error("backup failed")
			return
		}
		log.WithField("path", path).Info("backup written")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.WithFields(logrus.Fields{"dir": settings.BackupDir, "schedule": settings.BackupSchedule, "keep": settings.BackupKeep}).Info("backups scheduled")
	return c, nil
}
