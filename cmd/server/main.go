package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retailcore/ledger-core/internal/accounts"
	"github.com/retailcore/ledger-core/internal/api"
	"github.com/retailcore/ledger-core/internal/config"
	"github.com/retailcore/ledger-core/internal/events/kafka"
	interfaces "github.com/retailcore/ledger-core/internal/interfaces"
	"github.com/retailcore/ledger-core/internal/jobs"
	"github.com/retailcore/ledger-core/internal/ledger"
	"github.com/retailcore/ledger-core/internal/logger"
	"github.com/retailcore/ledger-core/internal/models"
	"github.com/retailcore/ledger-core/internal/notify"
	"github.com/retailcore/ledger-core/internal/offline"
	"github.com/retailcore/ledger-core/internal/sales"
	"github.com/retailcore/ledger-core/internal/storage/memory"
	"github.com/retailcore/ledger-core/internal/storage/postgres"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logg.Sync()

	if err := run(cfg, logg); err != nil {
		logg.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database, logg)
	if err != nil {
		return err
	}
	defer closeStore()

	chart := accounts.DefaultChart()
	if cfg.Ledger.ChartPath != "" {
		if chart, err = accounts.LoadChart(cfg.Ledger.ChartPath); err != nil {
			return err
		}
	}

	opts := []ledger.Option{
		ledger.WithLogger(logg.Named("ledger")),
		ledger.WithTaxRate(decimal.NewFromFloat(cfg.Ledger.TaxRate)),
		ledger.WithChart(chart),
	}
	if cfg.Kafka.Enabled {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher, cfg.Kafka.Topic))
	}
	l := ledger.NewLedger(store, opts...)

	now := time.Now()
	added, err := l.Load(ctx, now.AddDate(-1, 0, 0), now)
	if err != nil {
		// the ledger still accepts writes, which fall back to the offline queue
		logg.Warn("starting without history", zap.Error(err))
	} else {
		logg.Info("ledger history loaded", zap.Int("transactions", added))
	}

	queueOpts := []offline.Option{offline.WithLogger(logg.Named("offline"))}
	if cfg.Offline.DBPath != "" {
		queueStore, err := offline.OpenSQLiteStore(cfg.Offline.DBPath)
		if err != nil {
			return err
		}
		defer queueStore.Close()
		queueOpts = append(queueOpts, offline.WithStore(queueStore))
	}
	queue := offline.NewQueue(l, queueOpts...)

	scheduler, err := jobs.NewSyncScheduler(queue, cfg.Offline.SyncSchedule, logg.Named("jobs"))
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := scheduler.Stop(stopCtx); err != nil {
			logg.Warn("sync scheduler did not stop cleanly", zap.Error(err))
		}
	}()

	changes := notify.NewSignal()
	l.AddListener(changes)
	go watchLedger(ctx, l, changes, logg.Named("dashboard"))

	// inventory lives outside this service, so checkout skips stock checks
	svc := sales.NewService(l, queue, nil, logg.Named("sales"))
	handler := api.NewHandler(l, queue, svc, api.WithLogger(logg.Named("api")))

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
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

	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logg *zap.Logger) (interfaces.LedgerStore, func(), error) {
	if cfg.Driver != config.DriverPostgres {
		logg.Info("using in-memory ledger store")
		return memory.NewMemoryLedgerStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, err
	}

	store := postgres.NewPostgresLedgerStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	logg.Info("using postgres ledger store")
	return store, func() { db.Close() }, nil
}

// watchLedger logs a summary whenever the ledger changes. Bursts of writes
// coalesce into one wake-up.
func watchLedger(ctx context.Context, l *ledger.Ledger, changes *notify.Signal, logg *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes.C():
			logg.Debug("ledger changed",
				zap.Int("transactions", len(l.Transactions())),
				zap.String("sales_today", l.TotalByTypeAndPeriod(string(models.KindSale), models.PeriodDaily).StringFixed(2)),
			)
		}
	}
}
