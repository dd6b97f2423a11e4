package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/clipgate/internal/db"
	httpSrv "github.com/jmehdipour/clipgate/internal/http"
	"github.com/jmehdipour/clipgate/internal/issuer"
	"github.com/jmehdipour/clipgate/internal/repository"
	"github.com/jmehdipour/clipgate/internal/service/gate"
	"github.com/jmehdipour/clipgate/internal/service/registry"
	"github.com/jmehdipour/clipgate/internal/service/report"
	"github.com/jmehdipour/clipgate/internal/session"
	"github.com/jmehdipour/clipgate/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		loc, err := cfg.App.Location()
		if err != nil {
			return err
		}
		clock := func() time.Time { return time.Now().In(loc) }

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() {
			_ = chDB.Close()
		}()

		artifacts, err := storage.New(cmd.Context(), cfg.Storage, log)
		if err != nil {
			return fmt.Errorf("artifact store: %w", err)
		}

		qr, err := issuer.NewQRIssuer(cfg.App.PublicBaseURL, cfg.App.QRSize)
		if err != nil {
			return err
		}

		// repos (MySQL)
		outboxRepo := repository.NewOutboxRepository(mysqlDB)
		customersRepo := repository.NewCustomersRepository(mysqlDB, outboxRepo)
		submissionsRepo := repository.NewSubmissionsRepository(mysqlDB, outboxRepo)

		// repos (ClickHouse)
		chSubmissionsRepo := repository.NewCHSubmissionsRepository(chDB)

		// services
		registrySvc := registry.New(customersRepo, artifacts, qr, log,
			registry.WithClock(clock),
			registry.WithCleanupTimeout(cfg.App.StoreTimeout),
		)
		gateSvc := gate.New(customersRepo, submissionsRepo, artifacts, log,
			gate.WithClock(clock),
			gate.WithStoreTimeout(cfg.App.StoreTimeout),
		)
		reports := report.NewEngine(registrySvc, submissionsRepo, clock)

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Registry: registrySvc,
			Gate:     gateSvc,
			Reports:  reports,
			History:  chSubmissionsRepo,
			Sessions: session.NewStore(redisClient, cfg.Admin.SessionTTL),
			Links:    qr,
			Redis:    redisClient,
			Log:      log,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
			}
		}

		// uploads may be mid-transfer; give them the store timeout, capped
		grace := cfg.App.StoreTimeout
		if grace <= 0 || grace > 30*time.Second {
			grace = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return server.Shutdown(ctx)
	},
}
